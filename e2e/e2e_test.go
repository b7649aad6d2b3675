package e2e

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/policy"
	"github.com/ayusman/mudra/internal/preprocess"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/testdata"
)

func TestE2E_IngestThenServe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	videos := filepath.Join(tmpDir, "videos")
	clip := filepath.Join(videos, "A", "clip.avi")
	if err := testdata.WriteVideo(clip, 10, 64, 48, 10); err != nil {
		t.Skipf("cannot write test video: %v", err)
	}

	l, err := ledger.New(filepath.Join(tmpDir, "dataset"), nil)
	if err != nil {
		t.Fatalf("ledger.New() error = %v", err)
	}
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	mockDetector := detector.NewMockDetector()
	mockDetector.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})

	ingest := app.NewIngest(app.IngestConfig{
		VideosDir:  videos,
		FrameStep:  3,
		Preprocess: preprocess.New(preprocess.Config{Equalize: true, Width: 32, Height: 24}, nil),
		Detector:   mockDetector,
		Dataset:    app.FromLedger(l),
		Journal:    s,
	})

	var result app.IngestResult
	t.Run("Ingest", func(t *testing.T) {
		result, err = ingest.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		// Frames 0, 3, 6 and 9 of ten are sampled.
		if result.Total() != 4 {
			t.Fatalf("appended = %d, want 4", result.Total())
		}
		if mockDetector.Calls() != 4 {
			t.Errorf("detector calls = %d, want 4", mockDetector.Calls())
		}
	})

	t.Run("LedgerRows", func(t *testing.T) {
		f, err := os.Open(l.Path("A"))
		if err != nil {
			t.Fatalf("open ledger: %v", err)
		}
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		if err != nil {
			t.Fatalf("read ledger: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("records = %d, want header + 4", len(records))
		}
		wantPositions := []string{"|0.000s", "|0.300s", "|0.600s", "|0.900s"}
		for i, want := range wantPositions {
			row := records[i+1]
			if row[1] != string(policy.CaptureVideo) {
				t.Errorf("row %d capture_type = %q, want video", i, row[1])
			}
			if !strings.HasSuffix(row[0], want) {
				t.Errorf("row %d time = %q, want suffix %q", i, row[0], want)
			}
		}
	})

	srv := server.New(server.Config{Ledger: l, Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("LabelsAPI", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/labels/A")
		if err != nil {
			t.Fatalf("get label error = %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Label string `json:"label"`
			Rows  int    `json:"rows"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Rows != 4 {
			t.Errorf("rows = %d, want 4", body.Rows)
		}
	})

	t.Run("SessionsAPI", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/sessions/" + result.SessionID)
		if err != nil {
			t.Fatalf("get session error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var body struct {
			Status   string `json:"status"`
			Appended int    `json:"appended_rows"`
			Videos   []struct {
				Path   string `json:"path"`
				Status string `json:"status"`
			} `json:"videos"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Status != string(store.SessionCompleted) || body.Appended != 4 {
			t.Errorf("session = %+v", body)
		}
		if len(body.Videos) != 1 || body.Videos[0].Path != clip {
			t.Errorf("videos = %+v", body.Videos)
		}
	})
}

func TestE2E_VideoSampling(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	path := filepath.Join(t.TempDir(), "clip.avi")
	if err := testdata.WriteVideo(path, 7, 64, 48, 25); err != nil {
		t.Skipf("cannot write test video: %v", err)
	}

	for _, step := range []int{1, 2, 3, 7, 10} {
		v, err := capture.OpenVideo(path, step)
		if err != nil {
			t.Fatalf("OpenVideo() error = %v", err)
		}

		var indices []int
		for {
			frame, err := v.Next()
			if err != nil {
				if !capture.IsEnd(err) {
					t.Fatalf("Next() error = %v", err)
				}
				break
			}
			indices = append(indices, frame.Index)
			frame.Close()
		}
		v.Close()

		want := (7 + step - 1) / step
		if len(indices) != want {
			t.Errorf("step %d: frames = %d, want %d", step, len(indices), want)
		}
		for i, idx := range indices {
			if idx != i*step {
				t.Errorf("step %d: frame %d index = %d, want %d", step, i, idx, i*step)
			}
		}
	}
}
