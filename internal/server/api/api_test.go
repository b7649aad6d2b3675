package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/policy"
	"github.com/ayusman/mudra/internal/store"
)

// newTestLedger creates a ledger with the given number of rows per label.
func newTestLedger(t *testing.T, rows map[string]int) *ledger.Ledger {
	t.Helper()

	l, err := ledger.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}

	for label, n := range rows {
		f, err := l.Open(label)
		if err != nil {
			t.Fatalf("failed to open ledger %s: %v", label, err)
		}
		for i := 0; i < n; i++ {
			e := policy.Event{Label: label, Type: policy.CaptureManual, Timestamp: "2024-05-01 10:00:00", Hand: detector.OpenPalmLandmarks()}
			if err := f.Append(e); err != nil {
				t.Fatalf("failed to append: %v", err)
			}
		}
		f.Close()
	}
	return l
}

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLabelHandler_List(t *testing.T) {
	handler := NewLabelHandler(newTestLedger(t, map[string]int{"B": 2, "A": 3, "C": 0}))

	rec := serve(handler, http.MethodGet, "/api/labels")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listLabelsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Labels) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(response.Labels))
	}
	want := []struct {
		label string
		rows  int
	}{{"A", 3}, {"B", 2}, {"C", 0}}
	for i, w := range want {
		if response.Labels[i].Label != w.label || response.Labels[i].Rows != w.rows {
			t.Errorf("label %d = %+v, want %s with %d rows", i, response.Labels[i], w.label, w.rows)
		}
	}
	if response.Total != 5 {
		t.Errorf("expected total 5, got %d", response.Total)
	}
}

func TestLabelHandler_ListEmpty(t *testing.T) {
	handler := NewLabelHandler(newTestLedger(t, nil))

	rec := serve(handler, http.MethodGet, "/api/labels")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "{\"labels\":[],\"total\":0}\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestLabelHandler_Get(t *testing.T) {
	handler := NewLabelHandler(newTestLedger(t, map[string]int{"A": 4}))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantRows   int
	}{
		{name: "existing label", target: "/api/labels/A", wantStatus: http.StatusOK, wantRows: 4},
		{name: "missing label", target: "/api/labels/Z", wantStatus: http.StatusNotFound},
		{name: "invalid label", target: "/api/labels/..", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(handler, http.MethodGet, tt.target)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var response labelResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Rows != tt.wantRows {
				t.Errorf("expected %d rows, got %d", tt.wantRows, response.Rows)
			}
		})
	}
}

func TestLabelHandler_MethodNotAllowed(t *testing.T) {
	handler := NewLabelHandler(newTestLedger(t, nil))

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := serve(handler, method, "/api/labels")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	for _, label := range []string{"A", "B", "C"} {
		if err := s.Sessions().Create(&store.Session{Label: label, Mode: store.SessionModeLive, Strategy: "manual"}); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}
	handler := NewSessionHandler(s)

	rec := serve(handler, http.MethodGet, "/api/sessions?limit=2")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var response struct {
		Sessions []store.Session `json:"sessions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(response.Sessions))
	}
}

func TestSessionHandler_ListInvalidLimit(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	for _, target := range []string{"/api/sessions?limit=abc", "/api/sessions?limit=0"} {
		rec := serve(handler, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", target, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestSessionHandler_ListEmpty(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	rec := serve(handler, http.MethodGet, "/api/sessions")

	if body := rec.Body.String(); body != "{\"sessions\":[]}\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	sess := &store.Session{Mode: store.SessionModeBatch, Strategy: "video"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Videos().Record(&store.VideoResult{SessionID: sess.ID, Label: "A", Path: "a.mp4", Frames: 3, Appended: 2, Status: store.VideoOK}); err != nil {
		t.Fatalf("failed to record video: %v", err)
	}
	if err := s.Sessions().Finish(sess.ID, 2, errors.New("stopped")); err != nil {
		t.Fatalf("failed to finish session: %v", err)
	}
	handler := NewSessionHandler(s)

	rec := serve(handler, http.MethodGet, "/api/sessions/"+sess.ID)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		ID     string              `json:"id"`
		Status string              `json:"status"`
		Error  string              `json:"error"`
		Videos []store.VideoResult `json:"videos"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID != sess.ID {
		t.Errorf("expected id %s, got %s", sess.ID, response.ID)
	}
	if response.Status != "failed" || response.Error != "stopped" {
		t.Errorf("unexpected status %q error %q", response.Status, response.Error)
	}
	if len(response.Videos) != 1 || response.Videos[0].Appended != 2 {
		t.Errorf("unexpected videos: %+v", response.Videos)
	}
}

func TestSessionHandler_GetNotFound(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	rec := serve(handler, http.MethodGet, "/api/sessions/missing")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
