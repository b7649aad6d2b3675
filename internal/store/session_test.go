package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore creates a Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{
		Label:    "thumbs_up",
		Mode:     SessionModeLive,
		Strategy: "manual+auto",
		Existing: 12,
	}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if sess.ID == "" {
		t.Fatal("ID should be assigned on create")
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set on create")
	}
	if sess.Status != SessionRunning {
		t.Errorf("Status = %q, want %q", sess.Status, SessionRunning)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.Label != "thumbs_up" || got.Mode != SessionModeLive || got.Strategy != "manual+auto" {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Existing != 12 {
		t.Errorf("Existing = %d, want 12", got.Existing)
	}
	if got.EndedAt != nil {
		t.Error("EndedAt should be nil while running")
	}
}

func TestSessionRepository_CreateKeepsGivenID(t *testing.T) {
	repo := newTestStore(t).Sessions()

	sess := &Session{ID: "fixed-id", Mode: SessionModeBatch, Strategy: "video"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if sess.ID != "fixed-id" {
		t.Errorf("ID = %q, want fixed-id", sess.ID)
	}

	if err := repo.Create(&Session{ID: "fixed-id", Mode: SessionModeBatch, Strategy: "video"}); err == nil {
		t.Error("duplicate ID should fail")
	}
}

func TestSessionRepository_Finish(t *testing.T) {
	tests := []struct {
		name       string
		runErr     error
		wantStatus SessionStatus
		wantError  string
	}{
		{name: "completed", wantStatus: SessionCompleted},
		{name: "failed", runErr: errors.New("ledger write failed: disk full"), wantStatus: SessionFailed, wantError: "ledger write failed: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestStore(t).Sessions()

			sess := &Session{Label: "A", Mode: SessionModeLive, Strategy: "manual"}
			if err := repo.Create(sess); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}

			if err := repo.Finish(sess.ID, 7, tt.runErr); err != nil {
				t.Fatalf("failed to finish session: %v", err)
			}

			got, err := repo.GetByID(sess.ID)
			if err != nil {
				t.Fatalf("failed to get session: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Appended != 7 {
				t.Errorf("Appended = %d, want 7", got.Appended)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
			if got.EndedAt == nil {
				t.Error("EndedAt should be set after finish")
			}
		})
	}
}

func TestSessionRepository_FinishNotFound(t *testing.T) {
	repo := newTestStore(t).Sessions()

	if err := repo.Finish("missing", 0, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_GetByIDNotFound(t *testing.T) {
	repo := newTestStore(t).Sessions()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	repo := newTestStore(t).Sessions()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, label := range []string{"A", "B", "C"} {
		sess := &Session{
			Label:     label,
			Mode:      SessionModeLive,
			Strategy:  "manual",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(sess); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].Label != "C" || all[2].Label != "A" {
		t.Errorf("sessions should be newest first, got %s..%s", all[0].Label, all[2].Label)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(limited))
	}
}

func TestVideoRepository_RecordAndList(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: SessionModeBatch, Strategy: "video"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	videos := []*VideoResult{
		{SessionID: sess.ID, Label: "A", Path: "videos/A/one.mp4", Frames: 10, Appended: 8, Status: VideoOK},
		{SessionID: sess.ID, Label: "A", Path: "videos/A/broken.mp4", Status: VideoFailed, Error: "source unavailable"},
	}
	for _, v := range videos {
		if err := s.Videos().Record(v); err != nil {
			t.Fatalf("failed to record video: %v", err)
		}
		if v.ID == 0 {
			t.Error("ID should be set after record")
		}
	}

	got, err := s.Videos().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("failed to list videos: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(got))
	}
	if got[0].Path != "videos/A/one.mp4" || got[0].Appended != 8 || got[0].Status != VideoOK {
		t.Errorf("unexpected first video: %+v", got[0])
	}
	if got[1].Status != VideoFailed || got[1].Error != "source unavailable" {
		t.Errorf("unexpected second video: %+v", got[1])
	}
}

func TestVideoRepository_RequiresSession(t *testing.T) {
	s := newTestStore(t)

	err := s.Videos().Record(&VideoResult{SessionID: "missing", Label: "A", Path: "x.mp4", Status: VideoOK})
	if err == nil {
		t.Error("recording a video for an unknown session should fail the foreign key")
	}
}

func TestVideoRepository_CascadeDelete(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: SessionModeBatch, Strategy: "video"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Videos().Record(&VideoResult{SessionID: sess.ID, Label: "A", Path: "a.mp4", Status: VideoOK}); err != nil {
		t.Fatalf("failed to record video: %v", err)
	}

	if _, err := s.DB().Exec(`DELETE FROM sessions WHERE id = ?`, sess.ID); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}

	got, err := s.Videos().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("failed to list videos: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("videos should be deleted with their session, got %d", len(got))
	}
}
