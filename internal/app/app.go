// Package app runs capture sessions: the interactive camera loop and batch
// ingestion of labelled video folders. Both feed detections through a
// policy into the per-label dataset ledger.
package app

import (
	"errors"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/policy"
	"github.com/ayusman/mudra/internal/store"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ErrNoVideos is returned when the videos directory holds no label folders.
var ErrNoVideos = errors.New("no label folders found")

// Counters tracks rows for one label: what the ledger held when the session
// started and what the session added.
type Counters struct {
	Existing int `json:"existing"`
	Session  int `json:"session"`
}

// Total returns Existing + Session.
func (c Counters) Total() int {
	return c.Existing + c.Session
}

// Signal is a control input from the operator.
type Signal int

const (
	SignalManualCapture Signal = iota + 1
	SignalStopSession
	SignalStartRecording
)

func (s Signal) String() string {
	switch s {
	case SignalManualCapture:
		return "manual_capture"
	case SignalStopSession:
		return "stop_session"
	case SignalStartRecording:
		return "start_recording"
	default:
		return "unknown"
	}
}

// Signals is polled once per frame for operator input. Poll must not block.
type Signals interface {
	Poll() []Signal
}

// Overlay is what a Display draws on top of a live frame.
type Overlay struct {
	Label     string
	Strategy  policy.Strategy
	Recording bool
	Counters  Counters
	Remaining time.Duration
	Hands     []detector.HandLandmarks
}

// Display renders live frames for the operator.
type Display interface {
	Show(frame gocv.Mat, o Overlay) error
	Close() error
}

// ImageWriter saves a frame as a JPEG file, creating parent directories.
type ImageWriter interface {
	WriteJPEG(path string, frame gocv.Mat) error
}

// Publisher receives status snapshots and the latest frame, e.g. for the
// status server. Implementations must not retain frame after returning.
type Publisher interface {
	Publish(Status)
	PublishFrame(frame gocv.Mat)
}

// Session states reported in Status.
const (
	StateIdle      = "idle"
	StateRecording = "recording"
	StateIngesting = "ingesting"
	StateStopped   = "stopped"
)

// Status is a point-in-time view of a running session.
type Status struct {
	SessionID string                   `json:"session_id,omitempty"`
	Mode      store.SessionMode        `json:"mode"`
	State     string                   `json:"state"`
	Label     string                   `json:"label"`
	Counters  Counters                 `json:"counters"`
	Total     int                      `json:"total"`
	NextAuto  float64                  `json:"next_auto_seconds"`
	Video     string                   `json:"video,omitempty"`
	Hands     []detector.HandLandmarks `json:"hands"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// StopReason says why a live session ended.
type StopReason string

const (
	StopSignal     StopReason = "stop_signal"
	StopCancelled  StopReason = "cancelled"
	StopEndOfInput StopReason = "end_of_input"
	StopMaxSession StopReason = "max_session"
)

// journal wraps the optional session store. Journal failures are logged and
// never abort a session; the dataset ledger is the record of truth.
type journal struct {
	store  *store.Store
	logger *zap.Logger
	id     string
}

func (j *journal) start(sess *store.Session) {
	if j.store == nil {
		return
	}
	if err := j.store.Sessions().Create(sess); err != nil {
		j.logger.Warn("failed to record session start", zap.Error(err))
		return
	}
	j.id = sess.ID
}

func (j *journal) video(v *store.VideoResult) {
	if j.store == nil || j.id == "" {
		return
	}
	v.SessionID = j.id
	if err := j.store.Videos().Record(v); err != nil {
		j.logger.Warn("failed to record video result", zap.String("path", v.Path), zap.Error(err))
	}
}

func (j *journal) finish(appended int, runErr error) {
	if j.store == nil || j.id == "" {
		return
	}
	if err := j.store.Sessions().Finish(j.id, appended, runErr); err != nil {
		j.logger.Warn("failed to record session end", zap.Error(err))
	}
}

// Writer appends events to one label's ledger.
type Writer interface {
	Append(e policy.Event) error
	Rows() int
	Close() error
}

// Dataset opens per-label writers under a dataset directory.
type Dataset interface {
	Open(label string) (Writer, error)
	Dir() string
}

// FromLedger adapts a ledger to Dataset.
func FromLedger(l *ledger.Ledger) Dataset {
	return ledgerDataset{l}
}

type ledgerDataset struct {
	l *ledger.Ledger
}

func (d ledgerDataset) Open(label string) (Writer, error) {
	f, err := d.l.Open(label)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d ledgerDataset) Dir() string {
	return d.l.Dir()
}
