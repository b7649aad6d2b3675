package app

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/policy"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// blankFrames returns n small BGR frames, closed at test cleanup.
func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

// stepClock advances by step on every call, starting at t0.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{next: t0, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// scriptedSignals returns the signals scheduled for the n-th poll.
type scriptedSignals struct {
	polls int
	at    map[int][]Signal
}

func (s *scriptedSignals) Poll() []Signal {
	sig := s.at[s.polls]
	s.polls++
	return sig
}

func newDataset(t *testing.T) (*ledger.Ledger, Dataset) {
	t.Helper()
	l, err := ledger.New(t.TempDir(), nil)
	require.NoError(t, err)
	return l, FromLedger(l)
}

// failingDataset fails every append after the first okAppends.
type failingDataset struct {
	Dataset
	okAppends int
}

func (d *failingDataset) Open(label string) (Writer, error) {
	w, err := d.Dataset.Open(label)
	if err != nil {
		return nil, err
	}
	return &failingWriter{Writer: w, left: d.okAppends}, nil
}

type failingWriter struct {
	Writer
	left int
}

func (w *failingWriter) Append(e policy.Event) error {
	if w.left <= 0 {
		return fmt.Errorf("%w: disk full", ledger.ErrWrite)
	}
	w.left--
	return w.Writer.Append(e)
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []Status
	frames   int
}

func (p *recordingPublisher) Publish(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
}

func (p *recordingPublisher) PublishFrame(gocv.Mat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames++
}

func (p *recordingPublisher) last() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statuses[len(p.statuses)-1]
}

type recordingImages struct {
	paths []string
}

func (r *recordingImages) WriteJPEG(path string, _ gocv.Mat) error {
	r.paths = append(r.paths, path)
	return nil
}

type recordingDisplay struct {
	overlays []Overlay
}

func (d *recordingDisplay) Show(_ gocv.Mat, o Overlay) error {
	d.overlays = append(d.overlays, o)
	return nil
}

func (d *recordingDisplay) Close() error { return nil }
