package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-recorded frames for testing.
type MockSource struct {
	frames []*gocv.Mat
	index  int
	failAt int
	origin Origin
	mu     sync.Mutex
	closed bool
}

// NewMockSource creates a source that replays frames once, in order.
func NewMockSource(frames []*gocv.Mat) *MockSource {
	return &MockSource{
		frames: frames,
		failAt: -1,
		origin: OriginLive,
	}
}

// FailAt makes Next return ErrFrameRead when it reaches index i.
func (s *MockSource) FailAt(i int) *MockSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = i
	return s
}

// WithOrigin sets the origin tag stamped on delivered frames.
func (s *MockSource) WithOrigin(o Origin) *MockSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = o
	return s
}

// Next returns a clone of the next frame so the originals are not modified.
func (s *MockSource) Next() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: mock source closed", ErrFrameRead)
	}
	if s.index == s.failAt {
		return nil, fmt.Errorf("%w: mock failure at %d", ErrFrameRead, s.index)
	}
	if s.index >= len(s.frames) {
		return nil, ErrEndOfStream
	}

	frame := &Frame{
		Mat:    s.frames[s.index].Clone(),
		Index:  s.index,
		Time:   time.Now(),
		Origin: s.origin,
	}
	s.index++

	return frame, nil
}

// Close marks the source closed. The original frames stay owned by the caller.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Delivered returns how many frames have been handed out.
func (s *MockSource) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
