// Package capture provides frame sources backed by GoCV (OpenCV): live
// cameras and decoded video files with frame-step sampling.
package capture

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrSourceUnavailable is returned when a camera or video cannot be opened.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEndOfStream is returned by Next when a video has no more frames.
	ErrEndOfStream = errors.New("end of stream")

	// ErrFrameRead is returned by Next when a live device stops delivering frames.
	ErrFrameRead = errors.New("frame read failure")

	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
)

// Origin tags where a frame came from.
type Origin string

const (
	OriginLive  Origin = "live"
	OriginBatch Origin = "batch"
)

// Frame is a single image handed from a Source to the processing loop.
// The receiver owns the Mat and must call Close when done.
type Frame struct {
	Mat gocv.Mat

	// Index is the zero-based position of the frame in its source, counted
	// before any sampling.
	Index int

	// Time is the wall-clock time the frame was acquired.
	Time time.Time

	// Position is the media position for video frames; zero for live frames.
	Position time.Duration

	Origin Origin
}

// Close releases the frame's image buffer.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	return f.Mat.Close()
}

// Source produces an ordered sequence of frames.
type Source interface {
	// Next blocks until a frame is available. It returns ErrEndOfStream when
	// the source is exhausted and an error wrapping ErrFrameRead when a live
	// device fails mid-stream.
	Next() (*Frame, error)

	// Close releases the underlying device or file.
	Close() error
}

// IsEnd reports whether err ends a stream without being fatal.
func IsEnd(err error) bool {
	return errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrFrameRead)
}
