package capture

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// DefaultVideoFPS is assumed when a container does not report a frame rate.
const DefaultVideoFPS = 30.0

// videoReader is the subset of *gocv.VideoCapture used by Video.
type videoReader interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// Video is a batch Source reading a decoded video file. It delivers only the
// frames whose zero-based index is divisible by the frame step.
type Video struct {
	path   string
	reader videoReader
	step   int
	fps    float64
	total  int
	next   int
	buf    gocv.Mat
	now    func() time.Time
	closed bool
}

// OpenVideo opens the video at path with the given frame step (k >= 1).
// A file that cannot be opened yields an error wrapping ErrSourceUnavailable.
func OpenVideo(path string, step int) (*Video, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s did not open", ErrSourceUnavailable, path)
	}

	return newVideo(path, capture, step), nil
}

func newVideo(path string, r videoReader, step int) *Video {
	if step < 1 {
		step = 1
	}

	fps := r.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = DefaultVideoFPS
	}

	return &Video{
		path:   path,
		reader: r,
		step:   step,
		fps:    fps,
		total:  int(r.Get(gocv.VideoCaptureFrameCount)),
		buf:    gocv.NewMat(),
		now:    time.Now,
	}
}

// Next returns the next sampled frame, or ErrEndOfStream at end of file.
// A decode failure mid-file is indistinguishable from end of file in OpenCV
// and is reported the same way.
func (v *Video) Next() (*Frame, error) {
	if v.closed {
		return nil, ErrEndOfStream
	}

	for {
		if ok := v.reader.Read(&v.buf); !ok || v.buf.Empty() {
			return nil, ErrEndOfStream
		}

		index := v.next
		v.next++

		if index%v.step != 0 {
			continue
		}

		return &Frame{
			Mat:      v.buf.Clone(),
			Index:    index,
			Time:     v.now(),
			Position: v.position(index),
			Origin:   OriginBatch,
		}, nil
	}
}

func (v *Video) position(index int) time.Duration {
	return time.Duration(float64(index) * float64(time.Second) / v.fps)
}

// Close releases the decoder.
func (v *Video) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	v.buf.Close()
	return v.reader.Close()
}

// Path returns the file the video was opened from.
func (v *Video) Path() string {
	return v.path
}

// TotalFrames returns the container's reported frame count, which may be 0
// when unknown.
func (v *Video) TotalFrames() int {
	return v.total
}

// ExpectedFrames returns how many frames the step will deliver for the
// reported frame count: ceil(total / step).
func (v *Video) ExpectedFrames() int {
	if v.total <= 0 {
		return 0
	}
	return (v.total + v.step - 1) / v.step
}

// FPS returns the frame rate used for media positions.
func (v *Video) FPS() float64 {
	return v.fps
}
