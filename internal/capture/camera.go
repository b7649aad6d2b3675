package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

// CameraOptions configures a live camera.
type CameraOptions struct {
	Width  int
	Height int
	FPS    int
}

// DefaultCameraOptions returns 640x480 at 30 FPS.
func DefaultCameraOptions() CameraOptions {
	return CameraOptions{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		FPS:    DefaultFPS,
	}
}

// Camera is a live Source reading from a camera device.
type Camera struct {
	deviceID int
	opts     CameraOptions
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	index    int
	now      func() time.Time
}

// OpenCamera opens the camera with the given device ID.
// A device that cannot be opened yields an error wrapping ErrSourceUnavailable.
func OpenCamera(deviceID int, opts CameraOptions) (*Camera, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}

	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrSourceUnavailable, deviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrSourceUnavailable, deviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(opts.FPS))

	return &Camera{
		deviceID: deviceID,
		opts:     opts,
		capture:  capture,
		running:  true,
		now:      time.Now,
	}, nil
}

// Next reads a single frame from the camera, blocking until one is available.
func (c *Camera) Next() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("%w: camera %d", ErrFrameRead, c.deviceID)
	}

	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: camera %d returned an empty frame", ErrFrameRead, c.deviceID)
	}

	frame := &Frame{
		Mat:    mat,
		Index:  c.index,
		Time:   c.now(),
		Origin: OriginLive,
	}
	c.index++

	return frame, nil
}

// Close closes the camera and releases resources.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// IsOpen returns true if the camera is currently open.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Options returns the options the camera was opened with.
func (c *Camera) Options() CameraOptions {
	return c.opts
}
