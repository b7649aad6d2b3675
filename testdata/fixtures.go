// Package testdata generates synthetic frames and videos for tests.
package testdata

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// ShadedFrame returns a solid BGR frame whose shade depends on i.
func ShadedFrame(i, width, height int) gocv.Mat {
	v := float64((i * 17) % 256)
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, 255-v, v/2, 0), height, width, gocv.MatTypeCV8UC3)
}

// Frames returns n shaded frames. Release them with CloseAll.
func Frames(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := ShadedFrame(i, width, height)
		frames[i] = &m
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}

// WriteVideo writes n shaded frames to an MJPG AVI at path, creating parent
// directories.
func WriteVideo(path string, n, width, height int, fps float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	w, err := gocv.VideoWriterFile(path, "MJPG", fps, width, height, true)
	if err != nil {
		return fmt.Errorf("open writer %s: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return fmt.Errorf("open writer %s: codec unavailable", path)
	}

	for i := 0; i < n; i++ {
		m := ShadedFrame(i, width, height)
		err := w.Write(m)
		m.Close()
		if err != nil {
			w.Close()
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return w.Close()
}
