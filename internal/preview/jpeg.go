package preview

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality matches OpenCV's imwrite default.
const DefaultJPEGQuality = 95

// JPEGWriter saves frames as JPEG files.
type JPEGWriter struct {
	// Quality is the JPEG quality in [1,100]. Zero uses DefaultJPEGQuality.
	Quality int

	// MaxWidth downscales wider frames, keeping the aspect ratio. Zero keeps
	// the original size.
	MaxWidth int
}

// WriteJPEG writes frame to path, creating parent directories.
func (w JPEGWriter) WriteJPEG(path string, frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("write %s: empty frame", path)
	}
	img, err := frame.ToImage()
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	if w.MaxWidth > 0 && img.Bounds().Dx() > w.MaxWidth {
		img = imaging.Resize(img, w.MaxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}

	quality := w.Quality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
