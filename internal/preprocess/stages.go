package preprocess

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Non-local means parameters for colour denoising.
const (
	denoiseStrength      = 10
	denoiseColorStrength = 10
	denoiseTemplateSize  = 7
	denoiseSearchSize    = 21
)

type stageFunc struct {
	name string
	fn   func(src gocv.Mat, dst *gocv.Mat) error
}

func (s stageFunc) Name() string                            { return s.name }
func (s stageFunc) Apply(src gocv.Mat, dst *gocv.Mat) error { return s.fn(src, dst) }

// Denoise applies non-local means denoising to an 8-bit BGR image.
func Denoise() Stage {
	return stageFunc{name: "denoise", fn: func(src gocv.Mat, dst *gocv.Mat) error {
		if err := requireBGR(src); err != nil {
			return err
		}
		gocv.FastNlMeansDenoisingColoredWithParams(src, dst,
			denoiseStrength, denoiseColorStrength, denoiseTemplateSize, denoiseSearchSize)
		return nil
	}}
}

// Equalize equalizes the luma histogram of an 8-bit BGR image. The frame is
// converted to YCrCb, only the Y channel is equalized, and the result is
// converted back; chroma is left untouched.
func Equalize() Stage {
	return stageFunc{name: "equalize", fn: func(src gocv.Mat, dst *gocv.Mat) error {
		if err := requireBGR(src); err != nil {
			return err
		}

		ycrcb := gocv.NewMat()
		defer ycrcb.Close()
		gocv.CvtColor(src, &ycrcb, gocv.ColorBGRToYCrCb)

		channels := gocv.Split(ycrcb)
		defer func() {
			for _, ch := range channels {
				ch.Close()
			}
		}()
		if len(channels) != 3 {
			return fmt.Errorf("expected 3 channels after split, got %d", len(channels))
		}

		luma := gocv.NewMat()
		gocv.EqualizeHist(channels[0], &luma)
		channels[0].Close()
		channels[0] = luma

		merged := gocv.NewMat()
		defer merged.Close()
		gocv.Merge(channels, &merged)

		gocv.CvtColor(merged, dst, gocv.ColorYCrCbToBGR)
		return nil
	}}
}

// Resize scales the frame to width x height with bilinear interpolation.
func Resize(width, height int) Stage {
	return stageFunc{name: "resize", fn: func(src gocv.Mat, dst *gocv.Mat) error {
		if width <= 0 || height <= 0 {
			return fmt.Errorf("invalid target size %dx%d", width, height)
		}
		gocv.Resize(src, dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		return nil
	}}
}

func requireBGR(m gocv.Mat) error {
	if m.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("expected 8-bit 3-channel image, got type %v", m.Type())
	}
	return nil
}
