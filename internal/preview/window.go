package preview

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"gocv.io/x/gocv"
)

var (
	colorText     = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	colorBox      = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	colorIdle     = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	colorLandmark = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	colorBone     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// handConnections are the landmark pairs drawn as the hand skeleton.
var handConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {0, 17}, {17, 18}, {18, 19}, {19, 20},
}

// Window is the OpenCV preview. It draws the session overlay on each frame
// and turns key presses into signals.
type Window struct {
	Queue
	window *gocv.Window
}

// NewWindow opens a preview window with the given title.
func NewWindow(title string) *Window {
	return &Window{window: gocv.NewWindow(title)}
}

// WindowTitle is the title used for a capture session on label.
func WindowTitle(label string) string {
	return fmt.Sprintf("mudra: %s (SPACE=capture, s=start, q/ESC=quit)", label)
}

// Show draws the overlay on a copy of frame and polls the keyboard.
func (w *Window) Show(frame gocv.Mat, o app.Overlay) error {
	if frame.Empty() {
		return fmt.Errorf("empty frame")
	}
	canvas := frame.Clone()
	defer canvas.Close()

	DrawOverlay(&canvas, o)
	w.window.IMShow(canvas)

	if sig, ok := KeySignal(w.window.WaitKey(1)); ok {
		w.Push(sig)
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}

// OverlayLines returns the status lines drawn in the top-left box.
func OverlayLines(o app.Overlay) []string {
	if !o.Recording {
		return []string{
			"Press s to start",
			fmt.Sprintf("Saved: %d", o.Counters.Total()),
		}
	}
	return []string{
		fmt.Sprintf("Next auto: %ds", int(math.Ceil(o.Remaining.Seconds()))),
		fmt.Sprintf("Saved: %d", o.Counters.Total()),
	}
}

// DrawOverlay paints landmarks and session status onto img in place.
func DrawOverlay(img *gocv.Mat, o app.Overlay) {
	size := img.Size()
	if len(size) < 2 {
		return
	}
	height, width := size[0], size[1]

	for _, h := range o.Hands {
		drawHand(img, h, width, height)
	}

	gocv.Rectangle(img, image.Rect(5, 5, 175, 60), colorBox, -1)
	textColor := colorText
	if !o.Recording {
		textColor = colorIdle
	}
	for i, line := range OverlayLines(o) {
		gocv.PutText(img, line, image.Pt(10, 25+25*i), gocv.FontHersheySimplex, 0.6, textColor, 2)
	}

	hands := fmt.Sprintf("Hands: %d", len(o.Hands))
	gocv.PutText(img, hands, image.Pt(width-110, 25), gocv.FontHersheySimplex, 0.6, colorText, 2)
}

func drawHand(img *gocv.Mat, h detector.HandLandmarks, width, height int) {
	pt := func(i int) image.Point {
		p := h.Points[i]
		return image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
	}
	for _, c := range handConnections {
		gocv.Line(img, pt(c[0]), pt(c[1]), colorBone, 2)
	}
	for i := range h.Points {
		gocv.Circle(img, pt(i), 3, colorLandmark, -1)
	}
}
