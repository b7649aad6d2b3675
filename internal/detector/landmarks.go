// Package detector provides hand landmark extraction for dataset capture.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left", "Right" or "Unknown"
	Score      float64               `json:"score"`
}

// Handedness values reported by the estimator.
const (
	HandLeft    = "Left"
	HandRight   = "Right"
	HandUnknown = "Unknown"
)

// NumCoords is the number of scalar values in a flattened hand (21 points x 3 axes).
const NumCoords = NumLandmarks * 3

// Flatten returns the landmarks as x0,y0,z0,...,x20,y20,z20.
func (h HandLandmarks) Flatten() [NumCoords]float64 {
	var out [NumCoords]float64
	for i, p := range h.Points {
		out[i*3] = p.X
		out[i*3+1] = p.Y
		out[i*3+2] = p.Z
	}
	return out
}

// First returns the first hand in detection order.
// The estimator's ordering is kept as is; no spatial tie-break is applied.
func First(hands []HandLandmarks) (HandLandmarks, bool) {
	if len(hands) == 0 {
		return HandLandmarks{}, false
	}
	return hands[0], true
}

// Limit truncates hands to at most n entries, preserving order.
// An n below 1 is treated as 1.
func Limit(hands []HandLandmarks, n int) []HandLandmarks {
	if n < 1 {
		n = 1
	}
	if len(hands) > n {
		return hands[:n]
	}
	return hands
}
