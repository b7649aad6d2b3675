// Package policy decides, frame by frame, which detections become capture
// events. It holds no clock or I/O: callers pass time and detections in and
// carry the returned State to the next step.
package policy

import (
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// CaptureType is the value written to the ledger's capture_type column.
type CaptureType string

const (
	CaptureManual CaptureType = "manual"
	CaptureAuto   CaptureType = "auto"
	CaptureVideo  CaptureType = "video"
)

// Strategy selects which triggers are active.
type Strategy int

const (
	// ManualOnly persists a detection only on an explicit manual trigger.
	ManualOnly Strategy = iota
	// ManualAuto adds a wall-clock timed automatic trigger to ManualOnly.
	ManualAuto
	// Unconditional persists every frame with a detection (batch ingestion).
	Unconditional
)

func (s Strategy) String() string {
	switch s {
	case ManualOnly:
		return "manual"
	case ManualAuto:
		return "manual+auto"
	case Unconditional:
		return "video"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "manual":
		return ManualOnly, nil
	case "manual+auto", "auto", "hybrid":
		return ManualAuto, nil
	case "video", "batch":
		return Unconditional, nil
	default:
		return 0, fmt.Errorf("unknown capture strategy %q", s)
	}
}

// HandSelection controls how many hands an automatic or unconditional
// trigger persists. Manual triggers always persist the first hand.
type HandSelection int

const (
	FirstHand HandSelection = iota
	AllHands
)

// Timestamp layouts written to the ledger's time column.
const (
	LiveTimeLayout  = "2006-01-02 15:04:05"
	VideoTimeLayout = "2006-01-02T15:04:05"
)

// Event is one capture, the unit persisted to the ledger.
type Event struct {
	Label     string
	Type      CaptureType
	Timestamp string
	Hand      detector.HandLandmarks
}

// Config is the fixed part of a policy for one session.
type Config struct {
	Label    string
	Strategy Strategy
	Interval time.Duration
	Hands    HandSelection
}

// State is the mutable part carried between steps.
type State struct {
	// LastAuto is when the automatic trigger last fired, or the session start.
	LastAuto time.Time
}

// Start returns the initial state for a session beginning at now.
func Start(now time.Time) State {
	return State{LastAuto: now}
}

// Tick is everything the policy needs to know about one frame.
type Tick struct {
	Now time.Time

	// Hands are the frame's detections in estimator order.
	Hands []detector.HandLandmarks

	// Manual is true when a manual trigger arrived for this frame.
	Manual bool

	// Position is the media position of a video frame.
	Position time.Duration
}

// Outcome describes what a step decided besides the events themselves.
type Outcome struct {
	Events []Event

	// ManualMissed is set when a manual trigger arrived without a detection.
	ManualMissed bool

	// AutoFired is set when the automatic trigger fired and the timer reset.
	AutoFired bool
}

// Step evaluates one frame. Manual events precede automatic ones when both
// fire. Without a detection nothing fires and the auto timer keeps running,
// so an overdue capture happens on the next frame with a hand.
func (c Config) Step(s State, t Tick) (State, Outcome) {
	var out Outcome

	if c.Strategy == Unconditional {
		if len(t.Hands) > 0 {
			out.Events = c.events(CaptureVideo, c.selected(t.Hands), videoTimestamp(t.Now, t.Position))
		}
		return s, out
	}

	if t.Manual {
		if first, ok := detector.First(t.Hands); ok {
			out.Events = append(out.Events, c.event(CaptureManual, first, t.Now.Format(LiveTimeLayout)))
		} else {
			out.ManualMissed = true
		}
	}

	if c.Strategy == ManualAuto && len(t.Hands) > 0 && t.Now.Sub(s.LastAuto) >= c.Interval {
		out.Events = append(out.Events, c.events(CaptureAuto, c.selected(t.Hands), t.Now.Format(LiveTimeLayout))...)
		out.AutoFired = true
		s.LastAuto = t.Now
	}

	return s, out
}

// Remaining returns the time until the next automatic capture is due,
// clamped to zero. It is zero for strategies without an automatic trigger.
func (c Config) Remaining(s State, now time.Time) time.Duration {
	if c.Strategy != ManualAuto {
		return 0
	}
	left := c.Interval - now.Sub(s.LastAuto)
	if left < 0 {
		return 0
	}
	return left
}

func (c Config) selected(hands []detector.HandLandmarks) []detector.HandLandmarks {
	if c.Hands == AllHands {
		return hands
	}
	return detector.Limit(hands, 1)
}

func (c Config) events(typ CaptureType, hands []detector.HandLandmarks, ts string) []Event {
	events := make([]Event, 0, len(hands))
	for _, h := range hands {
		events = append(events, c.event(typ, h, ts))
	}
	return events
}

func (c Config) event(typ CaptureType, h detector.HandLandmarks, ts string) Event {
	return Event{
		Label:     c.Label,
		Type:      typ,
		Timestamp: ts,
		Hand:      h,
	}
}

// videoTimestamp records both when the row was written and where in the
// clip the frame came from, e.g. "2024-05-01T10:00:00Z|1.250s".
func videoTimestamp(now time.Time, pos time.Duration) string {
	return fmt.Sprintf("%sZ|%.3fs", now.UTC().Format(VideoTimeLayout), pos.Seconds())
}
