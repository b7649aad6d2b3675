// Package preview adapts operator-facing I/O to capture sessions: the OpenCV
// preview window, terminal triggers and JPEG snapshots.
package preview

import (
	"strings"
	"sync"

	"github.com/ayusman/mudra/internal/app"
)

// Window key codes.
const (
	keySpace  = 32
	keyEscape = 27
)

// KeySignal maps a window key code to a signal: space captures, s starts
// recording, q or ESC stops.
func KeySignal(key int) (app.Signal, bool) {
	switch key & 0xFF {
	case keySpace:
		return app.SignalManualCapture, true
	case 's', 'S':
		return app.SignalStartRecording, true
	case 'q', 'Q', keyEscape:
		return app.SignalStopSession, true
	default:
		return 0, false
	}
}

// LineSignal maps a terminal command line to a signal: c captures, s starts
// recording, q stops. Surrounding whitespace and case are ignored.
func LineSignal(line string) (app.Signal, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "capture":
		return app.SignalManualCapture, true
	case "s", "start":
		return app.SignalStartRecording, true
	case "q", "quit", "stop":
		return app.SignalStopSession, true
	default:
		return 0, false
	}
}

// Queue is a thread-safe signal buffer. Producers Push, the capture loop
// drains it with Poll.
type Queue struct {
	mu      sync.Mutex
	pending []app.Signal
}

// Push appends a signal.
func (q *Queue) Push(s app.Signal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, s)
}

// Poll returns and clears the pending signals in arrival order.
func (q *Queue) Poll() []app.Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Merge polls several sources in order.
func Merge(sources ...app.Signals) app.Signals {
	return merged(sources)
}

type merged []app.Signals

func (m merged) Poll() []app.Signal {
	var out []app.Signal
	for _, s := range m {
		if s != nil {
			out = append(out, s.Poll()...)
		}
	}
	return out
}
