package output

import (
	"fmt"
	"io"
	"time"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) CaptureStarted(label string, existing int, recording bool) {
	fmt.Fprintf(f.w, "🎥 Capturing %q (%d rows already saved)\n", label, existing)
	if !recording {
		fmt.Fprintf(f.w, "   Press s (or type s + Enter) to start recording\n")
	}
}

func (f *Formatter) CaptureStopped(reason string, manual, auto, total int, elapsed time.Duration) {
	fmt.Fprintf(f.w, "⏹️  Capture stopped: %s (%s)\n", reason, formatDuration(elapsed))
	fmt.Fprintf(f.w, "   manual: %d  auto: %d  total in dataset: %d\n", manual, auto, total)
}

func (f *Formatter) VideoDone(label, name string, appended int) {
	fmt.Fprintf(f.w, "  ✅ %s/%s: %d rows\n", label, name, appended)
}

func (f *Formatter) VideoFailed(label, name string, err error) {
	fmt.Fprintf(f.w, "  ❌ %s/%s: %v\n", label, name, err)
}

func (f *Formatter) IngestSummary(videos, failed, appended int) {
	fmt.Fprintf(f.w, "\n📊 %d videos, %d failed, %d rows appended\n", videos, failed, appended)
}

func (f *Formatter) LabelTotal(label string, existing, appended int) {
	fmt.Fprintf(f.w, "  %s: %d rows (+%d)\n", label, existing+appended, appended)
}

func (f *Formatter) CountHeader(dir string) {
	fmt.Fprintf(f.w, "📁 Dataset %s:\n\n", dir)
}

func (f *Formatter) CountItem(label string, rows int) {
	fmt.Fprintf(f.w, "  %-20s %6d\n", label, rows)
}

func (f *Formatter) SessionListHeader() {
	fmt.Fprintf(f.w, "🗂️  Sessions:\n\n")
}

func (f *Formatter) SessionListItem(id, label, mode, status string, appended int, started time.Time, elapsed time.Duration) {
	fmt.Fprintf(f.w, "  %s  %-8s %-6s %-9s %5d rows  %s (%s)\n",
		shortID(id), label, mode, status, appended, started.Format("2006-01-02 15:04"), formatDuration(elapsed))
}

func (f *Formatter) ServerListening(addr string) {
	fmt.Fprintf(f.w, "🌐 Status server on http://%s\n", addr)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
