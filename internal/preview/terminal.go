package preview

import (
	"bufio"
	"context"
	"io"

	"github.com/ayusman/mudra/internal/logger"
	"go.uber.org/zap"
)

// Terminal turns command lines read from an input stream into signals.
type Terminal struct {
	Queue
	logger *zap.Logger
	done   chan struct{}
}

// NewTerminal starts reading r until EOF or ctx is cancelled. Unknown lines
// are logged and ignored.
func NewTerminal(ctx context.Context, r io.Reader, log *zap.Logger) *Terminal {
	t := &Terminal{
		logger: logger.OrNop(log),
		done:   make(chan struct{}),
	}
	go t.read(ctx, r)
	return t
}

func (t *Terminal) read(ctx context.Context, r io.Reader) {
	defer close(t.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if sig, ok := LineSignal(line); ok {
			t.Push(sig)
			continue
		}
		if line != "" {
			t.logger.Info("unknown command, use c (capture), s (start) or q (quit)", zap.String("input", line))
		}
	}
}

// Done is closed when the input stream ends.
func (t *Terminal) Done() <-chan struct{} {
	return t.done
}
