package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/output"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

// ErrJournalDisabled is returned by commands that read the journal when
// journal_path is "off".
var ErrJournalDisabled = errors.New("session journal is disabled")

// notifyContext cancels on SIGINT or SIGTERM.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runtime holds what a session needs besides its source: the dataset, the
// optional journal and the optional status server.
type runtime struct {
	ledger  *ledger.Ledger
	journal *store.Store
	hub     *server.Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// openRuntime opens the dataset and journal and starts the status server
// when listen_addr is set. A journal that cannot be opened is logged and
// skipped.
func openRuntime(ctx context.Context, deps *Dependencies, out *output.Formatter) (*runtime, error) {
	cfg := deps.Config
	log := deps.Logger

	l, err := ledger.New(cfg.DatasetDir, log)
	if err != nil {
		return nil, err
	}
	rt := &runtime{ledger: l}

	if path := cfg.Journal(); path != "" {
		st, err := store.New(path)
		if err != nil {
			log.Warn("session journal unavailable, continuing without it", zap.String("path", path), zap.Error(err))
		} else {
			rt.journal = st
		}
	}

	if cfg.ListenAddr != "" {
		rt.hub = server.NewHub(log)
		srv := server.New(server.Config{
			Ledger: l,
			Store:  rt.journal,
			Hub:    rt.hub,
			Logger: log,
		})

		var srvCtx context.Context
		srvCtx, rt.cancel = context.WithCancel(ctx)
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			if err := srv.Run(srvCtx, cfg.ListenAddr); err != nil {
				log.Error("status server failed", zap.Error(err))
			}
		}()
		out.ServerListening(cfg.ListenAddr)
	}

	return rt, nil
}

// publisher returns the hub as an app.Publisher, or nil without a server.
func (rt *runtime) publisher() app.Publisher {
	if rt.hub == nil {
		return nil
	}
	return rt.hub
}

func (rt *runtime) Close() {
	if rt.cancel != nil {
		rt.cancel()
		rt.wg.Wait()
	}
	if rt.journal != nil {
		rt.journal.Close()
	}
}
