package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/output"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultServeAddr is used by serve when listen_addr is unset.
const DefaultServeAddr = "127.0.0.1:8080"

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dataset and session API without capturing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			log := deps.Logger
			formatter := output.NewFormatter(cmd.OutOrStdout())

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			l, err := ledger.New(cfg.DatasetDir, log)
			if err != nil {
				return err
			}

			var st *store.Store
			if path := cfg.Journal(); path != "" {
				if st, err = store.New(path); err != nil {
					log.Warn("session journal unavailable", zap.String("path", path), zap.Error(err))
					st = nil
				} else {
					defer st.Close()
				}
			}

			addr := cfg.ListenAddr
			if addr == "" {
				addr = DefaultServeAddr
			}

			srv := server.New(server.Config{
				StaticDir: staticDir,
				Ledger:    l,
				Store:     st,
				Logger:    log,
			})
			formatter.ServerListening(addr)
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&staticDir, "static", "", "Serve files from this directory at /")

	return cmd
}
