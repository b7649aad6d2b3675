package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/output"
	"github.com/ayusman/mudra/internal/store"
)

func NewSessionsCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent capture and ingestion sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())

			path := deps.Config.Journal()
			if path == "" {
				return ErrJournalDisabled
			}
			st, err := store.New(path)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Sessions().List(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				formatter.Info("No sessions found")
				return nil
			}

			formatter.SessionListHeader()
			for _, s := range sessions {
				end := time.Now()
				if s.EndedAt != nil {
					end = *s.EndedAt
				}
				formatter.SessionListItem(s.ID, s.Label, string(s.Mode), string(s.Status),
					s.Appended, s.StartedAt.Local(), end.Sub(s.StartedAt))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show (0 for all)")

	return cmd
}
