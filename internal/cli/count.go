package cli

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/output"
)

func NewCountCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count [label...]",
		Short: "Show how many rows each label has",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())

			l, err := ledger.New(deps.Config.DatasetDir, deps.Logger)
			if err != nil {
				return err
			}

			labels := args
			if len(labels) == 0 {
				if labels, err = l.Labels(); err != nil {
					return err
				}
			}
			if len(labels) == 0 {
				formatter.Info("No labels recorded yet")
				return nil
			}

			formatter.CountHeader(l.Dir())
			total := 0
			for _, label := range labels {
				if err := ledger.ValidateLabel(label); err != nil {
					return err
				}
				rows, err := l.CountRows(label)
				if err != nil {
					return err
				}
				total += rows
				formatter.CountItem(label, rows)
			}
			formatter.CountItem("total", total)
			return nil
		},
	}

	return cmd
}
