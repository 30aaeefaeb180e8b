package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"eventbot/internal/board"
)

func addExportICS(topLevel *cobra.Command, ro *rootOptions) {
	bo := &batchOptions{}
	output := "-"

	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write a channel's schedule as an iCalendar file.",
		Example: `
eventctl export-ics -g 1234 -C 5678 -o events.ics
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := bo.batch()
			if err != nil {
				return err
			}
			core, err := ro.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()
			if err := requireStore(core); err != nil {
				return err
			}
			rows, err := core.Store.ListByBatch(cmd.Context(), b)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return board.WriteCalendar(w, core.Catalog, b, rows, time.Now())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout.")
	addBatchArgs(cmd, bo)

	topLevel.AddCommand(cmd)
}
