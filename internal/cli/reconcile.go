package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"eventbot/internal/reconcile"
)

func addReconcile(topLevel *cobra.Command, ro *rootOptions) {
	bo := &batchOptions{}
	file := ""

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Make a channel's schedule match a desired-state document.",
		Example: `
eventctl reconcile -f desired.yaml
eventctl existing -g 1234 -C 5678 | eventctl reconcile -f -
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			core, err := ro.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			req, err := reconcile.ParseRequest(core.Catalog, data)
			if err != nil {
				return err
			}
			if bo.GuildID != "" {
				req.GuildID = bo.GuildID
			}
			if bo.ChannelID != "" {
				req.ChannelID = bo.ChannelID
			}
			rep, err := core.Engine.Reconcile(cmd.Context(), req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), &rep)
			if !rep.OK() {
				return fmt.Errorf("%d instance(s) failed", rep.Failed())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Desired-state document, or - for stdin.")
	_ = cmd.MarkFlagRequired("file")
	addBatchArgs(cmd, bo)

	topLevel.AddCommand(cmd)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printReport(w io.Writer, rep *reconcile.Report) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("ACTION"), bold.Sprint("INSTANCE"), bold.Sprint("NAME"), bold.Sprint("ROW"))
	for _, c := range rep.Changes {
		tbl.AddRow(string(c.Action), c.Key.String(), c.DisplayName, c.RowID)
	}
	for _, e := range rep.Errors {
		tbl.AddRow(red.Sprint("failed"), e.Key.String(), string(e.Action), e.Err)
	}
	if len(rep.Changes)+len(rep.Errors) > 0 {
		fmt.Fprintln(w, tbl)
	}
	fmt.Fprintf(w, "%s %s\n", bold.Sprint(rep.GuildID+":"+rep.ChannelID), rep.String())
}
