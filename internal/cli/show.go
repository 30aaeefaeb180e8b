package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"eventbot/internal/board"
	"eventbot/internal/catalog"
	"eventbot/internal/reconcile"
	"eventbot/internal/schedule"
)

func addShow(topLevel *cobra.Command, ro *rootOptions) {
	bo := &batchOptions{}
	all := false

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the stored rows of a channel.",
		Example: `
eventctl show -g 1234 -C 5678
eventctl show -g 1234 -C 5678 --all
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
			printRows(cmd.OutOrStdout(), core.Catalog, rows, all, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include disabled rows.")
	addBatchArgs(cmd, bo)

	topLevel.AddCommand(cmd)
}

func printRows(w io.Writer, cat *catalog.Catalog, rows []schedule.Row, all bool, now time.Time) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("INSTANCE"), bold.Sprint("TITLE"), bold.Sprint("TIME"), bold.Sprint("TZ"), bold.Sprint("ALERT"), bold.Sprint("NEXT"))
	n := 0
	for _, row := range rows {
		if !row.Enabled && !all {
			continue
		}
		next := "-"
		if at, ok := row.NextFire(now); ok && row.Enabled {
			next = at.In(row.Location()).Format("Mon 2006-01-02 15:04")
		}
		cells := []interface{}{row.ID, row.Key.String(), board.EntryTitle(cat, row), row.Clock(), row.Timezone, row.Alert.String(), next}
		if !row.Enabled {
			for i, c := range cells {
				cells[i] = faint.Sprint(c)
			}
		}
		tbl.AddRow(cells...)
		n++
	}
	if n == 0 {
		fmt.Fprintln(w, "no rows")
		return
	}
	fmt.Fprintln(w, tbl)
}

func addExisting(topLevel *cobra.Command, ro *rootOptions) {
	bo := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "existing",
		Short: "Print the enabled schedule of a channel as a desired-state document.",
		Example: `
eventctl existing -g 1234 -C 5678 > desired.yaml
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

			seed, err := core.Engine.LoadExisting(cmd.Context(), b.GuildID, b.ChannelID)
			if err != nil {
				return err
			}
			out, err := reconcile.FormatSeed(b.GuildID, b.ChannelID, seed)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	addBatchArgs(cmd, bo)

	topLevel.AddCommand(cmd)
}

func addNext(topLevel *cobra.Command, ro *rootOptions) {
	bo := &batchOptions{}
	limit := 10

	cmd := &cobra.Command{
		Use:   "next",
		Short: "List upcoming events, soonest first.",
		Long:  "List upcoming events of one channel, or of every channel when --guild and --channel are omitted.",
		Example: `
eventctl next
eventctl next -g 1234 -C 5678 -n 3
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := ro.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()
			if err := requireStore(core); err != nil {
				return err
			}

			var rows []schedule.Row
			if bo.GuildID == "" && bo.ChannelID == "" {
				rows, err = core.Store.ListEnabled(cmd.Context())
			} else {
				var b schedule.Batch
				if b, err = bo.batch(); err != nil {
					return err
				}
				rows, err = core.Store.ListByBatch(cmd.Context(), b)
			}
			if err != nil {
				return err
			}
			printUpcoming(cmd.OutOrStdout(), core.Catalog, board.Upcoming(rows, time.Now(), limit))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum entries, 0 for all.")
	addBatchArgs(cmd, bo)

	topLevel.AddCommand(cmd)
}

func printUpcoming(w io.Writer, cat *catalog.Catalog, entries []board.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "nothing scheduled")
		return
	}
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("WHEN"), bold.Sprint("TITLE"), bold.Sprint("CHANNEL"), bold.Sprint("ID"))
	for _, e := range entries {
		tbl.AddRow(e.At.In(e.Row.Location()).Format("Mon 2006-01-02 15:04 MST"), board.EntryTitle(cat, e.Row), e.Row.Batch.String(), e.Row.ID)
	}
	fmt.Fprintln(w, tbl)
}
