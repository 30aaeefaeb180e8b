package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func addCatalog(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"events"},
		Short:   "List the known event types and their instances.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := ro.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			bold := color.New(color.Bold)
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.MaxColWidth = 60
			tbl.Wrap = true
			tbl.AddRow(bold.Sprint("EVENT"), bold.Sprint("NAME"), bold.Sprint("CLASS"), bold.Sprint("REPEAT"), bold.Sprint("INSTANCES"))
			for _, def := range core.Catalog.All() {
				repeat := "-"
				if def.RepeatMinutes > 0 {
					repeat = fmt.Sprintf("%dm", def.RepeatMinutes)
				}
				tbl.AddRow(def.Name, def.Title(), string(def.Class()), repeat, strings.Join(def.InstanceIDs(), ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}

	topLevel.AddCommand(cmd)
}
