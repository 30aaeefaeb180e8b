package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"eventbot/internal/schedule"
)

type batchOptions struct {
	GuildID   string
	ChannelID string
}

func addBatchArgs(cmd *cobra.Command, bo *batchOptions) {
	cmd.Flags().StringVarP(&bo.GuildID, "guild", "g", "", "Guild (server) id.")
	cmd.Flags().StringVarP(&bo.ChannelID, "channel", "C", "", "Channel id.")
}

func (bo *batchOptions) batch() (schedule.Batch, error) {
	b := schedule.Batch{GuildID: strings.TrimSpace(bo.GuildID), ChannelID: strings.TrimSpace(bo.ChannelID)}
	if b.GuildID == "" || b.ChannelID == "" {
		return schedule.Batch{}, errors.New("--guild and --channel are required")
	}
	return b, nil
}
