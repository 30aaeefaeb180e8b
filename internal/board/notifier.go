package board

import (
	"context"

	logx "eventbot/pkg/logx"
)

// Notifier is told once per reconcile run that a batch may have changed.
type Notifier interface {
	OnBatchChanged(ctx context.Context, guildID, channelID string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, guildID, channelID string) error

func (f NotifierFunc) OnBatchChanged(ctx context.Context, guildID, channelID string) error {
	return f(ctx, guildID, channelID)
}

// LogNotifier only logs. eventctl uses it when no bot is running.
type LogNotifier struct {
	Log logx.Logger
}

func (n LogNotifier) OnBatchChanged(ctx context.Context, guildID, channelID string) error {
	_ = ctx
	log := n.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log.Info("batch changed", logx.String("guild", guildID), logx.String("channel", channelID))
	return nil
}
