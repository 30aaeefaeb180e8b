// Package systemd reports service state to the systemd supervisor through
// sd_notify. Every call is a no-op when the process was not started by
// systemd (NOTIFY_SOCKET unset).
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "eventbot/pkg/logx"
)

// Notifier sends sd_notify messages. The zero value is ready to use.
type Notifier struct {
	Log logx.Logger

	notify   func(unsetEnv bool, state string) (bool, error)
	watchdog func(unsetEnv bool) (time.Duration, error)
}

func (n Notifier) send(state string) bool {
	fn := n.notify
	if fn == nil {
		fn = daemon.SdNotify
	}
	sent, err := fn(false, state)
	if err != nil && !n.Log.IsZero() {
		n.Log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
	return sent
}

// Ready marks startup as finished (Type=notify units).
func (n Notifier) Ready() bool { return n.send(daemon.SdNotifyReady) }

// Stopping tells systemd a shutdown is in progress.
func (n Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n Notifier) Status(s string) bool { return n.send("STATUS=" + s) }

// Watchdog pings the service watchdog at half the configured WatchdogSec
// until ctx is done. It returns immediately when no watchdog is configured.
func (n Notifier) Watchdog(ctx context.Context) {
	fn := n.watchdog
	if fn == nil {
		fn = daemon.SdWatchdogEnabled
	}
	interval, err := fn(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
