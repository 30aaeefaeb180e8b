package reconcile

import (
	"fmt"
	"strings"
	"time"

	"eventbot/internal/schedule"
)

// Change is one applied action.
type Change struct {
	Key         schedule.InstanceKey
	Action      Action
	DisplayName string
	RowID       int64
}

// Report summarizes a run. Changes and Errors follow plan order.
type Report struct {
	RunID     string
	GuildID   string
	ChannelID string

	Created  int
	Updated  int
	Enabled  int
	Disabled int

	Changes  []Change
	PerEvent map[string][]Change
	Errors   []*InstanceError
	// RefreshErr is the board notification failure, if any.
	RefreshErr error
	Took       time.Duration
}

func (r *Report) Failed() int { return len(r.Errors) }

// OK reports whether every planned action succeeded.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

func (r *Report) add(c Change) {
	switch c.Action {
	case ActionCreated:
		r.Created++
	case ActionUpdated:
		r.Updated++
	case ActionEnabled:
		r.Enabled++
	case ActionDisabled:
		r.Disabled++
	}
	r.Changes = append(r.Changes, c)
	if r.PerEvent == nil {
		r.PerEvent = map[string][]Change{}
	}
	r.PerEvent[c.Key.EventType] = append(r.PerEvent[c.Key.EventType], c)
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "created=%d updated=%d enabled=%d disabled=%d failed=%d",
		r.Created, r.Updated, r.Enabled, r.Disabled, len(r.Errors))
	if r.RefreshErr != nil {
		fmt.Fprintf(&b, " refresh_err=%q", r.RefreshErr.Error())
	}
	return b.String()
}
