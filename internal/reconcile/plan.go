package reconcile

import (
	"sort"

	"eventbot/internal/schedule"
)

// Action is what a run did to one instance.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionEnabled  Action = "enabled"
	ActionDisabled Action = "disabled"
)

type op struct {
	key     schedule.InstanceKey
	action  Action
	row     schedule.Row // zero for created
	desired schedule.DesiredInstance
}

// plan derives one op per instance key whose state must change.
//
//	persisted  desired  action
//	absent     yes      created
//	enabled    yes      updated
//	disabled   yes      enabled
//	enabled    no       disabled
//	disabled   no       -
//	absent     no       -
//
// Disables of dropped event types come first, then configured event types.
// Both groups are sorted by event type, then instance.
func plan(base Baseline, desired schedule.DesiredSet) []op {
	var ops []op

	for _, ev := range base.EventTypes() {
		if desired.Has(ev) {
			continue
		}
		for _, k := range base.Keys(ev) {
			if r := base.Rows[k]; r.Enabled {
				ops = append(ops, op{key: k, action: ActionDisabled, row: r})
			}
		}
	}

	for _, ev := range desired.EventTypes() {
		for _, k := range unionKeys(base, desired, ev) {
			d, want := desired.Get(k)
			r, have := base.Row(k)
			switch {
			case want && !have:
				ops = append(ops, op{key: k, action: ActionCreated, desired: d})
			case want && r.Enabled:
				ops = append(ops, op{key: k, action: ActionUpdated, row: r, desired: d})
			case want:
				ops = append(ops, op{key: k, action: ActionEnabled, row: r, desired: d})
			case have && r.Enabled:
				ops = append(ops, op{key: k, action: ActionDisabled, row: r})
			}
		}
	}
	return ops
}

func unionKeys(base Baseline, desired schedule.DesiredSet, ev string) []schedule.InstanceKey {
	seen := map[schedule.InstanceKey]bool{}
	var out []schedule.InstanceKey
	for _, d := range desired.Instances(ev) {
		seen[d.Key] = true
		out = append(out, d.Key)
	}
	for _, k := range base.Keys(ev) {
		if !seen[k] {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
