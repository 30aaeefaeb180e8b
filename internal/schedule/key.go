package schedule

import "strings"

// DefaultInstance names the single instance of events that have no
// sub-occurrences.
const DefaultInstance = "default"

// InstanceKey addresses one recurring notification line within a batch.
type InstanceKey struct {
	EventType string
	Instance  string
}

// NewInstanceKey trims both parts and maps an empty instance to
// DefaultInstance.
func NewInstanceKey(eventType, instance string) InstanceKey {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		instance = DefaultInstance
	}
	return InstanceKey{EventType: strings.TrimSpace(eventType), Instance: instance}
}

func (k InstanceKey) String() string { return k.EventType + "/" + k.Instance }

// Less orders keys by event type, then instance.
func (k InstanceKey) Less(o InstanceKey) bool {
	if k.EventType != o.EventType {
		return k.EventType < o.EventType
	}
	return k.Instance < o.Instance
}

// Batch is the (guild, channel) pair a set of instances belongs to.
type Batch struct {
	GuildID   string
	ChannelID string
}

func (b Batch) String() string { return b.GuildID + ":" + b.ChannelID }
