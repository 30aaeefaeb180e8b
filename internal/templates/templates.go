// Package templates resolves the presentation payload (title, description,
// images) attached to reminders of an event type.
package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

var ErrInvalidEventType = errors.New("templates: invalid event type")

// Template is one payload candidate. Title and Description may use the
// {event} and {instance} placeholders.
type Template struct {
	EventType    string `yaml:"-"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	ImageURL     string `yaml:"image_url"`
	ThumbnailURL string `yaml:"thumbnail_url"`
}

// Lookup returns the templates registered for an event type, most preferred
// first. An event without templates yields an empty slice and no error.
type Lookup interface {
	TemplatesForEvent(ctx context.Context, eventType string) ([]Template, error)
}

// Expand substitutes the placeholders in Title and Description.
func (t Template) Expand(event, instance string) Template {
	r := strings.NewReplacer("{event}", event, "{instance}", instance)
	t.Title = r.Replace(t.Title)
	t.Description = r.Replace(t.Description)
	return t
}

// Static serves templates from memory.
type Static map[string][]Template

func (s Static) TemplatesForEvent(ctx context.Context, eventType string) ([]Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := s[eventType]
	out := make([]Template, len(src))
	for i, t := range src {
		t.EventType = eventType
		out[i] = t
	}
	return out, nil
}

var eventTypeRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Dir reads <dir>/<event_type>.yaml on every call. The file holds either a
// single template mapping or a sequence of them.
type Dir struct {
	Path string
}

func (d Dir) TemplatesForEvent(ctx context.Context, eventType string) ([]Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !eventTypeRe.MatchString(eventType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}
	b, err := os.ReadFile(filepath.Join(d.Path, eventType+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("templates %s: %w", eventType, err)
	}
	for i := range out {
		out[i].EventType = eventType
	}
	return out, nil
}

func parse(b []byte) ([]Template, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []Template
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var one Template
		if err := root.Decode(&one); err != nil {
			return nil, err
		}
		return []Template{one}, nil
	default:
		return nil, errors.New("expected a mapping or a sequence")
	}
}

// Memoize caches results, errors included, per event type. One memoized
// lookup serves a single reconcile run so a failing source is asked once.
func Memoize(l Lookup) Lookup {
	if l == nil {
		return nil
	}
	return &memo{next: l, seen: map[string]memoEntry{}}
}

type memoEntry struct {
	list []Template
	err  error
}

type memo struct {
	next Lookup

	mu   sync.Mutex
	seen map[string]memoEntry
}

func (m *memo) TemplatesForEvent(ctx context.Context, eventType string) ([]Template, error) {
	m.mu.Lock()
	e, ok := m.seen[eventType]
	m.mu.Unlock()
	if ok {
		return e.list, e.err
	}
	list, err := m.next.TemplatesForEvent(ctx, eventType)
	if ctx.Err() != nil {
		// A cancelled call says nothing about the source.
		return list, err
	}
	m.mu.Lock()
	m.seen[eventType] = memoEntry{list: list, err: err}
	m.mu.Unlock()
	return list, err
}
