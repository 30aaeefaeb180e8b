package schedule

import "strings"

type MentionKind string

const (
	MentionNone     MentionKind = "none"
	MentionEveryone MentionKind = "everyone"
	MentionHere     MentionKind = "here"
	MentionRole     MentionKind = "role"
	MentionUser     MentionKind = "user"
)

// Mention is who a reminder pings.
type Mention struct {
	Kind MentionKind
	ID   string
}

// ParseMention accepts the canonical forms ("everyone", "here", "role:<id>",
// "user:<id>", "none") as well as raw Discord syntax ("@here", "<@&id>",
// "<@id>"). Empty input means none.
func ParseMention(s string) (Mention, error) {
	raw := s
	s = strings.TrimSpace(s)
	low := strings.ToLower(s)
	switch low {
	case "", "none":
		return Mention{Kind: MentionNone}, nil
	case "everyone", "@everyone":
		return Mention{Kind: MentionEveryone}, nil
	case "here", "@here":
		return Mention{Kind: MentionHere}, nil
	}

	var m Mention
	switch {
	case strings.HasPrefix(low, "role:"):
		m = Mention{Kind: MentionRole, ID: strings.TrimSpace(s[len("role:"):])}
	case strings.HasPrefix(low, "user:"):
		m = Mention{Kind: MentionUser, ID: strings.TrimSpace(s[len("user:"):])}
	case strings.HasPrefix(s, "<@&") && strings.HasSuffix(s, ">"):
		m = Mention{Kind: MentionRole, ID: s[3 : len(s)-1]}
	case strings.HasPrefix(s, "<@!") && strings.HasSuffix(s, ">"):
		m = Mention{Kind: MentionUser, ID: s[3 : len(s)-1]}
	case strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">"):
		m = Mention{Kind: MentionUser, ID: s[2 : len(s)-1]}
	default:
		return Mention{}, invalid("mention", raw, "everyone|here|none|role:<id>|user:<id>", "unrecognised mention")
	}
	if err := m.Validate(); err != nil {
		return Mention{}, err
	}
	return m, nil
}

// Validate checks that role and user mentions carry a numeric id.
func (m Mention) Validate() error {
	switch m.Kind {
	case MentionNone, MentionEveryone, MentionHere, "":
		if m.ID != "" {
			return invalid("mention", m.String(), "no id", "only role and user mentions take an id")
		}
		return nil
	case MentionRole, MentionUser:
		if !isSnowflake(m.ID) {
			return invalid("mention", m.ID, "numeric id", "bad "+string(m.Kind)+" id")
		}
		return nil
	default:
		return invalid("mention", string(m.Kind), "everyone|here|none|role|user", "unknown mention kind")
	}
}

func (m Mention) String() string {
	switch m.Kind {
	case MentionRole, MentionUser:
		return string(m.Kind) + ":" + m.ID
	case "":
		return string(MentionNone)
	default:
		return string(m.Kind)
	}
}

func isSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
