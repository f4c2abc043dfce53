package channels

import "strings"

// Channel is a canonical publish target name as stored on drafts and jobs.
type Channel string

const (
	Facebook       Channel = "facebook"
	InstagramFeed  Channel = "instagram_feed"
	InstagramStory Channel = "instagram_story"
	LinkedIn       Channel = "linkedin"
)

func (c Channel) String() string {
	switch c {
	case Facebook, InstagramFeed, InstagramStory, LinkedIn:
		return string(c)
	default:
		return ""
	}
}

// Provider returns the social account provider a channel publishes through.
func (c Channel) Provider() string {
	switch c {
	case Facebook:
		return "facebook"
	case InstagramFeed, InstagramStory:
		return "instagram"
	case LinkedIn:
		return "linkedin"
	default:
		return ""
	}
}

// DisplayName is the human-facing channel label used in notifications.
func (c Channel) DisplayName() string {
	switch c {
	case Facebook:
		return "Facebook"
	case InstagramFeed:
		return "Instagram Feed"
	case InstagramStory:
		return "Instagram Story"
	case LinkedIn:
		return "LinkedIn"
	default:
		return string(c)
	}
}

// ParseList splits a comma-joined channel token list as stored on a draft,
// dropping empty tokens and whitespace.
func ParseList(tokens string) []Channel {
	parts := strings.Split(tokens, ",")
	out := make([]Channel, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Channel(p))
	}
	return out
}
