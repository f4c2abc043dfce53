package channels

import (
	"context"
	"strings"
)

// Credential is a live, decrypted platform credential resolved by the
// executor just before a publish attempt.
type Credential struct {
	AccountID   string
	AccessToken string
}

// Content is the channel-agnostic payload of one publish attempt. AssetURL
// is empty for text-only posts and otherwise points at a publicly
// resolvable rendition.
type Content struct {
	Body     string
	Hashtags []string
	AssetURL string
	IsVideo  bool
}

// Caption joins body and hashtags the way every platform renders them.
func (c Content) Caption() string {
	if len(c.Hashtags) == 0 {
		return c.Body
	}
	return strings.TrimSpace(c.Body + "\n\n" + strings.Join(c.Hashtags, " "))
}

// ErrorKind classifies a failed publish attempt. Meta error codes are
// mapped first; free-text signature matching is the fallback for providers
// that only return prose.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindValidate  ErrorKind = "validation"
	KindTransient ErrorKind = "transient"
	KindUnknown   ErrorKind = "unknown"
)

// Result is the uniform outcome of one provider publish call. Providers
// never let an error escape past this shape.
type Result struct {
	Success     bool
	ExternalID  string
	ExternalURL string
	Err         string
	Kind        ErrorKind
}

func Ok(id, url string) Result {
	return Result{Success: true, ExternalID: id, ExternalURL: url}
}

func Fail(kind ErrorKind, msg string) Result {
	return Result{Success: false, Err: msg, Kind: kind}
}

// Publisher performs the platform-specific publish protocol for one channel.
type Publisher interface {
	Channel() Channel
	Publish(ctx context.Context, cred Credential, content Content) Result
}

// Registry maps channel names to their publishers. Lookups for channels
// without a registered publisher report unsupported.
type Registry struct {
	byChannel map[Channel]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{byChannel: make(map[Channel]Publisher, len(publishers))}
	for _, p := range publishers {
		r.byChannel[p.Channel()] = p
	}
	return r
}

func (r *Registry) Lookup(ch Channel) (Publisher, bool) {
	p, ok := r.byChannel[ch]
	return p, ok
}

func (r *Registry) Supported(ch Channel) bool {
	_, ok := r.byChannel[ch]
	return ok
}
