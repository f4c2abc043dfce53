package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"socialplane/pkg/mailer"
	"socialplane/services/brand"
	"socialplane/services/draft"
	"socialplane/services/postjob"
)

var Module = fx.Module("notify.module",
	fx.Provide(NewNotifier),
)

const previewRunes = 120

// Notifier emails a brand's admins and editors once a draft's publish cycle
// has fully settled.
type Notifier struct {
	sender mailer.Sender
	brands brand.Repository
}

func NewNotifier(sender mailer.Sender, brands brand.Repository) *Notifier {
	return &Notifier{sender: sender, brands: brands}
}

// DraftSettled sends the consolidated result email for a draft whose jobs
// are all terminal. accountDisconnected marks failures caused by a social
// account that lost its connection. Delivery errors are logged, never
// propagated; a lost email must not fail the publish cycle.
func (n *Notifier) DraftSettled(ctx context.Context, d *draft.Draft, jobs []postjob.PostJob, accountDisconnected bool) {
	recipients, err := n.brands.RecipientEmails(ctx, d.BrandID)
	if err != nil {
		zap.L().Error("load notification recipients", zap.String("brand_id", d.BrandID), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		zap.L().Debug("no notification recipients", zap.String("brand_id", d.BrandID))
		return
	}

	subject, body := n.compose(d, jobs, accountDisconnected)
	for _, to := range recipients {
		if err := n.sender.Send(to, subject, body); err != nil {
			zap.L().Error("send notification",
				zap.String("draft_id", d.ID),
				zap.String("to", to),
				zap.Error(err),
			)
		}
	}
}

func (n *Notifier) compose(d *draft.Draft, jobs []postjob.PostJob, accountDisconnected bool) (subject, body string) {
	var published, failed []postjob.PostJob
	for _, j := range jobs {
		switch j.Status {
		case postjob.StatusSuccess:
			published = append(published, j)
		case postjob.StatusFailed:
			failed = append(failed, j)
		}
	}

	title := d.Title
	if title == "" {
		title = Preview(d.Body)
	}

	switch {
	case len(failed) == 0:
		subject = fmt.Sprintf("Published: %s", title)
	case len(published) == 0:
		subject = fmt.Sprintf("Publishing failed: %s", title)
	default:
		subject = fmt.Sprintf("Partially published: %s", title)
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p><strong>%s</strong></p>", title)
	fmt.Fprintf(&b, "<p>%s</p>", Preview(d.Body))

	if len(published) > 0 {
		b.WriteString("<p>Published to:</p><ul>")
		for _, j := range published {
			name := j.Channel.DisplayName()
			if j.ExternalURL != nil && *j.ExternalURL != "" {
				fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, *j.ExternalURL, name)
			} else {
				fmt.Fprintf(&b, "<li>%s</li>", name)
			}
		}
		b.WriteString("</ul>")
	}

	if len(failed) > 0 {
		b.WriteString("<p>Failed:</p><ul>")
		for _, j := range failed {
			reason := ""
			if j.LastError != nil {
				reason = *j.LastError
			}
			fmt.Fprintf(&b, "<li>%s: %s</li>", j.Channel.DisplayName(), reason)
		}
		b.WriteString("</ul>")
		if accountDisconnected {
			b.WriteString("<p>One of the connected social accounts appears to be disconnected. Please reconnect it and retry the failed channels.</p>")
		}
	}

	b.WriteString("</body></html>")
	return subject, b.String()
}

// Preview truncates text for use in a subject line or summary.
func Preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= previewRunes {
		return string(runes)
	}
	return string(runes[:previewRunes]) + "..."
}
