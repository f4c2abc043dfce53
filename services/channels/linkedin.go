package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"socialplane/pkg/config"
)

// LinkedInPublisher posts a UGC share for the linked member or organization.
// The channel is reserved: it is only registered when LINKEDIN.ENABLED is
// set, and no draft targets it by default.
type LinkedInPublisher struct {
	client *resty.Client
}

func NewLinkedInPublisher(cfg *config.Config) *LinkedInPublisher {
	return &LinkedInPublisher{
		client: resty.New().
			SetBaseURL(cfg.LinkedIn.APIURL).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("X-Restli-Protocol-Version", "2.0.0"),
	}
}

func (p *LinkedInPublisher) Channel() Channel { return LinkedIn }

type linkedInShareResponse struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	ServiceError string `json:"serviceErrorCode"`
	Status       int    `json:"status"`
}

func (p *LinkedInPublisher) Publish(ctx context.Context, cred Credential, content Content) Result {
	payload := map[string]any{
		"author":         "urn:li:organization:" + cred.AccountID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]any{"text": content.Caption()},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var body linkedInShareResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetBody(payload).
		SetResult(&body).
		SetError(&body).
		Post("/ugcPosts")
	if err != nil {
		return failFromTransport("linkedin share", err)
	}

	if resp.IsError() || body.ID == "" {
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("linkedin share failed with status %s", resp.Status())
		}
		kind := ClassifyMessage(msg)
		if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
			kind = KindAuth
		}
		return Fail(kind, msg)
	}

	return Ok(body.ID, "https://www.linkedin.com/feed/update/"+body.ID)
}
