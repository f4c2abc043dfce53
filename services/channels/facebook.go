package channels

import (
	"context"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"socialplane/pkg/config"
)

// FacebookPublisher posts to a brand's Facebook Page feed. Text posts are a
// single call; posts with an asset go through the photos or videos edge.
type FacebookPublisher struct {
	client *resty.Client
}

func NewFacebookPublisher(cfg *config.Config) *FacebookPublisher {
	return &FacebookPublisher{client: newGraphClient(cfg)}
}

func (p *FacebookPublisher) Channel() Channel { return Facebook }

type facebookPostResponse struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	Error  *graphError `json:"error"`
}

type facebookPermalinkResponse struct {
	PermalinkURL string      `json:"permalink_url"`
	Error        *graphError `json:"error"`
}

func (p *FacebookPublisher) Publish(ctx context.Context, cred Credential, content Content) Result {
	edge := "feed"
	form := map[string]string{
		"message":      content.Caption(),
		"access_token": cred.AccessToken,
	}
	if content.AssetURL != "" {
		delete(form, "message")
		if content.IsVideo {
			edge = "videos"
			form["file_url"] = content.AssetURL
			form["description"] = content.Caption()
		} else {
			edge = "photos"
			form["url"] = content.AssetURL
			form["caption"] = content.Caption()
		}
	}

	var body facebookPostResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&body).
		SetError(&body).
		Post("/" + cred.AccountID + "/" + edge)
	if err != nil {
		return failFromTransport("facebook post", err)
	}

	if body.Error != nil {
		return Fail(body.Error.kind(), body.Error.String())
	}

	postID := body.PostID
	if postID == "" {
		postID = body.ID
	}
	if postID == "" {
		return Fail(KindUnknown, "facebook post returned no id (status "+resp.Status()+")")
	}

	// Permalink is best effort; success is keyed on obtaining an id.
	return Ok(postID, p.permalink(ctx, cred, postID))
}

func (p *FacebookPublisher) permalink(ctx context.Context, cred Credential, postID string) string {
	var body facebookPermalinkResponse
	_, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "permalink_url",
			"access_token": cred.AccessToken,
		}).
		SetResult(&body).
		Get("/" + postID)
	if err != nil || body.Error != nil {
		zap.L().Warn("facebook permalink lookup failed",
			zap.String("post_id", postID),
			zap.String("error", body.Error.String()),
			zap.Error(err),
		)
		return ""
	}
	return body.PermalinkURL
}
