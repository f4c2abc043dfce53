package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"socialplane/pkg/config"
)

// instagramCore drives the Graph API container flow shared by feed and
// story publishing: create a media container, poll it until processed,
// then publish by container id.
type instagramCore struct {
	client *resty.Client

	imagePollAttempts int
	imagePollInterval time.Duration
	videoPollAttempts int
	videoPollInterval time.Duration
}

func newInstagramCore(cfg *config.Config) *instagramCore {
	return &instagramCore{
		client:            newGraphClient(cfg),
		imagePollAttempts: 10,
		imagePollInterval: 3 * time.Second,
		videoPollAttempts: 30,
		videoPollInterval: 5 * time.Second,
	}
}

type igContainerResponse struct {
	ID    string      `json:"id"`
	Error *graphError `json:"error"`
}

type igStatusResponse struct {
	StatusCode string      `json:"status_code"`
	ID         string      `json:"id"`
	Error      *graphError `json:"error"`
}

type igPublishResponse struct {
	ID    string      `json:"id"`
	Error *graphError `json:"error"`
}

type igPermalinkResponse struct {
	Permalink string      `json:"permalink"`
	Error     *graphError `json:"error"`
}

func (c *instagramCore) publish(ctx context.Context, cred Credential, content Content, mediaType string) (mediaID string, res Result) {
	if content.AssetURL == "" {
		return "", Fail(KindValidate, "instagram requires a media asset")
	}

	containerID, res := c.createContainer(ctx, cred, content, mediaType)
	if !res.Success {
		return "", res
	}

	if res = c.waitProcessed(ctx, cred, containerID, content.IsVideo); !res.Success {
		return "", res
	}

	return c.publishContainer(ctx, cred, containerID)
}

func (c *instagramCore) createContainer(ctx context.Context, cred Credential, content Content, mediaType string) (string, Result) {
	form := map[string]string{
		"caption":      content.Caption(),
		"access_token": cred.AccessToken,
	}
	if content.IsVideo {
		form["video_url"] = content.AssetURL
		if mediaType == "" {
			mediaType = "REELS"
		}
	} else {
		form["image_url"] = content.AssetURL
	}
	if mediaType != "" {
		form["media_type"] = mediaType
	}

	var body igContainerResponse
	_, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&body).
		SetError(&body).
		Post("/" + cred.AccountID + "/media")
	if err != nil {
		return "", failFromTransport("instagram container", err)
	}
	if body.Error != nil {
		return "", Fail(body.Error.kind(), body.Error.String())
	}
	if body.ID == "" {
		return "", Fail(KindUnknown, "instagram container returned no id")
	}
	return body.ID, Result{Success: true}
}

// waitProcessed polls the container on a bounded schedule. Videos get more
// attempts with longer spacing than images.
func (c *instagramCore) waitProcessed(ctx context.Context, cred Credential, containerID string, isVideo bool) Result {
	attempts, interval := c.imagePollAttempts, c.imagePollInterval
	if isVideo {
		attempts, interval = c.videoPollAttempts, c.videoPollInterval
	}

	for i := 0; i < attempts; i++ {
		var body igStatusResponse
		_, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"fields":       "status_code",
				"access_token": cred.AccessToken,
			}).
			SetResult(&body).
			SetError(&body).
			Get("/" + containerID)
		if err != nil {
			return failFromTransport("instagram container status", err)
		}
		if body.Error != nil {
			return Fail(body.Error.kind(), body.Error.String())
		}

		switch body.StatusCode {
		case "FINISHED":
			return Result{Success: true}
		case "ERROR", "EXPIRED":
			return Fail(KindValidate, fmt.Sprintf("instagram container processing failed (status %s)", body.StatusCode))
		}

		select {
		case <-ctx.Done():
			return Fail(KindTransient, "instagram container poll canceled: "+ctx.Err().Error())
		case <-time.After(interval):
		}
	}

	return Fail(KindTransient, fmt.Sprintf("instagram container not ready after %d checks", attempts))
}

func (c *instagramCore) publishContainer(ctx context.Context, cred Credential, containerID string) (string, Result) {
	var body igPublishResponse
	_, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"creation_id":  containerID,
			"access_token": cred.AccessToken,
		}).
		SetResult(&body).
		SetError(&body).
		Post("/" + cred.AccountID + "/media_publish")
	if err != nil {
		return "", failFromTransport("instagram publish", err)
	}
	if body.Error != nil {
		// Code 9007 means the media is still not ready even though the
		// poll reported FINISHED. A later attempt recovers it.
		if body.Error.Code == 9007 {
			return "", Fail(KindTransient, body.Error.String())
		}
		return "", Fail(body.Error.kind(), body.Error.String())
	}
	if body.ID == "" {
		return "", Fail(KindUnknown, "instagram publish returned no media id")
	}
	return body.ID, Result{Success: true}
}

func (c *instagramCore) permalink(ctx context.Context, cred Credential, mediaID string) string {
	var body igPermalinkResponse
	_, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "permalink",
			"access_token": cred.AccessToken,
		}).
		SetResult(&body).
		Get("/" + mediaID)
	if err != nil || body.Error != nil {
		zap.L().Warn("instagram permalink lookup failed",
			zap.String("media_id", mediaID),
			zap.String("error", body.Error.String()),
			zap.Error(err),
		)
		return ""
	}
	return body.Permalink
}

// InstagramFeedPublisher publishes photos and reels to the account's feed.
type InstagramFeedPublisher struct {
	core *instagramCore
}

func NewInstagramFeedPublisher(cfg *config.Config) *InstagramFeedPublisher {
	return &InstagramFeedPublisher{core: newInstagramCore(cfg)}
}

func (p *InstagramFeedPublisher) Channel() Channel { return InstagramFeed }

func (p *InstagramFeedPublisher) Publish(ctx context.Context, cred Credential, content Content) Result {
	mediaID, res := p.core.publish(ctx, cred, content, "")
	if !res.Success {
		return res
	}
	return Ok(mediaID, p.core.permalink(ctx, cred, mediaID))
}

// InstagramStoryPublisher publishes to the account's story. The external
// URL is intentionally left empty: story permalinks follow an unreliable
// pattern and are not stored.
type InstagramStoryPublisher struct {
	core *instagramCore
}

func NewInstagramStoryPublisher(cfg *config.Config) *InstagramStoryPublisher {
	return &InstagramStoryPublisher{core: newInstagramCore(cfg)}
}

func (p *InstagramStoryPublisher) Channel() Channel { return InstagramStory }

func (p *InstagramStoryPublisher) Publish(ctx context.Context, cred Credential, content Content) Result {
	mediaID, res := p.core.publish(ctx, cred, content, "STORIES")
	if !res.Success {
		return res
	}
	return Ok(mediaID, "")
}
