package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"socialplane/pkg/config"
	"socialplane/services/account"
	"socialplane/services/channels"
	"socialplane/services/draft"
	"socialplane/services/media"
	"socialplane/services/postjob"
)

// Outcome reports what a single execution did with a job.
type Outcome struct {
	// Executed is true when the claim succeeded and an attempt was charged.
	Executed bool
	Success  bool
	// AccountDisconnected is set when the attempt failed because the
	// social account is, or was detected to be, disconnected.
	AccountDisconnected bool
}

// Executor runs exactly one publish attempt for one job. Every call that
// claims the job charges exactly one attempt and leaves the job in success
// or failed before returning.
type Executor struct {
	jobs      postjob.Repository
	accounts  account.Repository
	refresher *account.Refresher
	assets    *media.Preprocessor
	registry  *channels.Registry
	cfg       *config.Config

	now func() time.Time
}

func NewExecutor(
	jobs postjob.Repository,
	accounts account.Repository,
	refresher *account.Refresher,
	assets *media.Preprocessor,
	registry *channels.Registry,
	cfg *config.Config,
) *Executor {
	return &Executor{
		jobs:      jobs,
		accounts:  accounts,
		refresher: refresher,
		assets:    assets,
		registry:  registry,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (e *Executor) Execute(ctx context.Context, job *postjob.PostJob, d *draft.Draft) Outcome {
	log := zap.L().With(
		zap.String("draft_id", d.ID),
		zap.String("job_id", job.ID),
		zap.String("channel", job.Channel.String()),
	)

	publisher, ok := e.registry.Lookup(job.Channel)
	if !ok {
		// Do not charge the attempt budget for a channel nobody can serve.
		msg := fmt.Sprintf("unsupported channel %q", job.Channel)
		if err := e.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
			log.Error("mark job failed", zap.Error(err))
		}
		return Outcome{}
	}

	claimed, err := e.jobs.Claim(ctx, job.ID, e.now().UTC(), e.cfg.Publish.StuckAfter)
	if err != nil {
		log.Error("claim job", zap.Error(err))
		return Outcome{}
	}
	if !claimed {
		log.Debug("job already claimed by another execution")
		return Outcome{}
	}

	acct, err := e.accounts.ByBrandProvider(ctx, job.BrandID, job.Channel.Provider())
	if err != nil {
		return e.fail(ctx, log, job.ID, fmt.Sprintf("load social account: %v", err), false)
	}
	if acct == nil {
		return e.fail(ctx, log, job.ID,
			fmt.Sprintf("no connected %s account for brand", job.Channel.Provider()), true)
	}

	cred, err := e.refresher.EnsureFresh(ctx, acct)
	if err != nil {
		if err == account.ErrNotConnected {
			return e.fail(ctx, log, job.ID, fmt.Sprintf("%s account is disconnected", job.Channel.Provider()), true)
		}
		return e.fail(ctx, log, job.ID, fmt.Sprintf("resolve credential: %v", err), false)
	}

	prepared, err := e.assets.Ensure(ctx, d.AssetIDList(), job.Channel)
	if err != nil {
		// Validation failures and transient asset errors both consume the
		// attempt; neither reaches the platform.
		return e.fail(ctx, log, job.ID, err.Error(), false)
	}

	result := publisher.Publish(ctx, cred, channels.Content{
		Body:     d.Body,
		Hashtags: d.HashtagList(),
		AssetURL: prepared.AssetURL,
		IsVideo:  prepared.IsVideo,
	})

	if !result.Success {
		disconnected := result.Kind == channels.KindAuth || channels.IsAuthError(result.Err)
		if disconnected {
			if err := e.accounts.MarkDisconnected(ctx, acct.ID, result.Err); err != nil {
				log.Error("mark account disconnected", zap.Error(err))
			}
		}
		return e.fail(ctx, log, job.ID, result.Err, disconnected)
	}

	var externalURL *string
	if result.ExternalURL != "" {
		externalURL = &result.ExternalURL
	}
	if err := e.jobs.MarkSuccess(ctx, job.ID, result.ExternalID, externalURL); err != nil {
		log.Error("mark job success", zap.Error(err))
		return Outcome{Executed: true}
	}

	job.Status = postjob.StatusSuccess
	job.ExternalPostID = &result.ExternalID
	job.ExternalURL = externalURL
	if err := e.jobs.UpsertPublication(ctx, job, e.now().UTC()); err != nil {
		log.Error("write publication record", zap.Error(err))
	}

	log.Info("published", zap.String("external_post_id", result.ExternalID))
	return Outcome{Executed: true, Success: true}
}

func (e *Executor) fail(ctx context.Context, log *zap.Logger, jobID, msg string, disconnected bool) Outcome {
	if err := e.jobs.MarkFailed(ctx, jobID, msg); err != nil {
		log.Error("mark job failed", zap.Error(err))
	}
	log.Warn("publish attempt failed", zap.String("reason", msg))
	return Outcome{Executed: true, AccountDisconnected: disconnected}
}
