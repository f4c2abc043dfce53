package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"socialplane/pkg/config"
	"socialplane/services/channels"
	"socialplane/services/draft"
	"socialplane/services/notify"
	"socialplane/services/postjob"
)

var ErrDraftNotFound = errors.New("pipeline: draft not found")

// Summary is the outcome of one due cycle.
type Summary struct {
	Drafts    int
	Attempted int
	Succeeded int
	Failed    int
}

// Orchestrator drives the publish pipeline: it discovers due drafts,
// materializes their per-channel jobs, runs the executor over each eligible
// job, recomputes the draft's aggregate status, and fires the notifier once
// every job has settled. Drafts and jobs are processed one at a time.
type Orchestrator struct {
	drafts     draft.Repository
	jobs       postjob.Repository
	executor   *Executor
	notifier   *notify.Notifier
	heartbeats *HeartbeatStore
	node       *snowflake.Node
	cfg        *config.Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewOrchestrator(
	drafts draft.Repository,
	jobs postjob.Repository,
	executor *Executor,
	notifier *notify.Notifier,
	heartbeats *HeartbeatStore,
	node *snowflake.Node,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		drafts:     drafts,
		jobs:       jobs,
		executor:   executor,
		notifier:   notifier,
		heartbeats: heartbeats,
		node:       node,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RunDueCycle picks up to limit due drafts and runs their publishable jobs.
// The heartbeat is written even when nothing is due.
func (o *Orchestrator) RunDueCycle(ctx context.Context, limit int) (Summary, error) {
	now := o.now().UTC()
	if err := o.heartbeats.Touch(ctx, HeartbeatJobName, now); err != nil {
		zap.L().Error("write heartbeat", zap.Error(err))
	}

	if limit <= 0 {
		limit = o.cfg.Publish.BatchLimit
	}

	due, err := o.drafts.FindDue(ctx, now, limit)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for i := range due {
		// Re-read: the draft may have been deleted or withdrawn since the
		// due query ran.
		d, err := o.drafts.FindByID(ctx, due[i].ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("reload due draft", zap.String("draft_id", due[i].ID), zap.Error(err))
			continue
		}
		if err != nil || !d.Due(o.now().UTC()) {
			if n, cancelErr := o.jobs.CancelOpen(ctx, due[i].ID); cancelErr != nil {
				zap.L().Error("cancel orphaned jobs", zap.String("draft_id", due[i].ID), zap.Error(cancelErr))
			} else if n > 0 {
				zap.L().Info("canceled jobs of invalid draft",
					zap.String("draft_id", due[i].ID), zap.Int64("jobs", n))
			}
			continue
		}

		if err := o.materializeJobs(ctx, d); err != nil {
			zap.L().Error("materialize jobs", zap.String("draft_id", d.ID), zap.Error(err))
			continue
		}

		s := o.processDraft(ctx, d, false)
		summary.Drafts++
		summary.Attempted += s.Attempted
		summary.Succeeded += s.Succeeded
		summary.Failed += s.Failed
	}
	return summary, nil
}

// RunImmediate publishes one draft now, resetting its publishable jobs to a
// fresh attempt budget. It never creates jobs the due cycle has not already
// materialized unless the draft has none at all. Drafts that are unapproved
// or not in a publishable status are returned untouched.
func (o *Orchestrator) RunImmediate(ctx context.Context, draftID string) (*draft.Draft, []postjob.PostJob, error) {
	d, err := o.drafts.FindByID(ctx, draftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDraftNotFound
		}
		return nil, nil, err
	}

	// A draft approved but never flipped to scheduled can still be
	// published on demand.
	if d.Status == draft.StatusDraft && d.Approved {
		if err := o.drafts.UpdateStatus(ctx, d.ID, draft.StatusScheduled); err != nil {
			return nil, nil, err
		}
		d.Status = draft.StatusScheduled
	}

	// Only approved drafts in a publishable status may reach the platforms.
	if !d.Approved || !d.Status.Publishable() {
		return o.snapshot(ctx, d.ID)
	}

	if _, err := o.jobs.ResetForImmediate(ctx, d.ID); err != nil {
		return nil, nil, err
	}

	existing, err := o.jobs.ListByDraft(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(existing) == 0 {
		if err := o.materializeJobs(ctx, d); err != nil {
			return nil, nil, err
		}
	}

	o.processDraft(ctx, d, true)
	return o.snapshot(ctx, d.ID)
}

// RetryFailed re-runs only the failed jobs of a draft.
func (o *Orchestrator) RetryFailed(ctx context.Context, draftID string) (*draft.Draft, []postjob.PostJob, error) {
	d, err := o.drafts.FindByID(ctx, draftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDraftNotFound
		}
		return nil, nil, err
	}

	n, err := o.jobs.ResetFailed(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}
	if n > 0 {
		o.processDraft(ctx, d, true)
	}
	return o.snapshot(ctx, d.ID)
}

func (o *Orchestrator) snapshot(ctx context.Context, draftID string) (*draft.Draft, []postjob.PostJob, error) {
	d, err := o.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := o.jobs.ListByDraft(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}
	return d, jobs, nil
}

// materializeJobs creates one job per selected channel the draft does not
// yet have. The unique (draft_id, channel) index backs the never-twice
// invariant even under concurrent cycles.
func (o *Orchestrator) materializeJobs(ctx context.Context, d *draft.Draft) error {
	existing, err := o.jobs.ListByDraft(ctx, d.ID)
	if err != nil {
		return err
	}
	have := make(map[channels.Channel]bool, len(existing))
	for _, j := range existing {
		have[j.Channel] = true
	}

	scheduledAt := o.now().UTC()
	if d.ScheduledFor != nil {
		scheduledAt = *d.ScheduledFor
	}
	for _, ch := range d.ChannelList() {
		if have[ch] {
			continue
		}
		job := postjob.NewJob(o.node, d.ID, d.BrandID, ch, scheduledAt)
		if err := o.jobs.Create(ctx, job); err != nil {
			return err
		}
		zap.L().Info("materialized job",
			zap.String("draft_id", d.ID), zap.String("channel", ch.String()))
	}
	return nil
}

// processDraft runs the eligible jobs of one draft, performs the bounded
// in-process retry pass, recomputes the aggregate status, and notifies once
// everything is terminal. ignoreRetryDelay bypasses the minimum inter-retry
// interval for explicitly requested runs.
func (o *Orchestrator) processDraft(ctx context.Context, d *draft.Draft, ignoreRetryDelay bool) Summary {
	var summary Summary
	accountDisconnected := false

	run := func(bypassDelay bool) {
		jobs, err := o.jobs.ListByDraft(ctx, d.ID)
		if err != nil {
			zap.L().Error("list draft jobs", zap.String("draft_id", d.ID), zap.Error(err))
			return
		}
		for i := range jobs {
			job := &jobs[i]
			if !o.eligible(job, bypassDelay) {
				continue
			}
			outcome := o.executor.Execute(ctx, job, d)
			if !outcome.Executed {
				continue
			}
			summary.Attempted++
			if outcome.Success {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			if outcome.AccountDisconnected {
				accountDisconnected = true
			}
		}
	}

	run(ignoreRetryDelay)

	// One in-process retry pass absorbs slow platform-side processing,
	// such as a video container that was not ready on the first call.
	if o.hasRetryable(ctx, d.ID) {
		o.sleep(ctx, o.cfg.Publish.RetryPassDelay)
		if ctx.Err() == nil {
			run(true)
		}
	}

	o.finishDraft(ctx, d, summary.Attempted > 0, accountDisconnected)
	return summary
}

// eligible applies the per-job guards: unsupported channels are left alone,
// a fresh publishing claim is presumed in flight, exhausted failures need an
// explicit reset, and failures respect the minimum inter-retry interval.
func (o *Orchestrator) eligible(job *postjob.PostJob, bypassDelay bool) bool {
	if !o.executor.registry.Supported(job.Channel) {
		return false
	}
	now := o.now().UTC()
	switch job.Status {
	case postjob.StatusPending, postjob.StatusReady, postjob.StatusGenerated:
		return true
	case postjob.StatusPublishing:
		return job.LastAttemptAt == nil ||
			now.Sub(*job.LastAttemptAt) >= o.cfg.Publish.StuckAfter
	case postjob.StatusFailed:
		if job.AttemptCount >= o.cfg.Publish.MaxAttempts {
			return false
		}
		if bypassDelay || job.LastAttemptAt == nil {
			return true
		}
		return now.Sub(*job.LastAttemptAt) >= o.cfg.Publish.MinRetryDelay
	default:
		return false
	}
}

func (o *Orchestrator) hasRetryable(ctx context.Context, draftID string) bool {
	jobs, err := o.jobs.ListByDraftStatuses(ctx, draftID, []postjob.Status{postjob.StatusFailed})
	if err != nil {
		zap.L().Error("list retryable jobs", zap.String("draft_id", draftID), zap.Error(err))
		return false
	}
	for i := range jobs {
		if jobs[i].AttemptCount < o.cfg.Publish.MaxAttempts {
			return true
		}
	}
	return false
}

// finishDraft recomputes the aggregate status and, when the cycle executed
// at least one attempt and every job is terminal, sends the consolidated
// notification.
func (o *Orchestrator) finishDraft(ctx context.Context, d *draft.Draft, attempted, accountDisconnected bool) {
	jobs, err := o.jobs.ListByDraft(ctx, d.ID)
	if err != nil {
		zap.L().Error("list jobs for aggregation", zap.String("draft_id", d.ID), zap.Error(err))
		return
	}

	if status, ok := draft.Aggregate(jobs, o.cfg.Publish.MaxAttempts); ok {
		if status != d.Status {
			if err := o.drafts.UpdateStatus(ctx, d.ID, status); err != nil {
				zap.L().Error("update draft status", zap.String("draft_id", d.ID), zap.Error(err))
				return
			}
			d.Status = status
		}
		if status == draft.StatusPublished || status == draft.StatusPartiallyPublished {
			if err := o.drafts.SetPublishedAtIfUnset(ctx, d.ID, o.now().UTC()); err != nil {
				zap.L().Error("stamp published_at", zap.String("draft_id", d.ID), zap.Error(err))
			}
		}
	}

	if attempted && draft.AllTerminal(jobs, o.cfg.Publish.MaxAttempts) {
		o.notifier.DraftSettled(ctx, d, jobs, accountDisconnected)
	}
}
