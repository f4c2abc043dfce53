package postjob

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"socialplane/services/channels"
)

var Module = fx.Module("postjob.module",
	fx.Provide(NewRepository),
)

// Repository describes database operations available for post jobs and
// publication audit rows.
type Repository interface {
	Create(ctx context.Context, job *PostJob) error
	Get(ctx context.Context, jobID string) (*PostJob, error)
	ListByDraft(ctx context.Context, draftID string) ([]PostJob, error)
	ListByDraftStatuses(ctx context.Context, draftID string, statuses []Status) ([]PostJob, error)
	// Claim transitions a job to publishing and charges one attempt in a
	// single conditional update. It refuses when another execution already
	// holds the job in publishing and its last attempt is younger than
	// stuckAfter.
	Claim(ctx context.Context, jobID string, now time.Time, stuckAfter time.Duration) (bool, error)
	MarkSuccess(ctx context.Context, jobID, externalID string, externalURL *string) error
	MarkFailed(ctx context.Context, jobID, message string) error
	CancelOpen(ctx context.Context, draftID string) (int64, error)
	// ResetForImmediate puts every publishable job of a draft back into
	// ready with a cleared attempt budget.
	ResetForImmediate(ctx context.Context, draftID string) (int64, error)
	// ResetFailed revives only failed jobs of a draft.
	ResetFailed(ctx context.Context, draftID string) (int64, error)
	UpsertPublication(ctx context.Context, job *PostJob, publishedAt time.Time) error
}

type gormRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewRepository(db *gorm.DB, node *snowflake.Node) Repository {
	return &gormRepository{db: db, node: node}
}

// NewJob builds a job row for one (draft, channel) pair.
func NewJob(node *snowflake.Node, draftID, brandID string, ch channels.Channel, scheduledAt time.Time) *PostJob {
	return &PostJob{
		ID:          node.Generate().String(),
		DraftID:     draftID,
		BrandID:     brandID,
		Channel:     ch,
		ScheduledAt: scheduledAt,
		TargetMonth: scheduledAt.Format("2006-01"),
		Status:      StatusGenerated,
	}
}

func (r *gormRepository) Create(ctx context.Context, job *PostJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *gormRepository) Get(ctx context.Context, jobID string) (*PostJob, error) {
	var job PostJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *gormRepository) ListByDraft(ctx context.Context, draftID string) ([]PostJob, error) {
	var jobs []PostJob
	err := r.db.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *gormRepository) ListByDraftStatuses(ctx context.Context, draftID string, statuses []Status) ([]PostJob, error) {
	var jobs []PostJob
	err := r.db.WithContext(ctx).
		Where("draft_id = ? AND status IN ?", draftID, statuses).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *gormRepository) Claim(ctx context.Context, jobID string, now time.Time, stuckAfter time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&PostJob{}).
		Where("id = ?", jobID).
		Where("status <> ? OR last_attempt_at IS NULL OR last_attempt_at <= ?", StatusPublishing, now.Add(-stuckAfter)).
		Updates(map[string]any{
			"status":          StatusPublishing,
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) MarkSuccess(ctx context.Context, jobID, externalID string, externalURL *string) error {
	return r.db.WithContext(ctx).
		Model(&PostJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":           StatusSuccess,
			"external_post_id": externalID,
			"external_url":     externalURL,
			"last_error":       nil,
		}).Error
}

func (r *gormRepository) MarkFailed(ctx context.Context, jobID, message string) error {
	return r.db.WithContext(ctx).
		Model(&PostJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     StatusFailed,
			"last_error": message,
		}).Error
}

func (r *gormRepository) CancelOpen(ctx context.Context, draftID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&PostJob{}).
		Where("draft_id = ? AND status IN ?", draftID,
			[]Status{StatusPending, StatusReady, StatusGenerated, StatusPublishing}).
		Update("status", StatusCanceled)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) ResetForImmediate(ctx context.Context, draftID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&PostJob{}).
		Where("draft_id = ? AND status IN ?", draftID,
			[]Status{StatusPending, StatusReady, StatusGenerated, StatusFailed}).
		Updates(map[string]any{
			"status":          StatusReady,
			"attempt_count":   0,
			"last_attempt_at": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) ResetFailed(ctx context.Context, draftID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&PostJob{}).
		Where("draft_id = ? AND status = ?", draftID, StatusFailed).
		Updates(map[string]any{
			"status":          StatusReady,
			"attempt_count":   0,
			"last_attempt_at": nil,
		})
	return res.RowsAffected, res.Error
}

// UpsertPublication writes the audit row for a successful job, updating in
// place when the job is reprocessed rather than duplicating.
func (r *gormRepository) UpsertPublication(ctx context.Context, job *PostJob, publishedAt time.Time) error {
	externalID := ""
	if job.ExternalPostID != nil {
		externalID = *job.ExternalPostID
	}

	var existing Publication
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND draft_id = ?", job.ID, job.DraftID).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).
			Model(&existing).
			Updates(map[string]any{
				"external_post_id": externalID,
				"external_url":     job.ExternalURL,
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return r.db.WithContext(ctx).Create(&Publication{
		ID:             r.node.Generate().String(),
		JobID:          job.ID,
		DraftID:        job.DraftID,
		BrandID:        job.BrandID,
		Channel:        job.Channel,
		ExternalPostID: externalID,
		ExternalURL:    job.ExternalURL,
		PublishedAt:    publishedAt,
	}).Error
}
