package postjob

import (
	"time"

	"socialplane/services/channels"
)

type Status string

var (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"     // explicitly reset for immediate retry
	StatusGenerated  Status = "generated" // materialized by the orchestrator, not yet attempted
	StatusPublishing Status = "publishing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled" // owning draft became invalid
)

func (s Status) String() string {
	switch s {
	case StatusPending, StatusReady, StatusGenerated, StatusPublishing,
		StatusSuccess, StatusFailed, StatusCanceled:
		return string(s)
	default:
		return ""
	}
}

// Open reports whether a job is still in the pending-status retry set the
// due cycle picks up.
func (s Status) Open() bool {
	switch s {
	case StatusPending, StatusReady, StatusGenerated, StatusPublishing:
		return true
	default:
		return false
	}
}

// PostJob is one publish attempt lineage for exactly one (draft, channel)
// pair. The orchestrator never creates two jobs for the same pair.
type PostJob struct {
	ID             string           `gorm:"column:id;primaryKey"`
	DraftID        string           `gorm:"column:draft_id;uniqueIndex:idx_post_jobs_draft_channel,priority:1"`
	BrandID        string           `gorm:"column:brand_id;index"`
	Channel        channels.Channel `gorm:"column:channel;type:varchar(30);uniqueIndex:idx_post_jobs_draft_channel,priority:2"`
	ScheduledAt    time.Time        `gorm:"column:scheduled_at"`
	TargetMonth    string           `gorm:"column:target_month;type:varchar(7);index"` // YYYY-MM bucket
	Status         Status           `gorm:"column:status;type:varchar(20);default:'pending'"`
	AttemptCount   int              `gorm:"column:attempt_count;default:0"`
	LastAttemptAt  *time.Time       `gorm:"column:last_attempt_at"`
	ExternalPostID *string          `gorm:"column:external_post_id"`
	ExternalURL    *string          `gorm:"column:external_url"`
	LastError      *string          `gorm:"column:last_error;type:text"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
}

func (PostJob) TableName() string { return "post_jobs" }

// Terminal reports whether the job can never run again without an explicit
// manual reset.
func (j *PostJob) Terminal(maxAttempts int) bool {
	switch j.Status {
	case StatusSuccess, StatusCanceled:
		return true
	case StatusFailed:
		return j.AttemptCount >= maxAttempts
	default:
		return false
	}
}

// Publication is the immutable audit row created once a job first succeeds,
// one per (job, draft) pair.
type Publication struct {
	ID             string           `gorm:"column:id;primaryKey"`
	JobID          string           `gorm:"column:job_id;uniqueIndex:idx_publications_job_draft,priority:1"`
	DraftID        string           `gorm:"column:draft_id;uniqueIndex:idx_publications_job_draft,priority:2"`
	BrandID        string           `gorm:"column:brand_id;index"`
	Channel        channels.Channel `gorm:"column:channel;type:varchar(30)"`
	ExternalPostID string           `gorm:"column:external_post_id"`
	ExternalURL    *string          `gorm:"column:external_url"`
	PublishedAt    time.Time        `gorm:"column:published_at"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
}

func (Publication) TableName() string { return "publications" }
