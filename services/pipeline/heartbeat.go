package pipeline

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HeartbeatJobName keys the liveness row the due cycle writes on every
// invocation, drafts or not.
const HeartbeatJobName = "publish_due_cycle"

type Heartbeat struct {
	JobName   string    `gorm:"column:job_name;primaryKey"`
	BeatAt    time.Time `gorm:"column:beat_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Heartbeat) TableName() string { return "heartbeats" }

type HeartbeatStore struct {
	db *gorm.DB
}

func NewHeartbeatStore(db *gorm.DB) *HeartbeatStore {
	return &HeartbeatStore{db: db}
}

func (s *HeartbeatStore) Touch(ctx context.Context, jobName string, at time.Time) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"beat_at", "updated_at"}),
		}).
		Create(&Heartbeat{JobName: jobName, BeatAt: at}).Error
}
