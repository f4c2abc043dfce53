package draft

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"socialplane/services/channels"
)

// Status tracks a draft through the publishing pipeline. A draft starts in
// draft, becomes scheduled once approved with a publish time, and ends in one
// of the aggregate outcomes computed from its per-channel jobs.
type Status string

const (
	StatusDraft              Status = "draft"
	StatusScheduled          Status = "scheduled"
	StatusPartiallyPublished Status = "partially_published"
	StatusPublished          Status = "published"
	StatusFailed             Status = "failed"
)

func (s Status) String() string {
	switch s {
	case StatusDraft, StatusScheduled, StatusPartiallyPublished, StatusPublished, StatusFailed:
		return string(s)
	default:
		return "unknown"
	}
}

// Publishable reports whether the pipeline may pick the draft up. Failed and
// partially published drafts stay eligible so their open jobs can retry.
func (s Status) Publishable() bool {
	switch s {
	case StatusScheduled, StatusPartiallyPublished, StatusFailed:
		return true
	default:
		return false
	}
}

type Draft struct {
	ID           string         `gorm:"column:id;primaryKey"`
	BrandID      string         `gorm:"column:brand_id;index"`
	Title        string         `gorm:"column:title"`
	Body         string         `gorm:"column:body;type:text"`
	Hashtags     datatypes.JSON `gorm:"column:hashtags"` // JSON array of strings
	AssetIDs     datatypes.JSON `gorm:"column:asset_ids"`
	Channels     string         `gorm:"column:channels"` // comma separated channel keys
	Status       Status         `gorm:"column:status;type:varchar(30);default:'draft';index"`
	Approved     bool           `gorm:"column:approved;default:false"`
	ScheduledFor *time.Time     `gorm:"column:scheduled_for;index"`
	PublishedAt  *time.Time     `gorm:"column:published_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

func (Draft) TableName() string {
	return "drafts"
}

// HashtagList decodes the stored hashtag array. A missing or malformed
// column yields no hashtags rather than an error.
func (d *Draft) HashtagList() []string {
	var tags []string
	if len(d.Hashtags) > 0 {
		_ = json.Unmarshal(d.Hashtags, &tags)
	}
	return tags
}

// AssetIDList decodes the stored asset ID array.
func (d *Draft) AssetIDList() []string {
	var ids []string
	if len(d.AssetIDs) > 0 {
		_ = json.Unmarshal(d.AssetIDs, &ids)
	}
	return ids
}

// ChannelList parses the selected channels, dropping unknown entries.
func (d *Draft) ChannelList() []channels.Channel {
	return channels.ParseList(d.Channels)
}

// Due reports whether the draft should be picked up at now.
func (d *Draft) Due(now time.Time) bool {
	return d.Approved && d.Status.Publishable() &&
		d.ScheduledFor != nil && !d.ScheduledFor.After(now)
}
