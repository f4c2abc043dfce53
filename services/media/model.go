package media

import "time"

// Asset is an uploaded original. It lives either in our bucket (ObjectKey
// set) or at an external URL produced by the draft-generation side.
type Asset struct {
	ID        string    `gorm:"column:id;primaryKey"`
	BrandID   string    `gorm:"column:brand_id;index"`
	ObjectKey string    `gorm:"column:object_key;type:varchar(512)"`
	URL       string    `gorm:"column:url;type:varchar(1024)"`
	Mime      string    `gorm:"column:mime;type:varchar(100)"`
	SizeBytes int64     `gorm:"column:size_bytes"`
	Width     int       `gorm:"column:width"`
	Height    int       `gorm:"column:height"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Asset) TableName() string { return "assets" }

func (a *Asset) IsVideo() bool {
	return a.Mime == "video/mp4" || a.Mime == "video/quicktime"
}

// ProcessedImage is one cached platform-compliant rendition of an asset,
// unique per (asset, aspect ratio).
type ProcessedImage struct {
	ID        string    `gorm:"column:id;primaryKey"`
	AssetID   string    `gorm:"column:asset_id;uniqueIndex:idx_processed_images_asset_ratio,priority:1"`
	Ratio     string    `gorm:"column:ratio;type:varchar(20);uniqueIndex:idx_processed_images_asset_ratio,priority:2"`
	ObjectKey string    `gorm:"column:object_key;type:varchar(512)"`
	URL       string    `gorm:"column:url;type:varchar(1024)"`
	Width     int       `gorm:"column:width"`
	Height    int       `gorm:"column:height"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProcessedImage) TableName() string { return "processed_images" }
