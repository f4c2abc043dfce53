package account

import (
	"time"
)

type ConnectionStatus string

var (
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

func (s ConnectionStatus) String() string {
	switch s {
	case Connected, Disconnected:
		return string(s)
	default:
		return ""
	}
}

// SocialAccount links a brand to one external platform. Token columns hold
// sealed ciphertext, never plaintext.
type SocialAccount struct {
	ID             string           `gorm:"column:id;primaryKey"`
	BrandID        string           `gorm:"column:brand_id;index:idx_social_accounts_brand_provider,priority:1"`
	Provider       string           `gorm:"column:provider;index:idx_social_accounts_brand_provider,priority:2"` // facebook|instagram|linkedin
	ExternalID     string           `gorm:"column:external_id"`
	AccessToken    string           `gorm:"column:access_token;type:text"`
	RefreshToken   *string          `gorm:"column:refresh_token;type:text"`
	TokenExpiresAt *time.Time       `gorm:"column:token_expires_at"`
	Status         ConnectionStatus `gorm:"column:status;type:varchar(20);default:'connected'"`
	LastError      *string          `gorm:"column:last_error;type:text"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
}

func (SocialAccount) TableName() string {
	return "social_accounts"
}

func (a *SocialAccount) IsConnected() bool {
	return a != nil && a.Status == Connected
}

// ExpiresWithin reports whether the token expires inside the horizon. A
// missing expiry counts as expiring so unknown tokens get refreshed.
func (a *SocialAccount) ExpiresWithin(horizon time.Duration, now time.Time) bool {
	if a.TokenExpiresAt == nil {
		return true
	}
	return a.TokenExpiresAt.Before(now.Add(horizon))
}
