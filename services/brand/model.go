package brand

import "time"

type MemberRole string

var (
	RoleAdmin  MemberRole = "admin"
	RoleEditor MemberRole = "editor"
	RoleViewer MemberRole = "viewer"
)

func (r MemberRole) String() string {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return string(r)
	default:
		return ""
	}
}

type Brand struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(120);not null"`
	Timezone  string    `gorm:"column:timezone;type:varchar(60)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Brand) TableName() string { return "brands" }

type BrandMember struct {
	ID        string     `gorm:"column:id;primaryKey"`
	BrandID   string     `gorm:"column:brand_id;index"`
	Email     string     `gorm:"column:email;type:varchar(255);not null"`
	Name      string     `gorm:"column:name;type:varchar(120)"`
	Role      MemberRole `gorm:"column:role;type:varchar(20)"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

func (BrandMember) TableName() string { return "brand_members" }
