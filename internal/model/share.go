package model

import (
	"time"
)

const (
	PlatformFacebook  = "facebook"
	PlatformTwitter   = "twitter"
	PlatformInstagram = "instagram"
	PlatformWhatsApp  = "whatsapp"
)

// ValidPlatform reports whether the social network is one we award for.
func ValidPlatform(platform string) bool {
	switch platform {
	case PlatformFacebook, PlatformTwitter, PlatformInstagram, PlatformWhatsApp:
		return true
	}
	return false
}

// SocialShare is the idempotency record for share awards: at most one
// point award per (user, report, platform). Repeat shares update the row
// instead of inserting a second one; the unique index backs that up.
type SocialShare struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"uniqueIndex:uniq_user_report_platform;not null" json:"user_id"`
	ReportID      int64     `gorm:"uniqueIndex:uniq_user_report_platform;not null" json:"report_id"`
	Platform      string    `gorm:"type:varchar(32);uniqueIndex:uniq_user_report_platform;not null" json:"platform"`
	ShareURL      string    `gorm:"type:varchar(512)" json:"share_url"`
	PointsAwarded bool      `gorm:"not null;default:false" json:"points_awarded"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SocialShare) TableName() string {
	return "social_share"
}
