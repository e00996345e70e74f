package model

import (
	"time"
)

// PointsBalance is the per-user points account.
// It is a materialized cache of the transaction log: at all times
// CurrentPoints == TotalEarned - TotalSpent. All mutation goes through
// the points service; nothing else writes these columns.
type PointsBalance struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentPoints int       `gorm:"not null;default:0" json:"current_points"`
	TotalEarned   int       `gorm:"not null;default:0" json:"total_earned"`
	TotalSpent    int       `gorm:"not null;default:0" json:"total_spent"`
	Version       int       `gorm:"not null;default:0" json:"version"` // guarded-update counter
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PointsBalance) TableName() string {
	return "user_points_balance"
}
