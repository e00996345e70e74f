package model

import (
	"time"
)

const (
	VoucherStatusActive  = "ACTIVE"
	VoucherStatusUsed    = "USED"
	VoucherStatusExpired = "EXPIRED"
)

// UserReward is a voucher issued by a successful redemption.
// PointsSpent snapshots the catalog price at redemption time so later
// price changes cannot rewrite history.
type UserReward struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	RewardID    int64      `gorm:"index;not null" json:"reward_id"`
	VoucherCode string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"voucher_code"`
	PointsSpent int        `gorm:"not null" json:"points_spent"`
	RedeemedAt  time.Time  `gorm:"not null" json:"redeemed_at"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	Status      string     `gorm:"type:varchar(16);index;not null;default:ACTIVE" json:"status"`
	UsedAt      *time.Time `json:"used_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserReward) TableName() string {
	return "user_reward"
}

// IsExpired derives expiry from the timestamp, never from Status. The
// expiry sweep job only catches the status column up to this.
func (v *UserReward) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
