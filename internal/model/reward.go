package model

import (
	"time"
)

const (
	RewardStatusActive   = "ACTIVE"
	RewardStatusInactive = "INACTIVE"
)

// RewardCategory groups catalog entries for browsing.
type RewardCategory struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Description string    `gorm:"type:varchar(512)" json:"description"`
	Icon        string    `gorm:"type:varchar(128)" json:"icon"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RewardCategory) TableName() string {
	return "reward_category"
}

// Reward is a catalog entry priced in points.
// StockQuantity == 0 means unlimited stock; otherwise RedeemedCount
// never exceeds it.
type Reward struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID     int64     `gorm:"index;not null" json:"category_id"`
	Name           string    `gorm:"type:varchar(128);not null" json:"name"`
	Description    string    `gorm:"type:varchar(512)" json:"description"`
	PointsRequired int       `gorm:"not null" json:"points_required"`
	StockQuantity  int       `gorm:"not null;default:0" json:"stock_quantity"`
	RedeemedCount  int       `gorm:"not null;default:0" json:"redeemed_count"`
	ImagePath      string    `gorm:"type:varchar(256)" json:"image_path"`
	VoucherPrefix  string    `gorm:"type:varchar(16)" json:"voucher_prefix"`
	ValidityDays   int       `gorm:"not null;default:30" json:"validity_days"`
	Status         string    `gorm:"type:varchar(16);index;not null;default:ACTIVE" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Reward) TableName() string {
	return "reward"
}

// IsAvailable derives availability at read time: active and not sold out.
func (r *Reward) IsAvailable() bool {
	if r.Status != RewardStatusActive {
		return false
	}
	return r.StockQuantity == 0 || r.RedeemedCount < r.StockQuantity
}
