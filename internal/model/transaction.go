package model

import (
	"time"
)

const (
	TransactionTypeEarned = "EARNED"
	TransactionTypeSpent  = "SPENT"
)

// Action tags recorded on point transactions. Free-form by design; these
// are the ones the platform currently emits.
const (
	ActionRegistration     = "registration"
	ActionMissingReport    = "missing_report"
	ActionSightingReport   = "sighting_report"
	ActionSocialShare      = "social_share"
	ActionCommunityProject = "community_project"
	ActionRewardRedemption = "reward_redemption"
	ActionProjectReverted  = "project_status_reverted"
	ActionRecalculation    = "recalculation"
)

// PointTransaction is one entry of the append-only points log.
// Rows are never updated or deleted; the balance row is reconciled
// against their sum by PointsService.Recalculate.
type PointTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Type          string    `gorm:"type:varchar(16);not null" json:"type"` // EARNED or SPENT
	Points        int       `gorm:"not null" json:"points"`                // always positive
	Action        string    `gorm:"type:varchar(64);not null" json:"action"`
	Description   string    `gorm:"type:varchar(256)" json:"description"`
	Metadata      string    `gorm:"type:text" json:"metadata"` // opaque JSON payload
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transaction"
}
