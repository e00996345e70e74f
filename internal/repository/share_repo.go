package repository

import (
	"context"
	"errors"

	"github.com/boey-13/missing-persons-platform-sub001/internal/model"

	"gorm.io/gorm"
)

type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Get(ctx context.Context, userID, reportID int64, platform string) (*model.SocialShare, error) {
	var share model.SocialShare
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND report_id = ? AND platform = ?", userID, reportID, platform).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// GetForUpdate locks the share row inside tx so the check-and-set of
// points_awarded cannot race with a duplicate share request.
func (r *ShareRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, userID, reportID int64, platform string) (*model.SocialShare, error) {
	var share model.SocialShare
	err := lockForUpdate(tx.WithContext(ctx)).
		Where("user_id = ? AND report_id = ? AND platform = ?", userID, reportID, platform).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

func (r *ShareRepository) Create(ctx context.Context, tx *gorm.DB, share *model.SocialShare) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(share).Error
}

func (r *ShareRepository) Save(ctx context.Context, tx *gorm.DB, share *model.SocialShare) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Save(share).Error
}

func (r *ShareRepository) ListByReport(ctx context.Context, reportID int64) ([]*model.SocialShare, error) {
	var shares []*model.SocialShare
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at DESC").
		Find(&shares).Error
	return shares, err
}
