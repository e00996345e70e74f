package repository

import (
	"context"
	"errors"
	"time"

	"github.com/boey-13/missing-persons-platform-sub001/internal/model"

	"gorm.io/gorm"
)

var ErrVoucherNotFound = errors.New("voucher not found")

type VoucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

func (r *VoucherRepository) Create(ctx context.Context, tx *gorm.DB, voucher *model.UserReward) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(voucher).Error
}

func (r *VoucherRepository) GetByID(ctx context.Context, id int64) (*model.UserReward, error) {
	var voucher model.UserReward
	err := r.db.WithContext(ctx).First(&voucher, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*model.UserReward, error) {
	var voucher model.UserReward
	err := r.db.WithContext(ctx).Where("voucher_code = ?", code).First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

func (r *VoucherRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.UserReward, error) {
	var voucher model.UserReward
	err := lockForUpdate(tx.WithContext(ctx)).
		First(&voucher, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

// ListByUserID returns the user's vouchers, newest redeemed first.
// status == "" means all statuses.
func (r *VoucherRepository) ListByUserID(ctx context.Context, userID int64, status string) ([]*model.UserReward, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var vouchers []*model.UserReward
	err := query.Order("redeemed_at DESC, id DESC").Find(&vouchers).Error
	return vouchers, err
}

func (r *VoucherRepository) Save(ctx context.Context, tx *gorm.DB, voucher *model.UserReward) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Save(voucher).Error
}

func (r *VoucherRepository) CountByRewardID(ctx context.Context, rewardID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.UserReward{}).
		Where("reward_id = ?", rewardID).
		Count(&total).Error
	return total, err
}

// MarkUsed flips ACTIVE -> USED with the status transition guarded in the
// WHERE clause; a concurrent use or expiry sweep makes it report false.
func (r *VoucherRepository) MarkUsed(ctx context.Context, id int64, usedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.UserReward{}).
		Where("id = ? AND status = ?", id, model.VoucherStatusActive).
		Updates(map[string]interface{}{
			"status":  model.VoucherStatusUsed,
			"used_at": usedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredActive finds ACTIVE vouchers whose expires_at has passed,
// for the expiry sweep job.
func (r *VoucherRepository) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]*model.UserReward, error) {
	var vouchers []*model.UserReward
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.VoucherStatusActive, before).
		Limit(limit).
		Find(&vouchers).Error
	return vouchers, err
}

// MarkExpired flips an ACTIVE voucher to EXPIRED. Guarded on status so
// a concurrent MarkUsed cannot be overwritten.
func (r *VoucherRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.UserReward{}).
		Where("id = ? AND status = ?", id, model.VoucherStatusActive).
		Update("status", model.VoucherStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
