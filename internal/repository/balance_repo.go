package repository

import (
	"context"
	"errors"

	"github.com/boey-13/missing-persons-platform-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBalanceNotFound    = errors.New("points balance not found")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrConcurrentUpdate   = errors.New("concurrent balance update, please retry")
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, userID int64) (*model.PointsBalance, error) {
	var balance model.PointsBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetByUserIDForUpdate locks the balance row for the duration of tx.
// Every read-modify-write of a balance goes through this so that two
// concurrent deducts for the same user serialize on the row lock.
func (r *BalanceRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.PointsBalance, error) {
	var balance model.PointsBalance
	err := lockForUpdate(tx.WithContext(ctx)).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetOrCreate lazily creates the zeroed balance row on first award.
// OnConflict DoNothing makes the create race-safe against a concurrent
// first award for the same user.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID int64) (*model.PointsBalance, error) {
	balance, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, ErrBalanceNotFound) {
		return nil, err
	}

	newBalance := &model.PointsBalance{UserID: userID}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newBalance).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// AddPoints credits the balance: current and earned move together.
func (r *BalanceRepository) AddPoints(ctx context.Context, tx *gorm.DB, userID int64, points int) error {
	result := tx.WithContext(ctx).
		Model(&model.PointsBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"current_points": gorm.Expr("current_points + ?", points),
			"total_earned":   gorm.Expr("total_earned + ?", points),
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}
	return nil
}

// SpendPoints debits the balance with a guarded update: the WHERE clause
// re-checks current_points >= points so the deduction can never push the
// balance negative even if a concurrent writer slipped past the caller's
// own check.
func (r *BalanceRepository) SpendPoints(ctx context.Context, tx *gorm.DB, userID int64, points int) error {
	result := tx.WithContext(ctx).
		Model(&model.PointsBalance{}).
		Where("user_id = ? AND current_points >= ?", userID, points).
		Updates(map[string]interface{}{
			"current_points": gorm.Expr("current_points - ?", points),
			"total_spent":    gorm.Expr("total_spent + ?", points),
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		balance, err := r.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrBalanceNotFound) {
				return ErrInsufficientPoints
			}
			return err
		}
		if balance.CurrentPoints < points {
			return ErrInsufficientPoints
		}
		return ErrConcurrentUpdate
	}
	return nil
}

// Overwrite replaces the three running totals, for reconciliation.
func (r *BalanceRepository) Overwrite(ctx context.Context, tx *gorm.DB, userID int64, current, earned, spent int) error {
	result := tx.WithContext(ctx).
		Model(&model.PointsBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"current_points": current,
			"total_earned":   earned,
			"total_spent":    spent,
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}
	return nil
}
