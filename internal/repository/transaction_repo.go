package repository

import (
	"context"
	"errors"

	"github.com/boey-13/missing-persons-platform-sub001/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.PointTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.PointTransaction, error) {
	var trans model.PointTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListByUserID returns the newest transactions first, bounded by limit.
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.PointTransaction, error) {
	var transactions []*model.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.PointTransaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// SumByUserID totals the log for one user, split by direction. Both sums
// come back as non-negative numbers.
func (r *TransactionRepository) SumByUserID(ctx context.Context, tx *gorm.DB, userID int64) (earned int, spent int, err error) {
	if tx == nil {
		tx = r.db
	}

	type row struct {
		Type  string
		Total int
	}
	var rows []row
	err = tx.WithContext(ctx).
		Model(&model.PointTransaction{}).
		Select("type, COALESCE(SUM(points), 0) AS total").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}

	for _, r := range rows {
		switch r.Type {
		case model.TransactionTypeEarned:
			earned = r.Total
		case model.TransactionTypeSpent:
			spent = r.Total
		}
	}
	return earned, spent, nil
}
