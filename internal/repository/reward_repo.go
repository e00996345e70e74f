package repository

import (
	"context"
	"errors"

	"github.com/boey-13/missing-persons-platform-sub001/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRewardNotFound   = errors.New("reward not found")
	ErrCategoryNotFound = errors.New("reward category not found")
	ErrOutOfStock       = errors.New("reward out of stock")
)

type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) Create(ctx context.Context, reward *model.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

func (r *RewardRepository) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	var reward model.Reward
	err := r.db.WithContext(ctx).First(&reward, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// GetByIDForUpdate locks the reward row for the duration of tx, so the
// stock check and the redeemed_count increment see a stable row.
func (r *RewardRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Reward, error) {
	var reward model.Reward
	err := lockForUpdate(tx.WithContext(ctx)).
		First(&reward, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// ListActive returns ACTIVE rewards in catalog creation order, optionally
// filtered to one category. categoryID == 0 means all categories.
func (r *RewardRepository) ListActive(ctx context.Context, categoryID int64) ([]*model.Reward, error) {
	query := r.db.WithContext(ctx).Where("status = ?", model.RewardStatusActive)
	if categoryID > 0 {
		query = query.Where("category_id = ?", categoryID)
	}

	var rewards []*model.Reward
	err := query.Order("created_at ASC, id ASC").Find(&rewards).Error
	return rewards, err
}

func (r *RewardRepository) Update(ctx context.Context, reward *model.Reward) error {
	result := r.db.WithContext(ctx).Save(reward)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRewardNotFound
	}
	return nil
}

func (r *RewardRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&model.Reward{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// IncrementRedeemed bumps redeemed_count with the stock ceiling re-checked
// in the WHERE clause: stock_quantity = 0 is unlimited, otherwise the
// update only lands while redeemed_count is still below the cap.
func (r *RewardRepository) IncrementRedeemed(ctx context.Context, tx *gorm.DB, id int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Reward{}).
		Where("id = ? AND (stock_quantity = 0 OR redeemed_count < stock_quantity)", id).
		UpdateColumn("redeemed_count", gorm.Expr("redeemed_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutOfStock
	}
	return nil
}

// ---- categories ----

func (r *RewardRepository) CreateCategory(ctx context.Context, category *model.RewardCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *RewardRepository) GetCategoryByID(ctx context.Context, id int64) (*model.RewardCategory, error) {
	var category model.RewardCategory
	err := r.db.WithContext(ctx).First(&category, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *RewardRepository) ListCategories(ctx context.Context) ([]*model.RewardCategory, error) {
	var categories []*model.RewardCategory
	err := r.db.WithContext(ctx).Order("id ASC").Find(&categories).Error
	return categories, err
}

func (r *RewardRepository) UpdateCategory(ctx context.Context, category *model.RewardCategory) error {
	result := r.db.WithContext(ctx).Save(category)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *RewardRepository) DeleteCategory(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&model.RewardCategory{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *RewardRepository) CountByCategory(ctx context.Context, categoryID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Reward{}).
		Where("category_id = ?", categoryID).
		Count(&total).Error
	return total, err
}
