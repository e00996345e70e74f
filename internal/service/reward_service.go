package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boey-13/missing-persons-platform-sub001/internal/config"
	"github.com/boey-13/missing-persons-platform-sub001/internal/infrastructure/lock"
	"github.com/boey-13/missing-persons-platform-sub001/internal/model"
	"github.com/boey-13/missing-persons-platform-sub001/internal/repository"
	"github.com/boey-13/missing-persons-platform-sub001/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// RewardService owns the catalog and the redemption flow. Balance
// mutation is delegated to the points ledger; redemption wraps the
// deduction, the voucher insert and the stock increment in one DB
// transaction so they commit or roll back together.
type RewardService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	points      *PointsService
	rewardRepo  *repository.RewardRepository
	voucherRepo *repository.VoucherRepository
	outboxRepo  *repository.OutboxRepository
}

func NewRewardService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, points *PointsService) *RewardService {
	return &RewardService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		points:      points,
		rewardRepo:  repository.NewRewardRepository(db),
		voucherRepo: repository.NewVoucherRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// RewardView is a catalog entry decorated with per-user flags.
type RewardView struct {
	*model.Reward
	IsAvailable bool `json:"is_available"`
	CanRedeem   bool `json:"can_redeem"`
}

type RewardPage struct {
	Items      []*RewardView `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// ListAvailable returns ACTIVE rewards in catalog order with availability
// and affordability flags, paginated in memory at the configured page
// size. categoryID == 0 means all categories.
func (s *RewardService) ListAvailable(ctx context.Context, userID, categoryID int64, onlyAffordable bool, page int) (*RewardPage, error) {
	currentPoints, err := s.points.GetCurrentPoints(ctx, userID)
	if err != nil {
		return nil, err
	}

	rewards, err := s.rewardRepo.ListActive(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	views := make([]*RewardView, 0, len(rewards))
	for _, reward := range rewards {
		view := &RewardView{
			Reward:      reward,
			IsAvailable: reward.IsAvailable(),
			CanRedeem:   currentPoints >= reward.PointsRequired,
		}
		if onlyAffordable && !view.CanRedeem {
			continue
		}
		views = append(views, view)
	}

	pageSize := s.cfg.Business.RewardPageSize
	if page < 1 {
		page = 1
	}
	total := len(views)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &RewardPage{
		Items:      views[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Redeem converts points into a voucher. A per-user Redis lock rejects
// duplicate submissions early; correctness rests on the DB transaction,
// which locks the reward row and the balance row before any write.
func (s *RewardService) Redeem(ctx context.Context, userID, rewardID int64) (*model.UserReward, error) {
	redeemLock := lock.NewRedeemLock(s.redisClient, userID, fmt.Sprintf("%d", idgen.NextID()))
	if err := redeemLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("redemption busy, please retry: %w", err)
	}
	defer redeemLock.Unlock(ctx)

	var voucher *model.UserReward

	err := s.db.Transaction(func(tx *gorm.DB) error {
		reward, err := s.rewardRepo.GetByIDForUpdate(ctx, tx, rewardID)
		if err != nil {
			if errors.Is(err, repository.ErrRewardNotFound) {
				return ErrRewardUnavailable
			}
			return err
		}

		enough, err := s.hasEnoughInTx(ctx, tx, userID, reward.PointsRequired)
		if err != nil {
			return err
		}
		if !enough {
			return ErrInsufficientPoints
		}

		if reward.Status != model.RewardStatusActive {
			return ErrRewardUnavailable
		}
		if reward.StockQuantity > 0 && reward.RedeemedCount >= reward.StockQuantity {
			return ErrOutOfStock
		}

		prefix := reward.VoucherPrefix
		if prefix == "" {
			prefix = s.cfg.Business.DefaultVoucherPrefix
		}
		validityDays := reward.ValidityDays
		if validityDays <= 0 {
			validityDays = s.cfg.Business.DefaultValidityDays
		}

		now := time.Now()
		voucher = &model.UserReward{
			UserID:      userID,
			RewardID:    reward.ID,
			VoucherCode: idgen.GenerateVoucherCode(prefix),
			PointsSpent: reward.PointsRequired,
			RedeemedAt:  now,
			ExpiresAt:   now.AddDate(0, 0, validityDays),
			Status:      model.VoucherStatusActive,
		}
		if err := s.voucherRepo.Create(ctx, tx, voucher); err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}

		if err := s.points.DeductInTx(ctx, tx, userID, reward.PointsRequired,
			model.ActionRewardRedemption,
			fmt.Sprintf("Redeemed reward: %s", reward.Name),
			map[string]interface{}{"reward_id": reward.ID, "voucher_code": voucher.VoucherCode}); err != nil {
			return err
		}

		if err := s.rewardRepo.IncrementRedeemed(ctx, tx, reward.ID); err != nil {
			if errors.Is(err, repository.ErrOutOfStock) {
				return ErrOutOfStock
			}
			return err
		}

		return s.writeRedeemedEvent(ctx, tx, voucher, reward)
	})
	if err != nil {
		return nil, err
	}

	return voucher, nil
}

// hasEnoughInTx checks the balance under its row lock so the result stays
// true until the transaction commits. No row means zero points.
func (s *RewardService) hasEnoughInTx(ctx context.Context, tx *gorm.DB, userID int64, required int) (bool, error) {
	balance, err := s.points.balanceRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return false, nil
		}
		return false, err
	}
	return balance.CurrentPoints >= required, nil
}

func (s *RewardService) writeRedeemedEvent(ctx context.Context, tx *gorm.DB, voucher *model.UserReward, reward *model.Reward) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"voucher_code": voucher.VoucherCode,
		"user_id":      voucher.UserID,
		"reward_id":    reward.ID,
		"reward_name":  reward.Name,
		"points_spent": voucher.PointsSpent,
		"expires_at":   voucher.ExpiresAt.Format(time.RFC3339),
	})

	msg := &model.OutboxMessage{
		MessageKey: voucher.VoucherCode,
		Topic:      s.cfg.Kafka.Topic.RewardRedeemed,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}

// GetUserRewards lists a user's vouchers, newest redeemed first.
func (s *RewardService) GetUserRewards(ctx context.Context, userID int64, status string) ([]*model.UserReward, error) {
	switch status {
	case "", model.VoucherStatusActive, model.VoucherStatusUsed, model.VoucherStatusExpired:
	default:
		return nil, fmt.Errorf("unknown voucher status %q", status)
	}
	return s.voucherRepo.ListByUserID(ctx, userID, status)
}

// MarkUsed transitions a voucher ACTIVE -> USED. Expiry is derived from
// the timestamp, so a voucher past expires_at is rejected even if the
// sweep job has not caught its status up yet.
func (s *RewardService) MarkUsed(ctx context.Context, voucherID int64) (*model.UserReward, error) {
	voucher, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	if voucher.Status != model.VoucherStatusActive {
		return nil, ErrVoucherNotActive
	}

	now := time.Now()
	if voucher.IsExpired(now) {
		// catch the status column up in passing
		if _, err := s.voucherRepo.MarkExpired(ctx, voucher.ID); err != nil {
			return nil, err
		}
		return nil, ErrVoucherExpired
	}

	flipped, err := s.voucherRepo.MarkUsed(ctx, voucher.ID, now)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, ErrVoucherNotActive
	}

	return s.voucherRepo.GetByID(ctx, voucher.ID)
}

// VoucherDetail carries what the QR display consumer needs.
type VoucherDetail struct {
	*model.UserReward
	RewardName string `json:"reward_name"`
}

func (s *RewardService) GetVoucherByCode(ctx context.Context, code string) (*VoucherDetail, error) {
	voucher, err := s.voucherRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	reward, err := s.rewardRepo.GetByID(ctx, voucher.RewardID)
	if err != nil && !errors.Is(err, repository.ErrRewardNotFound) {
		return nil, err
	}

	detail := &VoucherDetail{UserReward: voucher}
	if reward != nil {
		detail.RewardName = reward.Name
	}
	return detail, nil
}

// ---- administrative catalog CRUD ----

func (s *RewardService) CreateReward(ctx context.Context, reward *model.Reward) error {
	if reward.PointsRequired <= 0 {
		return ErrInvalidPoints
	}
	if _, err := s.rewardRepo.GetCategoryByID(ctx, reward.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return repository.ErrCategoryNotFound
		}
		return err
	}
	if reward.Status == "" {
		reward.Status = model.RewardStatusActive
	}
	if reward.ValidityDays <= 0 {
		reward.ValidityDays = s.cfg.Business.DefaultValidityDays
	}
	return s.rewardRepo.Create(ctx, reward)
}

func (s *RewardService) GetReward(ctx context.Context, id int64) (*model.Reward, error) {
	return s.rewardRepo.GetByID(ctx, id)
}

func (s *RewardService) UpdateReward(ctx context.Context, reward *model.Reward) error {
	if reward.PointsRequired <= 0 {
		return ErrInvalidPoints
	}
	if _, err := s.rewardRepo.GetByID(ctx, reward.ID); err != nil {
		return err
	}
	return s.rewardRepo.Update(ctx, reward)
}

// DeleteReward refuses to delete a reward with redemption history, so
// issued vouchers always keep a valid parent.
func (s *RewardService) DeleteReward(ctx context.Context, id int64) error {
	if _, err := s.rewardRepo.GetByID(ctx, id); err != nil {
		return err
	}

	redemptions, err := s.voucherRepo.CountByRewardID(ctx, id)
	if err != nil {
		return err
	}
	if redemptions > 0 {
		return ErrHasDependents
	}

	return s.rewardRepo.Delete(ctx, id)
}

func (s *RewardService) CreateCategory(ctx context.Context, category *model.RewardCategory) error {
	return s.rewardRepo.CreateCategory(ctx, category)
}

func (s *RewardService) ListCategories(ctx context.Context) ([]*model.RewardCategory, error) {
	return s.rewardRepo.ListCategories(ctx)
}

func (s *RewardService) UpdateCategory(ctx context.Context, category *model.RewardCategory) error {
	if _, err := s.rewardRepo.GetCategoryByID(ctx, category.ID); err != nil {
		return err
	}
	return s.rewardRepo.UpdateCategory(ctx, category)
}

// DeleteCategory refuses to delete a category that still owns rewards.
func (s *RewardService) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := s.rewardRepo.GetCategoryByID(ctx, id); err != nil {
		return err
	}

	children, err := s.rewardRepo.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return ErrHasDependents
	}

	return s.rewardRepo.DeleteCategory(ctx, id)
}
