package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boey-13/missing-persons-platform-sub001/internal/config"
	"github.com/boey-13/missing-persons-platform-sub001/internal/model"
	"github.com/boey-13/missing-persons-platform-sub001/internal/repository"
	"github.com/boey-13/missing-persons-platform-sub001/pkg/idgen"

	"gorm.io/gorm"
)

// PointsService is the single writer of points balances. Every mutation
// funnels through Award/Deduct so the ledger invariant
// current == earned - spent holds after every call.
type PointsService struct {
	db              *gorm.DB
	cfg             *config.Config
	balanceRepo     *repository.BalanceRepository
	transactionRepo *repository.TransactionRepository
	shareRepo       *repository.ShareRepository
	outboxRepo      *repository.OutboxRepository
}

func NewPointsService(db *gorm.DB, cfg *config.Config) *PointsService {
	return &PointsService{
		db:              db,
		cfg:             cfg,
		balanceRepo:     repository.NewBalanceRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		shareRepo:       repository.NewShareRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

func encodeMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	payload, _ := json.Marshal(metadata)
	return string(payload)
}

// Award credits points and appends the matching ledger entry in one
// transaction. The balance row is created lazily on first award.
func (s *PointsService) Award(ctx context.Context, userID int64, points int, action, description string, metadata map[string]interface{}) (*model.PointsBalance, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}

	if _, err := s.balanceRepo.GetOrCreate(ctx, userID); err != nil {
		return nil, fmt.Errorf("get or create balance: %w", err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		return s.awardInTx(ctx, tx, userID, points, action, description, metadata)
	})
	if err != nil {
		return nil, err
	}

	return s.balanceRepo.GetByUserID(ctx, userID)
}

// awardInTx assumes the caller holds the balance row lock.
func (s *PointsService) awardInTx(ctx context.Context, tx *gorm.DB, userID int64, points int, action, description string, metadata map[string]interface{}) error {
	if err := s.balanceRepo.AddPoints(ctx, tx, userID, points); err != nil {
		return fmt.Errorf("add points: %w", err)
	}

	trans := &model.PointTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Type:          model.TransactionTypeEarned,
		Points:        points,
		Action:        action,
		Description:   description,
		Metadata:      encodeMetadata(metadata),
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	return s.writeEvent(ctx, tx, trans)
}

// Deduct debits points after re-checking the balance under the row lock,
// so two concurrent deducts can never both pass with only one covered.
func (s *PointsService) Deduct(ctx context.Context, userID int64, points int, action, description string, metadata map[string]interface{}) (*model.PointsBalance, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.DeductInTx(ctx, tx, userID, points, action, description, metadata)
	})
	if err != nil {
		return nil, err
	}

	return s.balanceRepo.GetByUserID(ctx, userID)
}

// DeductInTx runs the deduction inside a caller-supplied transaction.
// RewardService uses this so voucher issuance and the deduction commit or
// roll back together; the ledger still owns the mutation.
func (s *PointsService) DeductInTx(ctx context.Context, tx *gorm.DB, userID int64, points int, action, description string, metadata map[string]interface{}) error {
	if points <= 0 {
		return ErrInvalidPoints
	}

	balance, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return ErrInsufficientPoints
		}
		return err
	}
	if balance.CurrentPoints < points {
		return ErrInsufficientPoints
	}

	if err := s.balanceRepo.SpendPoints(ctx, tx, userID, points); err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return ErrInsufficientPoints
		}
		return fmt.Errorf("spend points: %w", err)
	}

	trans := &model.PointTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Type:          model.TransactionTypeSpent,
		Points:        points,
		Action:        action,
		Description:   description,
		Metadata:      encodeMetadata(metadata),
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	return s.writeEvent(ctx, tx, trans)
}

// writeEvent records the ledger change in the outbox. Notifications are
// the consumer's concern; the ledger never calls a notifier.
func (s *PointsService) writeEvent(ctx context.Context, tx *gorm.DB, trans *model.PointTransaction) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"transaction_no": trans.TransactionNo,
		"user_id":        trans.UserID,
		"type":           trans.Type,
		"points":         trans.Points,
		"action":         trans.Action,
	})

	msg := &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.cfg.Kafka.Topic.PointsEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}

// GetCurrentPoints returns 0 for users without a balance row. Reads never
// create the row.
func (s *PointsService) GetCurrentPoints(ctx context.Context, userID int64) (int, error) {
	balance, err := s.balanceRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.CurrentPoints, nil
}

func (s *PointsService) HasEnoughPoints(ctx context.Context, userID int64, required int) (bool, error) {
	current, err := s.GetCurrentPoints(ctx, userID)
	if err != nil {
		return false, err
	}
	return current >= required, nil
}

// GetHistory returns the newest transactions first, capped at the
// configured limit.
func (s *PointsService) GetHistory(ctx context.Context, userID int64, limit int) ([]*model.PointTransaction, error) {
	max := s.cfg.Business.HistoryLimit
	if limit <= 0 || limit > max {
		limit = max
	}
	return s.transactionRepo.ListByUserID(ctx, userID, limit)
}

// Recalculate rebuilds the balance from the transaction log, repairing
// any drift. Safe to call at any time; idempotent.
func (s *PointsService) Recalculate(ctx context.Context, userID int64) (*model.PointsBalance, error) {
	if _, err := s.balanceRepo.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, userID); err != nil {
			return err
		}

		earned, spent, err := s.transactionRepo.SumByUserID(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}

		return s.balanceRepo.Overwrite(ctx, tx, userID, earned-spent, earned, spent)
	})
	if err != nil {
		return nil, err
	}

	return s.balanceRepo.GetByUserID(ctx, userID)
}

// ---- fixed-amount award wrappers for platform events ----

func (s *PointsService) AwardRegistration(ctx context.Context, userID int64) (*model.PointsBalance, error) {
	return s.Award(ctx, userID, s.cfg.Business.RegistrationPoints,
		model.ActionRegistration, "Welcome bonus for joining the platform", nil)
}

func (s *PointsService) AwardMissingReport(ctx context.Context, userID, reportID int64) (*model.PointsBalance, error) {
	return s.Award(ctx, userID, s.cfg.Business.MissingReportPoints,
		model.ActionMissingReport, "Missing person report submitted",
		map[string]interface{}{"report_id": reportID})
}

func (s *PointsService) AwardSightingApproved(ctx context.Context, userID, reportID int64) (*model.PointsBalance, error) {
	return s.Award(ctx, userID, s.cfg.Business.SightingReportPoints,
		model.ActionSightingReport, "Sighting report approved",
		map[string]interface{}{"report_id": reportID})
}

// AwardProjectCompletion uses the project's own point value rather than a
// global amount.
func (s *PointsService) AwardProjectCompletion(ctx context.Context, userID, projectID int64, points int) (*model.PointsBalance, error) {
	return s.Award(ctx, userID, points,
		model.ActionCommunityProject, "Community project completed",
		map[string]interface{}{"project_id": projectID})
}

// RevertProjectPoints claws back a project award when an admin reverts
// the project's completed status.
func (s *PointsService) RevertProjectPoints(ctx context.Context, userID, projectID int64, points int) (*model.PointsBalance, error) {
	return s.Deduct(ctx, userID, points,
		model.ActionProjectReverted, "Community project completion reverted",
		map[string]interface{}{"project_id": projectID})
}

// SocialShareResult reports whether a share earned points. A repeat share
// is a no-op, not an error.
type SocialShareResult struct {
	Awarded bool                 `json:"awarded"`
	Points  int                  `json:"points"`
	Balance *model.PointsBalance `json:"balance,omitempty"`
}

// AwardSocialShare awards at most once per (user, report, platform). The
// idempotency record is checked and set under its row lock in the same
// transaction as the award, so a duplicate share can never double-earn.
func (s *PointsService) AwardSocialShare(ctx context.Context, userID, reportID int64, platform, shareURL string) (*SocialShareResult, error) {
	if !model.ValidPlatform(platform) {
		return nil, ErrInvalidPlatform
	}

	// Fast path: already awarded, skip the transaction entirely.
	existing, err := s.shareRepo.Get(ctx, userID, reportID, platform)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.PointsAwarded {
		return &SocialShareResult{Awarded: false}, nil
	}

	if _, err := s.balanceRepo.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	points := s.cfg.Business.SocialSharePoints
	awarded := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		share, err := s.shareRepo.GetForUpdate(ctx, tx, userID, reportID, platform)
		if err != nil {
			return err
		}

		if share == nil {
			share = &model.SocialShare{
				UserID:   userID,
				ReportID: reportID,
				Platform: platform,
			}
		} else if share.PointsAwarded {
			// lost the race to an identical request
			return nil
		}
		share.ShareURL = shareURL
		share.PointsAwarded = true
		if err := s.shareRepo.Save(ctx, tx, share); err != nil {
			return fmt.Errorf("save share record: %w", err)
		}

		if _, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.awardInTx(ctx, tx, userID, points, model.ActionSocialShare,
			fmt.Sprintf("Shared missing person report on %s", platform),
			map[string]interface{}{"report_id": reportID, "platform": platform}); err != nil {
			return err
		}

		awarded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !awarded {
		return &SocialShareResult{Awarded: false}, nil
	}

	balance, err := s.balanceRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SocialShareResult{Awarded: true, Points: points, Balance: balance}, nil
}
