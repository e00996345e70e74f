package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/boey-13/missing-persons-platform-sub001/internal/config"
	"github.com/boey-13/missing-persons-platform-sub001/internal/model"
	"github.com/boey-13/missing-persons-platform-sub001/pkg/idgen"
)

type rewardFixture struct {
	points  *PointsService
	rewards *RewardService
}

func newRewardFixture(t *testing.T) *rewardFixture {
	t.Helper()

	db := newTestDB(t)
	cfg := config.Defaults()
	points := NewPointsService(db, cfg)
	return &rewardFixture{
		points:  points,
		rewards: NewRewardService(db, newTestRedis(t), cfg, points),
	}
}

func (f *rewardFixture) mustCategory(t *testing.T, name string) *model.RewardCategory {
	t.Helper()
	category := &model.RewardCategory{Name: name}
	if err := f.rewards.CreateCategory(context.Background(), category); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

func (f *rewardFixture) mustReward(t *testing.T, categoryID int64, name string, price, stock int) *model.Reward {
	t.Helper()
	reward := &model.Reward{
		CategoryID:     categoryID,
		Name:           name,
		PointsRequired: price,
		StockQuantity:  stock,
		VoucherPrefix:  "TST",
		ValidityDays:   30,
	}
	if err := f.rewards.CreateReward(context.Background(), reward); err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return reward
}

func (f *rewardFixture) mustAward(t *testing.T, userID int64, points int) {
	t.Helper()
	if _, err := f.points.Award(context.Background(), userID, points, model.ActionRegistration, "", nil); err != nil {
		t.Fatalf("award: %v", err)
	}
}

func TestRedeemSuccess(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 50, 100)
	f.mustAward(t, 1, 75)

	voucher, err := f.rewards.Redeem(ctx, 1, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if voucher.Status != model.VoucherStatusActive {
		t.Errorf("voucher status = %s, want ACTIVE", voucher.Status)
	}
	if voucher.PointsSpent != 50 {
		t.Errorf("points spent = %d, want 50", voucher.PointsSpent)
	}
	if !strings.HasPrefix(voucher.VoucherCode, "TST") {
		t.Errorf("voucher code %q missing prefix TST", voucher.VoucherCode)
	}
	wantExpiry := voucher.RedeemedAt.AddDate(0, 0, 30)
	if !voucher.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires at = %v, want %v", voucher.ExpiresAt, wantExpiry)
	}

	current, _ := f.points.GetCurrentPoints(ctx, 1)
	if current != 25 {
		t.Errorf("current points = %d, want 25", current)
	}

	updated, err := f.rewards.GetReward(ctx, reward.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if updated.RedeemedCount != 1 {
		t.Errorf("redeemed count = %d, want 1", updated.RedeemedCount)
	}

	history, _ := f.points.GetHistory(ctx, 1, 50)
	if history[0].Type != model.TransactionTypeSpent || history[0].Action != model.ActionRewardRedemption {
		t.Errorf("newest transaction = {%s, %s}, want {SPENT, reward_redemption}",
			history[0].Type, history[0].Action)
	}
}

func TestRedeemInsufficientPointsIsAtomic(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	first := f.mustReward(t, category.ID, "Coffee voucher", 50, 100)
	second := f.mustReward(t, category.ID, "Lunch voucher", 50, 100)
	f.mustAward(t, 1, 75)

	if _, err := f.rewards.Redeem(ctx, 1, first.ID); err != nil {
		t.Fatalf("first redeem: %v", err)
	}

	// 25 points left, next redemption must fail cleanly
	if _, err := f.rewards.Redeem(ctx, 1, second.ID); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("second redeem error = %v, want ErrInsufficientPoints", err)
	}

	vouchers, err := f.rewards.GetUserRewards(ctx, 1, "")
	if err != nil {
		t.Fatalf("get user rewards: %v", err)
	}
	if len(vouchers) != 1 {
		t.Errorf("voucher count = %d, want 1 (failed redeem must not issue)", len(vouchers))
	}

	updated, _ := f.rewards.GetReward(ctx, second.ID)
	if updated.RedeemedCount != 0 {
		t.Errorf("redeemed count = %d, want 0", updated.RedeemedCount)
	}

	current, _ := f.points.GetCurrentPoints(ctx, 1)
	if current != 25 {
		t.Errorf("current points = %d, want 25", current)
	}
}

func TestRedeemInactiveReward(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 50, 0)
	reward.Status = model.RewardStatusInactive
	if err := f.rewards.UpdateReward(ctx, reward); err != nil {
		t.Fatalf("deactivate reward: %v", err)
	}
	f.mustAward(t, 1, 500)

	if _, err := f.rewards.Redeem(ctx, 1, reward.ID); !errors.Is(err, ErrRewardUnavailable) {
		t.Errorf("redeem error = %v, want ErrRewardUnavailable", err)
	}
}

func TestRedeemUnknownReward(t *testing.T) {
	f := newRewardFixture(t)
	f.mustAward(t, 1, 500)

	if _, err := f.rewards.Redeem(context.Background(), 1, 999); !errors.Is(err, ErrRewardUnavailable) {
		t.Errorf("redeem error = %v, want ErrRewardUnavailable", err)
	}
}

func TestStockCeiling(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Limited voucher", 10, 2)

	for user := int64(1); user <= 3; user++ {
		f.mustAward(t, user, 100)
	}

	if _, err := f.rewards.Redeem(ctx, 1, reward.ID); err != nil {
		t.Fatalf("redeem 1: %v", err)
	}
	if _, err := f.rewards.Redeem(ctx, 2, reward.ID); err != nil {
		t.Fatalf("redeem 2: %v", err)
	}
	if _, err := f.rewards.Redeem(ctx, 3, reward.ID); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("redeem 3 error = %v, want ErrOutOfStock", err)
	}

	updated, _ := f.rewards.GetReward(ctx, reward.ID)
	if updated.RedeemedCount != 2 {
		t.Errorf("redeemed count = %d, want 2", updated.RedeemedCount)
	}

	// a sold-out reward is also unavailable in the derived sense
	if updated.IsAvailable() {
		t.Error("sold-out reward reports available")
	}
}

func TestUnlimitedStock(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Unlimited voucher", 10, 0)

	f.mustAward(t, 1, 100)
	for i := 0; i < 5; i++ {
		if _, err := f.rewards.Redeem(ctx, 1, reward.ID); err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
	}

	updated, _ := f.rewards.GetReward(ctx, reward.ID)
	if updated.RedeemedCount != 5 || !updated.IsAvailable() {
		t.Errorf("redeemed count = %d, available = %v, want 5 and true",
			updated.RedeemedCount, updated.IsAvailable())
	}
}

func TestListAvailablePaginationAndFlags(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	other := f.mustCategory(t, "Merch")
	for i := 1; i <= 7; i++ {
		f.mustReward(t, category.ID, fmt.Sprintf("Reward %d", i), i*10, 0)
	}
	f.mustReward(t, other.ID, "Sticker pack", 10, 0)
	f.mustAward(t, 1, 30)

	page1, err := f.rewards.ListAvailable(ctx, 1, 0, false, 1)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if page1.Total != 8 || len(page1.Items) != 6 || page1.TotalPages != 2 {
		t.Errorf("page 1 = {total: %d, items: %d, pages: %d}, want {8, 6, 2}",
			page1.Total, len(page1.Items), page1.TotalPages)
	}
	// catalog creation order, so the 30-point reward is third
	if !page1.Items[2].CanRedeem || page1.Items[3].CanRedeem {
		t.Errorf("canRedeem flags wrong around the 30-point boundary")
	}

	page2, err := f.rewards.ListAvailable(ctx, 1, 0, false, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2.Items) != 2 {
		t.Errorf("page 2 items = %d, want 2", len(page2.Items))
	}

	affordable, err := f.rewards.ListAvailable(ctx, 1, 0, true, 1)
	if err != nil {
		t.Fatalf("list affordable: %v", err)
	}
	if affordable.Total != 4 {
		t.Errorf("affordable total = %d, want 4 (10, 20, 30 and the sticker pack)", affordable.Total)
	}

	byCategory, err := f.rewards.ListAvailable(ctx, 1, other.ID, false, 1)
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if byCategory.Total != 1 || byCategory.Items[0].Name != "Sticker pack" {
		t.Errorf("category filter returned %d items", byCategory.Total)
	}
}

func TestMarkUsed(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 10, 0)
	f.mustAward(t, 1, 20)

	voucher, err := f.rewards.Redeem(ctx, 1, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	used, err := f.rewards.MarkUsed(ctx, voucher.ID)
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if used.Status != model.VoucherStatusUsed || used.UsedAt == nil {
		t.Errorf("voucher = {%s, usedAt: %v}, want USED with timestamp", used.Status, used.UsedAt)
	}

	if _, err := f.rewards.MarkUsed(ctx, voucher.ID); !errors.Is(err, ErrVoucherNotActive) {
		t.Errorf("second mark used error = %v, want ErrVoucherNotActive", err)
	}
}

func TestMarkUsedExpiredVoucher(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 10, 0)

	// an old voucher written directly, past its expiry but still ACTIVE
	stale := &model.UserReward{
		UserID:      1,
		RewardID:    reward.ID,
		VoucherCode: idgen.GenerateVoucherCode("OLD"),
		PointsSpent: 10,
		RedeemedAt:  time.Now().AddDate(0, 0, -40),
		ExpiresAt:   time.Now().AddDate(0, 0, -10),
		Status:      model.VoucherStatusActive,
	}
	if err := f.rewards.voucherRepo.Create(ctx, nil, stale); err != nil {
		t.Fatalf("insert stale voucher: %v", err)
	}

	if _, err := f.rewards.MarkUsed(ctx, stale.ID); !errors.Is(err, ErrVoucherExpired) {
		t.Fatalf("mark used error = %v, want ErrVoucherExpired", err)
	}

	// status caught up in passing
	refreshed, err := f.rewards.voucherRepo.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if refreshed.Status != model.VoucherStatusExpired {
		t.Errorf("voucher status = %s, want EXPIRED", refreshed.Status)
	}
	if !refreshed.IsExpired(time.Now()) {
		t.Error("IsExpired = false for a voucher past expires_at")
	}
}

func TestGetUserRewardsOrderAndFilter(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 10, 0)
	f.mustAward(t, 1, 50)

	first, err := f.rewards.Redeem(ctx, 1, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	second, err := f.rewards.Redeem(ctx, 1, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := f.rewards.MarkUsed(ctx, first.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	all, err := f.rewards.GetUserRewards(ctx, 1, "")
	if err != nil {
		t.Fatalf("get user rewards: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Errorf("expected newest-first ordering of 2 vouchers")
	}

	active, err := f.rewards.GetUserRewards(ctx, 1, model.VoucherStatusActive)
	if err != nil {
		t.Fatalf("get active rewards: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Errorf("active filter returned %d vouchers", len(active))
	}

	if _, err := f.rewards.GetUserRewards(ctx, 1, "BOGUS"); err == nil {
		t.Error("expected error for unknown status filter")
	}
}

func TestGetVoucherByCode(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 10, 0)
	f.mustAward(t, 1, 20)

	voucher, err := f.rewards.Redeem(ctx, 1, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	detail, err := f.rewards.GetVoucherByCode(ctx, voucher.VoucherCode)
	if err != nil {
		t.Fatalf("get voucher by code: %v", err)
	}
	if detail.RewardName != "Coffee voucher" {
		t.Errorf("reward name = %q, want %q", detail.RewardName, "Coffee voucher")
	}

	if _, err := f.rewards.GetVoucherByCode(ctx, "NOPE"); !errors.Is(err, ErrVoucherNotFound) {
		t.Errorf("lookup error = %v, want ErrVoucherNotFound", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")
	reward := f.mustReward(t, category.ID, "Coffee voucher", 10, 0)
	f.mustAward(t, 1, 20)

	if _, err := f.rewards.Redeem(ctx, 1, reward.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if err := f.rewards.DeleteReward(ctx, reward.ID); !errors.Is(err, ErrHasDependents) {
		t.Errorf("delete redeemed reward error = %v, want ErrHasDependents", err)
	}
	if err := f.rewards.DeleteCategory(ctx, category.ID); !errors.Is(err, ErrHasDependents) {
		t.Errorf("delete non-empty category error = %v, want ErrHasDependents", err)
	}

	// rewards without history delete cleanly, then their category can go too
	clean := f.mustReward(t, category.ID, "Untouched voucher", 10, 0)
	if err := f.rewards.DeleteReward(ctx, clean.ID); err != nil {
		t.Errorf("delete clean reward: %v", err)
	}

	empty := f.mustCategory(t, "Empty")
	if err := f.rewards.DeleteCategory(ctx, empty.ID); err != nil {
		t.Errorf("delete empty category: %v", err)
	}
}

func TestCreateRewardValidation(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	category := f.mustCategory(t, "Food")

	bad := &model.Reward{CategoryID: category.ID, Name: "Free", PointsRequired: 0}
	if err := f.rewards.CreateReward(ctx, bad); !errors.Is(err, ErrInvalidPoints) {
		t.Errorf("create error = %v, want ErrInvalidPoints", err)
	}

	orphan := &model.Reward{CategoryID: 999, Name: "Orphan", PointsRequired: 10}
	if err := f.rewards.CreateReward(ctx, orphan); err == nil {
		t.Error("expected error for unknown category")
	}

	reward := &model.Reward{CategoryID: category.ID, Name: "Defaulted", PointsRequired: 10}
	if err := f.rewards.CreateReward(ctx, reward); err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if reward.Status != model.RewardStatusActive || reward.ValidityDays != 30 {
		t.Errorf("defaults = {%s, %d}, want {ACTIVE, 30}", reward.Status, reward.ValidityDays)
	}
}
