package handler

import (
	"errors"
	"strconv"

	"github.com/boey-13/missing-persons-platform-sub001/internal/config"
	"github.com/boey-13/missing-persons-platform-sub001/internal/model"
	"github.com/boey-13/missing-persons-platform-sub001/internal/repository"
	"github.com/boey-13/missing-persons-platform-sub001/internal/service"
	"github.com/boey-13/missing-persons-platform-sub001/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler wires the points ledger and reward catalog to HTTP. Handlers
// only bind, call services and translate errors; all business rules live
// in the service layer.
type Handler struct {
	pointsService *service.PointsService
	rewardService *service.RewardService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	points := service.NewPointsService(db, cfg)
	return &Handler{
		pointsService: points,
		rewardService: service.NewRewardService(db, rdb, cfg, points),
	}
}

// businessError maps service sentinels to fixed user-visible messages.
// Anything unmapped is a server error; raw internals never reach users.
func businessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientPoints):
		response.BusinessError(c, response.CodeInsufficientPoints, "Insufficient points")
	case errors.Is(err, service.ErrRewardUnavailable):
		response.BusinessError(c, response.CodeRewardUnavailable, "Reward is not available")
	case errors.Is(err, service.ErrOutOfStock):
		response.BusinessError(c, response.CodeOutOfStock, "Reward is out of stock")
	case errors.Is(err, service.ErrVoucherNotActive):
		response.BusinessError(c, response.CodeVoucherNotActive, "Voucher is not active")
	case errors.Is(err, service.ErrVoucherExpired):
		response.BusinessError(c, response.CodeVoucherExpired, "Voucher has expired")
	case errors.Is(err, service.ErrVoucherNotFound):
		response.BusinessError(c, response.CodeVoucherNotFound, "Voucher not found")
	case errors.Is(err, service.ErrHasDependents):
		response.BusinessError(c, response.CodeHasDependents, "Record is in use and cannot be deleted")
	case errors.Is(err, service.ErrInvalidPlatform):
		response.BusinessError(c, response.CodeInvalidPlatform, "Unsupported share platform")
	case errors.Is(err, service.ErrInvalidPoints):
		response.ParamError(c, "Points must be greater than zero")
	case errors.Is(err, repository.ErrRewardNotFound):
		response.Error(c, response.CodeNotFound, "Reward not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		response.Error(c, response.CodeNotFound, "Category not found")
	default:
		response.ServerError(c, "Something went wrong, please try again")
	}
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.ParamError(c, "invalid user_id")
		return 0, false
	}
	return userID, true
}

// ============================================================
// points ledger
// ============================================================

// GetBalance GET /api/v1/points/balance?user_id=x
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	current, err := h.pointsService.GetCurrentPoints(c.Request.Context(), userID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":        userID,
		"current_points": current,
	})
}

// GetHistory GET /api/v1/points/history?user_id=x&limit=50
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	history, err := h.pointsService.GetHistory(c.Request.Context(), userID, limit)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{"list": history})
}

// Recalculate POST /api/v1/points/recalculate
func (h *Handler) Recalculate(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.pointsService.Recalculate(c.Request.Context(), req.UserID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, balance)
}

// ShareRequest records a social share of a missing-person report.
type ShareRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	ReportID int64  `json:"report_id" binding:"required"`
	Platform string `json:"platform" binding:"required"`
	ShareURL string `json:"share_url"`
}

// ShareReport POST /api/v1/points/share
func (h *Handler) ShareReport(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.pointsService.AwardSocialShare(c.Request.Context(),
		req.UserID, req.ReportID, req.Platform, req.ShareURL)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// AwardEventRequest is the internal hook other platform components call
// when a point-earning event happens.
type AwardEventRequest struct {
	UserID    int64 `json:"user_id" binding:"required"`
	ReportID  int64 `json:"report_id"`
	ProjectID int64 `json:"project_id"`
	Points    int   `json:"points"`
}

// AwardRegistration POST /api/v1/points/events/registration
func (h *Handler) AwardRegistration(c *gin.Context) {
	var req AwardEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.pointsService.AwardRegistration(c.Request.Context(), req.UserID)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, balance)
}

// AwardMissingReport POST /api/v1/points/events/missing-report
func (h *Handler) AwardMissingReport(c *gin.Context) {
	var req AwardEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.pointsService.AwardMissingReport(c.Request.Context(), req.UserID, req.ReportID)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, balance)
}

// AwardSighting POST /api/v1/points/events/sighting-approved
func (h *Handler) AwardSighting(c *gin.Context) {
	var req AwardEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.pointsService.AwardSightingApproved(c.Request.Context(), req.UserID, req.ReportID)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, balance)
}

// AwardProjectCompletion POST /api/v1/points/events/project-completed
func (h *Handler) AwardProjectCompletion(c *gin.Context) {
	var req AwardEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.pointsService.AwardProjectCompletion(c.Request.Context(),
		req.UserID, req.ProjectID, req.Points)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, balance)
}

// RevertProjectCompletion POST /api/v1/points/events/project-reverted
func (h *Handler) RevertProjectCompletion(c *gin.Context) {
	var req AwardEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.pointsService.RevertProjectPoints(c.Request.Context(),
		req.UserID, req.ProjectID, req.Points)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, balance)
}

// ============================================================
// reward catalog & redemption
// ============================================================

// ListRewards GET /api/v1/rewards?user_id=x&category_id=y&affordable=true&page=1
func (h *Handler) ListRewards(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	categoryID, _ := strconv.ParseInt(c.DefaultQuery("category_id", "0"), 10, 64)
	affordable := c.DefaultQuery("affordable", "false") == "true"
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.rewardService.ListAvailable(c.Request.Context(), userID, categoryID, affordable, page)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// RedeemRequest is a user's request to convert points into a voucher.
type RedeemRequest struct {
	UserID   int64 `json:"user_id" binding:"required"`
	RewardID int64 `json:"reward_id" binding:"required"`
}

// Redeem POST /api/v1/rewards/redeem
func (h *Handler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	voucher, err := h.rewardService.Redeem(c.Request.Context(), req.UserID, req.RewardID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, voucher)
}

// ListUserRewards GET /api/v1/rewards/mine?user_id=x&status=ACTIVE
func (h *Handler) ListUserRewards(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	status := c.Query("status")

	vouchers, err := h.rewardService.GetUserRewards(c.Request.Context(), userID, status)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{"list": vouchers})
}

// MarkVoucherUsed POST /api/v1/vouchers/use
func (h *Handler) MarkVoucherUsed(c *gin.Context) {
	var req struct {
		VoucherID int64 `json:"voucher_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	voucher, err := h.rewardService.MarkUsed(c.Request.Context(), req.VoucherID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, voucher)
}

// GetVoucher GET /api/v1/vouchers/:code is the read surface for the QR display.
func (h *Handler) GetVoucher(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		response.ParamError(c, "voucher code required")
		return
	}

	detail, err := h.rewardService.GetVoucherByCode(c.Request.Context(), code)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, detail)
}

// ============================================================
// admin catalog CRUD
// ============================================================

type RewardRequest struct {
	CategoryID     int64  `json:"category_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	PointsRequired int    `json:"points_required" binding:"required,gt=0"`
	StockQuantity  int    `json:"stock_quantity" binding:"gte=0"`
	ImagePath      string `json:"image_path"`
	VoucherPrefix  string `json:"voucher_prefix"`
	ValidityDays   int    `json:"validity_days"`
	Status         string `json:"status"`
}

// CreateReward POST /api/v1/admin/rewards
func (h *Handler) CreateReward(c *gin.Context) {
	var req RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	reward := &model.Reward{
		CategoryID:     req.CategoryID,
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		StockQuantity:  req.StockQuantity,
		ImagePath:      req.ImagePath,
		VoucherPrefix:  req.VoucherPrefix,
		ValidityDays:   req.ValidityDays,
		Status:         req.Status,
	}
	if err := h.rewardService.CreateReward(c.Request.Context(), reward); err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, reward)
}

// UpdateReward PUT /api/v1/admin/rewards/:id
func (h *Handler) UpdateReward(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid reward id")
		return
	}

	var req RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	reward, err := h.rewardService.GetReward(c.Request.Context(), id)
	if err != nil {
		businessError(c, err)
		return
	}

	reward.CategoryID = req.CategoryID
	reward.Name = req.Name
	reward.Description = req.Description
	reward.PointsRequired = req.PointsRequired
	reward.StockQuantity = req.StockQuantity
	reward.ImagePath = req.ImagePath
	reward.VoucherPrefix = req.VoucherPrefix
	if req.ValidityDays > 0 {
		reward.ValidityDays = req.ValidityDays
	}
	if req.Status != "" {
		reward.Status = req.Status
	}

	if err := h.rewardService.UpdateReward(c.Request.Context(), reward); err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, reward)
}

// DeleteReward DELETE /api/v1/admin/rewards/:id
func (h *Handler) DeleteReward(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid reward id")
		return
	}

	if err := h.rewardService.DeleteReward(c.Request.Context(), id); err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": id})
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CreateCategory POST /api/v1/admin/categories
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	category := &model.RewardCategory{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	}
	if err := h.rewardService.CreateCategory(c.Request.Context(), category); err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, category)
}

// ListCategories GET /api/v1/rewards/categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.rewardService.ListCategories(c.Request.Context())
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{"list": categories})
}

// UpdateCategory PUT /api/v1/admin/categories/:id
func (h *Handler) UpdateCategory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid category id")
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	category := &model.RewardCategory{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	}
	if err := h.rewardService.UpdateCategory(c.Request.Context(), category); err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, category)
}

// DeleteCategory DELETE /api/v1/admin/categories/:id
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid category id")
		return
	}

	if err := h.rewardService.DeleteCategory(c.Request.Context(), id); err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": id})
}
