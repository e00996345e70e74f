package handler

import (
	"github.com/boey-13/missing-persons-platform-sub001/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter builds the gin engine with all routes registered.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		points := api.Group("/points")
		{
			points.GET("/balance", h.GetBalance)
			points.GET("/history", h.GetHistory)
			points.POST("/recalculate", h.Recalculate)
			points.POST("/share", h.ShareReport)

			// internal hooks called by the rest of the platform on
			// point-earning events
			events := points.Group("/events")
			{
				events.POST("/registration", h.AwardRegistration)
				events.POST("/missing-report", h.AwardMissingReport)
				events.POST("/sighting-approved", h.AwardSighting)
				events.POST("/project-completed", h.AwardProjectCompletion)
				events.POST("/project-reverted", h.RevertProjectCompletion)
			}
		}

		rewards := api.Group("/rewards")
		{
			rewards.GET("", h.ListRewards)
			rewards.GET("/categories", h.ListCategories)
			rewards.POST("/redeem", h.Redeem)
			rewards.GET("/mine", h.ListUserRewards)
		}

		vouchers := api.Group("/vouchers")
		{
			vouchers.POST("/use", h.MarkVoucherUsed)
			vouchers.GET("/:code", h.GetVoucher)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/rewards", h.CreateReward)
			admin.PUT("/rewards/:id", h.UpdateReward)
			admin.DELETE("/rewards/:id", h.DeleteReward)
			admin.POST("/categories", h.CreateCategory)
			admin.PUT("/categories/:id", h.UpdateCategory)
			admin.DELETE("/categories/:id", h.DeleteCategory)
		}
	}

	return r
}
