package http

import (
	"net/http"

	"github.com/creditrail/creditrail/internal/config"
	"github.com/creditrail/creditrail/internal/http/api/admin"
	"github.com/creditrail/creditrail/internal/http/api/front"
	"github.com/creditrail/creditrail/internal/http/webhooks"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// BuildRouter assembles the gin engine with all route groups.
func BuildRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, errDB := db.DB()
		if errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rateLimiter := RateLimitMiddleware(cfg.Redis, cfg.RateLimit)
	front.RegisterFrontRoutes(r, db, cfg.JWT, rateLimiter)
	admin.RegisterAdminRoutes(r, db, cfg.JWT)
	webhooks.RegisterWebhookRoutes(r, db)

	return r
}
