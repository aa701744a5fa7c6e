package front

import (
	"net/http"
	"strings"

	"github.com/creditrail/creditrail/internal/config"
	"github.com/creditrail/creditrail/internal/http/api/front/handlers"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, rateLimiter gin.HandlerFunc) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))
	if rateLimiter != nil {
		authed.Use(rateLimiter)
	}

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	walletHandler := handlers.NewWalletHandler(db)
	authed.GET("/wallet", walletHandler.Get)
	authed.GET("/wallet/transactions", walletHandler.Transactions)

	creditsHandler := handlers.NewCreditsHandler(db)
	authed.POST("/credits/charge", creditsHandler.Charge)
	authed.POST("/credits/reset", creditsHandler.ManualReset)
	authed.POST("/credits/redeem", creditsHandler.Redeem)

	planHandler := handlers.NewPlanFrontHandler(db)
	authed.GET("/plans", planHandler.List)
	authed.GET("/plans/current", planHandler.Current)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
