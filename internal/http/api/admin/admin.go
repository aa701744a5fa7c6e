package admin

import (
	"net/http"
	"strings"

	"github.com/creditrail/creditrail/internal/config"
	"github.com/creditrail/creditrail/internal/http/api/admin/handlers"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the admin API under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	codeHandler := handlers.NewCodeHandler(db)
	authed.POST("/codes/batch", codeHandler.BatchCreate)
	authed.GET("/codes", codeHandler.List)
	authed.POST("/codes/:id/disable", codeHandler.Disable)

	packageHandler := handlers.NewPackageHandler(db)
	authed.GET("/packages", packageHandler.List)
	authed.POST("/packages", packageHandler.Create)
	authed.PUT("/packages/:id", packageHandler.Update)

	walletHandler := handlers.NewWalletHandler(db)
	authed.GET("/wallets/:userID", walletHandler.Get)
	authed.GET("/wallets/:userID/transactions", walletHandler.Transactions)
	authed.GET("/wallets/:userID/packages", walletHandler.Packages)
	authed.POST("/wallets/:userID/grant", walletHandler.Grant)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.List)
	authed.PUT("/settings", settingsHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" || token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
