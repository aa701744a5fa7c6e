package handlers

import (
	"net/http"
	"time"

	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PlanFrontHandler lists purchasable plans and the user's current assignment.
type PlanFrontHandler struct {
	db *gorm.DB
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(db *gorm.DB) *PlanFrontHandler {
	return &PlanFrontHandler{db: db}
}

// List returns all enabled packages from the catalog.
func (h *PlanFrontHandler) List(c *gin.Context) {
	var rows []models.Package
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enabled = ?", true).
		Order("plan_type ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query packages failed"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, pkg := range rows {
		items = append(items, gin.H{
			"id":            pkg.ID,
			"name":          pkg.Name,
			"plan_type":     pkg.PlanType,
			"daily_points":  pkg.DailyPoints,
			"credit_cap":    pkg.CreditCap,
			"recovery_rate": pkg.RecoveryRate,
			"valid_days":    pkg.ValidDays,
			"price_micros":  pkg.PriceMicros,
			"features":      pkg.Features,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Current returns the caller's active package assignment, if any.
func (h *PlanFrontHandler) Current(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	up, pkg, errActive := plans.ActivePackageTx(c.Request.Context(), h.db, userID, time.Now().UTC())
	if errActive != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query package failed"})
		return
	}
	if up == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	resp := gin.H{
		"active":   true,
		"start_at": up.StartAt,
		"end_at":   up.EndAt,
		"snapshot": up.PackageSnapshot,
	}
	if pkg != nil {
		resp["plan_type"] = pkg.PlanType
		resp["name"] = pkg.Name
	}
	c.JSON(http.StatusOK, resp)
}
