package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/creditrail/creditrail/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PackageHandler handles admin CRUD for the package catalog.
type PackageHandler struct {
	db *gorm.DB // Database handle for catalog queries.
}

// NewPackageHandler wires a package handler with its database dependency.
func NewPackageHandler(db *gorm.DB) *PackageHandler {
	return &PackageHandler{db: db}
}

// packageRequest captures the payload for creating or updating a package.
// Pointer fields are optional on update.
type packageRequest struct {
	Name              string          `json:"name"`
	PlanType          models.PlanType `json:"plan_type"`
	DailyPoints       *int64          `json:"daily_points"`
	CreditCap         *int64          `json:"credit_cap"`
	RecoveryRate      *int64          `json:"recovery_rate"`
	DailyUsageLimit   *int64          `json:"daily_usage_limit"`
	ManualResetPerDay *int            `json:"manual_reset_per_day"`
	ValidDays         *int            `json:"valid_days"`
	PriceMicros       *int64          `json:"price_micros"`
	IsEnabled         *bool           `json:"is_enabled"`
}

// List returns the full catalog including disabled tiers.
func (h *PackageHandler) List(c *gin.Context) {
	var rows []models.Package
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query packages failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// Create adds a catalog entry.
func (h *PackageHandler) Create(c *gin.Context) {
	var body packageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if body.PlanType.Level() == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan_type"})
		return
	}

	pkg := models.Package{
		Name:      name,
		PlanType:  body.PlanType,
		ValidDays: 30,
		IsEnabled: true,
	}
	applyPackageFields(&pkg, &body)
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&pkg).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create package failed"})
		return
	}
	c.JSON(http.StatusCreated, pkg)
}

// Update edits a catalog entry. Existing assignments keep their frozen
// snapshot and are unaffected.
func (h *PackageHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body packageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var pkg models.Package
	if errFind := h.db.WithContext(c.Request.Context()).First(&pkg, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query package failed"})
		return
	}

	if name := strings.TrimSpace(body.Name); name != "" {
		pkg.Name = name
	}
	applyPackageFields(&pkg, &body)
	if errSave := h.db.WithContext(c.Request.Context()).Save(&pkg).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update package failed"})
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// applyPackageFields copies the optional numeric fields onto the row.
func applyPackageFields(pkg *models.Package, body *packageRequest) {
	if body.DailyPoints != nil && *body.DailyPoints >= 0 {
		pkg.DailyPoints = *body.DailyPoints
	}
	if body.CreditCap != nil && *body.CreditCap >= 0 {
		pkg.CreditCap = *body.CreditCap
	}
	if body.RecoveryRate != nil && *body.RecoveryRate >= 0 {
		pkg.RecoveryRate = *body.RecoveryRate
	}
	if body.DailyUsageLimit != nil && *body.DailyUsageLimit >= 0 {
		pkg.DailyUsageLimit = *body.DailyUsageLimit
	}
	if body.ManualResetPerDay != nil && *body.ManualResetPerDay >= 0 {
		pkg.ManualResetPerDay = *body.ManualResetPerDay
	}
	if body.ValidDays != nil && *body.ValidDays > 0 {
		pkg.ValidDays = *body.ValidDays
	}
	if body.PriceMicros != nil && *body.PriceMicros >= 0 {
		pkg.PriceMicros = *body.PriceMicros
	}
	if body.IsEnabled != nil {
		pkg.IsEnabled = *body.IsEnabled
	}
}
