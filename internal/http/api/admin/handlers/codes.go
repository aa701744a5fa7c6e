package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	dbutil "github.com/creditrail/creditrail/internal/db"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CodeHandler handles admin operations for redemption codes.
type CodeHandler struct {
	db *gorm.DB // Database handle for code queries.
}

// NewCodeHandler wires a redemption code handler with its database dependency.
func NewCodeHandler(db *gorm.DB) *CodeHandler {
	return &CodeHandler{db: db}
}

// batchCreateCodeRequest captures the payload for batch code creation.
type batchCreateCodeRequest struct {
	Count      int             `json:"count"`       // Number of codes to create.
	CodeType   models.CodeType `json:"code_type"`   // credits or plan.
	CodeValue  int64           `json:"code_value"`  // Credit amount for credits codes.
	PlanType   models.PlanType `json:"plan_type"`   // Target tier for plan codes.
	ValidDays  int             `json:"valid_days"`  // Assignment length for plan codes.
	Prefix     string          `json:"prefix"`      // Optional code prefix.
	ExpiresAt  *time.Time      `json:"expires_at"`  // Optional redemption deadline.
	BatchLabel string          `json:"batch_label"` // Optional batch label, defaults to a UUID.
}

// BatchCreate generates codes in one transaction and returns them once;
// the plaintext list is not retrievable later.
func (h *CodeHandler) BatchCreate(c *gin.Context) {
	var body batchCreateCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Count < 1 || body.Count > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 1000"})
		return
	}
	switch body.CodeType {
	case models.CodeCredits:
		if body.CodeValue <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code_value must be positive"})
			return
		}
	case models.CodePlan:
		if body.PlanType.Level() == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan_type"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "code_type must be credits or plan"})
		return
	}

	prefix := strings.ToUpper(strings.TrimSpace(body.Prefix))
	batchRef := strings.TrimSpace(body.BatchLabel)
	if batchRef == "" {
		batchRef = uuid.NewString()
	}

	now := time.Now().UTC()
	rows := make([]models.RedemptionCode, 0, body.Count)
	codes := make([]string, 0, body.Count)
	for i := 0; i < body.Count; i++ {
		serial := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		code := prefix + serial[:16]
		codes = append(codes, code)
		rows = append(rows, models.RedemptionCode{
			Code:      code,
			Status:    models.CodeActive,
			CodeType:  body.CodeType,
			CodeValue: body.CodeValue,
			PlanType:  body.PlanType,
			ValidDays: body.ValidDays,
			BatchRef:  batchRef,
			ExpiresAt: body.ExpiresAt,
			CreatedAt: now,
		})
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&rows).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create codes failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"batch_ref": batchRef,
		"count":     len(codes),
		"codes":     codes,
	})
}

// List returns codes, filterable by batch and status, paged.
func (h *CodeHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.RedemptionCode{})
	if batch := strings.TrimSpace(c.Query("batch_ref")); batch != "" {
		query = query.Where("batch_ref = ?", batch)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		expr, pattern := dbutil.PrefixSearch(h.db, "code", search)
		query = query.Where(expr, pattern)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count codes failed"})
		return
	}
	var rows []models.RedemptionCode
	if errFind := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query codes failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"items":     rows,
	})
}

// Disable pulls an unclaimed code out of circulation. Used codes stay used.
func (h *CodeHandler) Disable(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	update := h.db.WithContext(c.Request.Context()).
		Model(&models.RedemptionCode{}).
		Where("id = ? AND status = ?", id, models.CodeActive).
		Update("status", models.CodeDisabled)
	if update.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable code failed"})
		return
	}
	if update.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "code is not active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
