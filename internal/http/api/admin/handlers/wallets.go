package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creditrail/creditrail/internal/credits"
	dbutil "github.com/creditrail/creditrail/internal/db"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/wallet"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WalletHandler handles admin inspection of wallets and manual grants.
type WalletHandler struct {
	db    *gorm.DB
	store *wallet.Store
	usage *credits.UsageService
}

// NewWalletHandler wires a wallet admin handler with its dependencies.
func NewWalletHandler(db *gorm.DB) *WalletHandler {
	return &WalletHandler{
		db:    db,
		store: wallet.NewStore(db),
		usage: credits.NewUsageService(db),
	}
}

// Get returns a user's wallet row as stored, version included.
func (h *WalletHandler) Get(c *gin.Context) {
	userID, errParse := strconv.ParseUint(c.Param("userID"), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	w, errGet := h.store.Get(c.Request.Context(), userID)
	if errGet != nil {
		if errors.Is(errGet, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query wallet failed"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// Transactions returns a user's ledger entries, newest first, paged.
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID, errParse := strconv.ParseUint(c.Param("userID"), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := h.db.WithContext(c.Request.Context()).
		Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID)
	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count transactions failed"})
		return
	}
	var rows []models.CreditTransaction
	if errFind := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query transactions failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"items":     rows,
	})
}

// Packages returns a user's package assignment history, newest first. The
// plan filter matches the frozen snapshot, so assignments stay findable
// after their catalog row is edited or removed.
func (h *WalletHandler) Packages(c *gin.Context) {
	userID, errParse := strconv.ParseUint(c.Param("userID"), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Model(&models.UserPackage{}).
		Where("user_id = ?", userID)
	if plan := strings.TrimSpace(c.Query("plan_type")); plan != "" {
		query = query.Where(dbutil.JSONTextEq(h.db, "package_snapshot", "plan_type"), plan)
	}

	var rows []models.UserPackage
	if errFind := query.Order("id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query assignments failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// grantRequest captures the payload for a manual credit grant.
type grantRequest struct {
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
	OrderRef string `json:"order_ref"` // Optional idempotency anchor.
}

// Grant adds independent credits to a user's wallet. With an order_ref the
// grant applies at most once across retries.
func (h *WalletHandler) Grant(c *gin.Context) {
	userID, errParse := strconv.ParseUint(c.Param("userID"), 10, 64)
	if errParse != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var body grantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "admin grant"
	}
	var orderRef *string
	if ref := strings.TrimSpace(body.OrderRef); ref != "" {
		orderRef = &ref
	}

	res, errGrant := h.usage.GrantIndependent(c.Request.Context(), userID, body.Amount, orderRef, reason, time.Now().UTC())
	if errGrant != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}
	if !res.Success {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": string(res.ErrorCode)})
		return
	}
	c.JSON(http.StatusOK, res)
}
