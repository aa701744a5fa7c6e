package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/creditrail/creditrail/internal/credits"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/creditrail/creditrail/internal/wallet"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WalletHandler exposes the current user's balances and ledger.
type WalletHandler struct {
	db    *gorm.DB
	store *wallet.Store
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(db *gorm.DB) *WalletHandler {
	return &WalletHandler{db: db, store: wallet.NewStore(db)}
}

// Get returns the wallet balances plus a read-only preview of what the next
// recovery tick would grant. The preview never writes.
func (h *WalletHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	now := time.Now().UTC()

	w, errGet := h.store.Get(c.Request.Context(), userID)
	if errGet != nil && !errors.Is(errGet, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query wallet failed"})
		return
	}

	resp := gin.H{
		"package_tokens":     w.PackageTokensRemaining,
		"independent_tokens": w.IndependentTokens,
		"total_available":    w.TotalAvailable(),
		"package_quota":      w.PackageDailyQuotaTokens,
		"last_recovery_at":   w.LastRecoveryAt,
		"manual_reset_at":    w.ManualResetAt,
	}

	up, pkg, errActive := plans.ActivePackageTx(c.Request.Context(), h.db, userID, now)
	if errActive != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query package failed"})
		return
	}
	if up != nil {
		cfg := credits.ResolveConfig(up.PackageSnapshot, pkg)
		last := up.StartAt
		if w.LastRecoveryAt != nil {
			last = *w.LastRecoveryAt
		}
		resp["recoverable_now"] = credits.Recoverable(last, w.PackageTokensRemaining, cfg, now)
		resp["plan"] = gin.H{
			"end_at":            up.EndAt,
			"credit_cap":        cfg.CreditCap,
			"recovery_rate":     cfg.RecoveryRate,
			"daily_usage_limit": cfg.DailyUsageLimit,
		}
		if pkg != nil {
			resp["plan"].(gin.H)["plan_type"] = pkg.PlanType
			resp["plan"].(gin.H)["name"] = pkg.Name
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Transactions returns the user's ledger entries, newest first, paged.
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).
		Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID)
	if txnType := c.Query("type"); txnType != "" {
		query = query.Where("txn_type = ?", txnType)
	}

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
