package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/creditrail/creditrail/internal/credits"
	"github.com/creditrail/creditrail/internal/metrics"
	"github.com/creditrail/creditrail/internal/redeem"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreditsHandler exposes the charge, manual reset and redeem operations.
type CreditsHandler struct {
	usage  *credits.UsageService
	reset  *credits.ResetService
	redeem *redeem.StateMachine
}

// NewCreditsHandler constructs a CreditsHandler.
func NewCreditsHandler(db *gorm.DB) *CreditsHandler {
	return &CreditsHandler{
		usage:  credits.NewUsageService(db),
		reset:  credits.NewResetService(db),
		redeem: redeem.NewStateMachine(db),
	}
}

// chargeRequest defines the request body for a usage charge.
type chargeRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// Charge debits metered usage from the caller's wallet.
func (h *CreditsHandler) Charge(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body chargeRequest
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
		reason = "api usage"
	}

	res, errCharge := h.usage.Charge(c.Request.Context(), userID, body.Amount, reason, time.Now().UTC())
	if errCharge != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "charge failed"})
		return
	}
	metrics.ChargesTotal.WithLabelValues(metrics.Outcome(res.Success, string(res.ErrorCode))).Inc()
	if !res.Success {
		if res.ErrorCode == credits.ErrCodeConflict {
			metrics.WalletConflictsTotal.Inc()
		}
		rejectWithCode(c, res.ErrorCode)
		return
	}
	if res.FromPackage > 0 {
		metrics.ChargedTokensTotal.WithLabelValues("package").Add(float64(res.FromPackage))
	}
	if res.FromIndependent > 0 {
		metrics.ChargedTokensTotal.WithLabelValues("independent").Add(float64(res.FromIndependent))
	}
	c.JSON(http.StatusOK, res)
}

// ManualReset tops the package pool up to its cap, rate limited per UTC day.
func (h *CreditsHandler) ManualReset(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, errReset := h.reset.ManualReset(c.Request.Context(), userID, time.Now().UTC())
	if errReset != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	metrics.ManualResetsTotal.WithLabelValues(metrics.Outcome(res.Success, string(res.ErrorCode))).Inc()
	if !res.Success {
		rejectWithCode(c, res.ErrorCode)
		return
	}
	c.JSON(http.StatusOK, res)
}

// redeemRequest defines the request body for code redemption.
type redeemRequest struct {
	Code string `json:"code"`
}

// Redeem claims a redemption code for the caller.
func (h *CreditsHandler) Redeem(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, errRedeem := h.redeem.Redeem(c.Request.Context(), userID, body.Code, time.Now().UTC())
	if errRedeem != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
		return
	}
	metrics.RedemptionsTotal.WithLabelValues(metrics.Outcome(res.Success, string(res.ErrorCode))).Inc()
	if !res.Success {
		rejectWithCode(c, res.ErrorCode)
		return
	}
	c.JSON(http.StatusOK, res)
}
