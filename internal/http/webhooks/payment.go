package webhooks

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/creditrail/creditrail/internal/credits"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/creditrail/creditrail/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentHandler applies payment-gateway confirmations to wallets and
// package assignments.
type PaymentHandler struct {
	db *gorm.DB
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(db *gorm.DB) *PaymentHandler {
	return &PaymentHandler{db: db}
}

// RegisterWebhookRoutes registers the payment webhook under /v0/webhooks.
func RegisterWebhookRoutes(r *gin.Engine, db *gorm.DB) {
	if r == nil || db == nil {
		return
	}
	handler := NewPaymentHandler(db)
	r.POST("/v0/webhooks/payment", handler.Confirm)
}

// paymentEvent is the gateway's confirmation payload.
type paymentEvent struct {
	OrderRef  string           `json:"order_ref"`
	UserID    uint64           `json:"user_id"`
	OrderType models.OrderType `json:"order_type"`
	Amount    int64            `json:"amount"`
	PlanType  models.PlanType  `json:"plan_type"`
	ValidDays int              `json:"valid_days"`
}

var errWebhookRejected = errors.New("webhooks: rejected")

// Confirm records the order and applies its grant exactly once.
//
// The idempotency anchor is the order row: the grant only runs when the
// pending -> completed conditional update wins, so gateway retries of the
// same order_ref return 200 without applying anything twice.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	expected := settings.StringValue(settings.PaymentWebhookTokenKey, "")
	if expected == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook token not configured"})
		return
	}
	given := strings.TrimSpace(c.GetHeader("X-Webhook-Token"))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	var event paymentEvent
	if errBind := c.ShouldBindJSON(&event); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	orderRef := strings.TrimSpace(event.OrderRef)
	if orderRef == "" || event.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order_ref or user_id"})
		return
	}
	switch event.OrderType {
	case models.OrderCredits:
		if event.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
	case models.OrderPlan:
		if event.PlanType.Level() == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan_type"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_type must be credits or plan"})
		return
	}

	now := time.Now().UTC()
	replayed := false
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		errFind := tx.Where("order_ref = ?", orderRef).First(&order).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			order = models.Order{
				OrderRef:  orderRef,
				UserID:    event.UserID,
				OrderType: event.OrderType,
				Amount:    event.Amount,
				PlanType:  event.PlanType,
				ValidDays: event.ValidDays,
				Status:    models.OrderPending,
				CreatedAt: now,
			}
			if errCreate := tx.Create(&order).Error; errCreate != nil {
				return errCreate
			}
		} else if errFind != nil {
			return errFind
		}

		claim := tx.Model(&models.Order{}).
			Where("order_ref = ? AND status = ?", orderRef, models.OrderPending).
			Updates(map[string]any{"status": models.OrderCompleted, "paid_at": now})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			replayed = true
			return nil
		}

		switch order.OrderType {
		case models.OrderCredits:
			res, errGrant := credits.GrantIndependentTx(c.Request.Context(), tx, order.UserID, order.Amount, &orderRef, "order "+orderRef)
			if errGrant != nil {
				return errGrant
			}
			if !res.Success {
				return errWebhookRejected
			}
			return nil
		case models.OrderPlan:
			return h.applyPlanOrder(c, tx, &order, now)
		default:
			return errWebhookRejected
		}
	})
	if errTx != nil {
		if errors.Is(errTx, errWebhookRejected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "order could not be applied"})
			return
		}
		log.WithError(errTx).WithField("order_ref", orderRef).Error("payment webhook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "apply order failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "replayed": replayed})
}

// applyPlanOrder assigns or extends the ordered tier. A same-tier order
// renews, a higher tier replaces the current assignment, and a lower-tier
// order rolls the whole confirmation back so the order stays pending for
// manual resolution.
func (h *PaymentHandler) applyPlanOrder(c *gin.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	target, errTarget := plans.PackageByPlanType(c.Request.Context(), tx, order.PlanType)
	if errTarget != nil {
		return errTarget
	}
	if target == nil {
		return errWebhookRejected
	}

	current, currentPkg, errActive := plans.ActivePackageTx(c.Request.Context(), tx, order.UserID, now)
	if errActive != nil {
		return errActive
	}

	if current != nil && currentPkg != nil {
		if currentPkg.PlanType == target.PlanType {
			validDays := order.ValidDays
			if validDays <= 0 {
				validDays = target.ValidDays
			}
			_, errRenew := plans.RenewUserPackageTx(c.Request.Context(), tx, order.UserID, validDays, now)
			return errRenew
		}
		if target.PlanType.Level() < currentPkg.PlanType.Level() {
			return errWebhookRejected
		}
	}

	created, errCreate := plans.CreateUserPackageTx(c.Request.Context(), tx, order.UserID, target, order.ValidDays, &order.OrderRef, now)
	if errCreate != nil {
		return errCreate
	}
	_, errReset := plans.ResetPackageCreditsTx(c.Request.Context(), tx, order.UserID, created.DailyPoints, &order.OrderRef, now)
	return errReset
}
