package webhooks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creditrail/creditrail/internal/db"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testWebhookToken = "test-webhook-token"

func setupWebhookTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	settings.StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{
		settings.PaymentWebhookTokenKey: json.RawMessage(`"` + testWebhookToken + `"`),
	})

	router := gin.New()
	RegisterWebhookRoutes(router, conn)
	return conn, router
}

func postEvent(t *testing.T, router *gin.Engine, token string, event any) *httptest.ResponseRecorder {
	t.Helper()
	payload, errMarshal := json.Marshal(event)
	if errMarshal != nil {
		t.Fatalf("marshal event: %v", errMarshal)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookRejectsBadToken(t *testing.T) {
	_, router := setupWebhookTest(t)

	rec := postEvent(t, router, "wrong", gin.H{
		"order_ref": "ord-1", "user_id": 1, "order_type": "credits", "amount": 100,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPaymentWebhookCreditsOrderAppliesOnce(t *testing.T) {
	conn, router := setupWebhookTest(t)

	event := gin.H{"order_ref": "ord-credits-1", "user_id": 7, "order_type": "credits", "amount": 500}
	rec := postEvent(t, router, testWebhookToken, event)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Replay of the same order_ref must ack without granting again.
	rec = postEvent(t, router, testWebhookToken, event)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d: %s", rec.Code, rec.Body.String())
	}

	var w models.Wallet
	if errFind := conn.Where("user_id = ?", uint64(7)).First(&w).Error; errFind != nil {
		t.Fatalf("load wallet: %v", errFind)
	}
	if w.IndependentTokens != 500 {
		t.Fatalf("expected 500 independent tokens after replay, got %d", w.IndependentTokens)
	}

	var order models.Order
	if errFind := conn.Where("order_ref = ?", "ord-credits-1").First(&order).Error; errFind != nil {
		t.Fatalf("load order: %v", errFind)
	}
	if order.Status != models.OrderCompleted || order.PaidAt == nil {
		t.Fatalf("order not completed: %+v", order)
	}

	var ledgerRows int64
	if errCount := conn.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND order_ref = ?", uint64(7), "ord-credits-1").
		Count(&ledgerRows).Error; errCount != nil {
		t.Fatalf("count ledger: %v", errCount)
	}
	if ledgerRows != 1 {
		t.Fatalf("expected a single ledger row, got %d", ledgerRows)
	}
}

func TestPaymentWebhookPlanOrderAssignsPackage(t *testing.T) {
	conn, router := setupWebhookTest(t)
	pkg := models.Package{
		Name:        "pro",
		PlanType:    models.PlanPro,
		DailyPoints: 6000,
		CreditCap:   6000,
		ValidDays:   30,
		IsEnabled:   true,
	}
	if errCreate := conn.Create(&pkg).Error; errCreate != nil {
		t.Fatalf("seed package: %v", errCreate)
	}

	rec := postEvent(t, router, testWebhookToken, gin.H{
		"order_ref": "ord-plan-1", "user_id": 9, "order_type": "plan", "plan_type": "pro", "valid_days": 30,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var up models.UserPackage
	if errFind := conn.Where("user_id = ? AND is_active = ?", uint64(9), true).First(&up).Error; errFind != nil {
		t.Fatalf("load assignment: %v", errFind)
	}
	var w models.Wallet
	if errFind := conn.Where("user_id = ?", uint64(9)).First(&w).Error; errFind != nil {
		t.Fatalf("load wallet: %v", errFind)
	}
	if w.PackageTokensRemaining != 6000 {
		t.Fatalf("package credits not granted: %d", w.PackageTokensRemaining)
	}

	// A second paid order for the same tier renews from the current end.
	priorEnd := up.EndAt
	rec = postEvent(t, router, testWebhookToken, gin.H{
		"order_ref": "ord-plan-2", "user_id": 9, "order_type": "plan", "plan_type": "pro", "valid_days": 30,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on renew, got %d: %s", rec.Code, rec.Body.String())
	}
	var renewed models.UserPackage
	if errFind := conn.Where("user_id = ? AND is_active = ?", uint64(9), true).First(&renewed).Error; errFind != nil {
		t.Fatalf("load renewed assignment: %v", errFind)
	}
	if !renewed.EndAt.Equal(priorEnd.AddDate(0, 0, 30)) {
		t.Fatalf("renew end %v, want %v", renewed.EndAt, priorEnd.AddDate(0, 0, 30))
	}
}
