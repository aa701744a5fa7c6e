package credits

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/creditrail/creditrail/internal/db"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

// openTestFileDB opens a file-backed database for tests that need real
// concurrent writers; :memory: databases serialize too aggressively.
func openTestFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "credits_test.db"))
	if errOpen != nil {
		t.Fatalf("open sqlite file: %v", errOpen)
	}
	// One pooled connection keeps concurrent transactions from tripping
	// SQLITE_BUSY; the calls still race at the service boundary.
	sqlDB, errSQL := conn.DB()
	if errSQL != nil {
		t.Fatalf("sql db: %v", errSQL)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedPackage(t *testing.T, conn *gorm.DB, planType models.PlanType, dailyPoints, creditCap, recoveryRate int64, resetPerDay int) *models.Package {
	t.Helper()
	pkg := models.Package{
		Name:              string(planType),
		PlanType:          planType,
		DailyPoints:       dailyPoints,
		CreditCap:         creditCap,
		RecoveryRate:      recoveryRate,
		ManualResetPerDay: resetPerDay,
		ValidDays:         30,
		IsEnabled:         true,
	}
	if errCreate := conn.Create(&pkg).Error; errCreate != nil {
		t.Fatalf("seed package: %v", errCreate)
	}
	return &pkg
}

// assignPackage creates an active assignment and resets package credits,
// the same pairing a purchase or redemption performs.
func assignPackage(t *testing.T, conn *gorm.DB, userID uint64, pkg *models.Package, now time.Time) *models.UserPackage {
	t.Helper()
	var up *models.UserPackage
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		created, errCreate := plans.CreateUserPackageTx(context.Background(), tx, userID, pkg, 0, nil, now)
		if errCreate != nil {
			return errCreate
		}
		if _, errReset := plans.ResetPackageCreditsTx(context.Background(), tx, userID, created.DailyPoints, nil, now); errReset != nil {
			return errReset
		}
		up = created
		return nil
	})
	if errTx != nil {
		t.Fatalf("assign package: %v", errTx)
	}
	return up
}

func loadWallet(t *testing.T, conn *gorm.DB, userID uint64) models.Wallet {
	t.Helper()
	var w models.Wallet
	if errFind := conn.Where("user_id = ?", userID).First(&w).Error; errFind != nil {
		t.Fatalf("load wallet: %v", errFind)
	}
	return w
}

func countLedgerRows(t *testing.T, conn *gorm.DB, userID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error; errCount != nil {
		t.Fatalf("count ledger rows: %v", errCount)
	}
	return count
}
