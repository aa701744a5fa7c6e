package plans

import (
	"context"
	"testing"
	"time"

	"github.com/creditrail/creditrail/internal/db"
	"github.com/creditrail/creditrail/internal/models"
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

func seedPackage(t *testing.T, conn *gorm.DB, planType models.PlanType, dailyPoints int64) *models.Package {
	t.Helper()
	pkg := models.Package{
		Name:        string(planType),
		PlanType:    planType,
		DailyPoints: dailyPoints,
		CreditCap:   dailyPoints,
		ValidDays:   30,
		IsEnabled:   true,
	}
	if errCreate := conn.Create(&pkg).Error; errCreate != nil {
		t.Fatalf("seed package: %v", errCreate)
	}
	return &pkg
}

func TestCreateUserPackageDeactivatesPrior(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	basic := seedPackage(t, conn, models.PlanBasic, 2000)
	pro := seedPackage(t, conn, models.PlanPro, 6000)

	if _, errCreate := CreateUserPackageTx(ctx, conn, 1, basic, 30, nil, now); errCreate != nil {
		t.Fatalf("create basic: %v", errCreate)
	}
	upgraded, errUpgrade := CreateUserPackageTx(ctx, conn, 1, pro, 30, nil, now.Add(time.Hour))
	if errUpgrade != nil {
		t.Fatalf("create pro: %v", errUpgrade)
	}

	var active []models.UserPackage
	if errFind := conn.Where("user_id = ? AND is_active = ?", uint64(1), true).Find(&active).Error; errFind != nil {
		t.Fatalf("query active: %v", errFind)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one active assignment, got %d", len(active))
	}
	if active[0].ID != upgraded.ID || active[0].PackageID != pro.ID {
		t.Fatalf("wrong assignment left active: %+v", active[0])
	}
}

func TestCreateUserPackageFreezesSnapshot(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pro := seedPackage(t, conn, models.PlanPro, 6000)
	up, errCreate := CreateUserPackageTx(ctx, conn, 1, pro, 30, nil, now)
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	// Editing the catalog afterwards must not change the frozen terms.
	if errSave := conn.Model(pro).Update("daily_points", 999).Error; errSave != nil {
		t.Fatalf("edit catalog: %v", errSave)
	}

	var reloaded models.UserPackage
	if errFind := conn.First(&reloaded, up.ID).Error; errFind != nil {
		t.Fatalf("reload assignment: %v", errFind)
	}
	if reloaded.DailyPoints != 6000 {
		t.Fatalf("assignment daily points changed retroactively: %d", reloaded.DailyPoints)
	}
	if len(reloaded.PackageSnapshot) == 0 {
		t.Fatal("assignment carries no snapshot")
	}
}

func TestRenewExtendsFromCurrentEnd(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pro := seedPackage(t, conn, models.PlanPro, 6000)
	created, errCreate := CreateUserPackageTx(ctx, conn, 1, pro, 30, nil, now)
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	// Renewing ten days in extends from the original end, not from now.
	renewed, errRenew := RenewUserPackageTx(ctx, conn, 1, 30, now.AddDate(0, 0, 10))
	if errRenew != nil {
		t.Fatalf("renew: %v", errRenew)
	}
	want := created.EndAt.AddDate(0, 0, 30)
	if !renewed.EndAt.Equal(want) {
		t.Fatalf("renewed end %v, want %v", renewed.EndAt, want)
	}
}

func TestRenewWithoutActivePackage(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	_, errRenew := RenewUserPackageTx(ctx, conn, 5, 30, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if errRenew != ErrNoActivePackage {
		t.Fatalf("expected ErrNoActivePackage, got %v", errRenew)
	}
}

func TestResetPackageCreditsSetsQuotaAndClock(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	delta, errReset := ResetPackageCreditsTx(ctx, conn, 1, 6000, nil, now)
	if errReset != nil {
		t.Fatalf("reset: %v", errReset)
	}
	if delta.After.PackageTokensRemaining != 6000 || delta.After.PackageDailyQuotaTokens != 6000 {
		t.Fatalf("unexpected wallet state: %+v", delta.After)
	}
	if delta.After.LastRecoveryAt == nil || !delta.After.LastRecoveryAt.Equal(now) {
		t.Fatal("reset must start the regeneration clock")
	}

	var row models.CreditTransaction
	if errFind := conn.Where("user_id = ?", uint64(1)).First(&row).Error; errFind != nil {
		t.Fatalf("load ledger row: %v", errFind)
	}
	if row.Type != models.TxnIncome || row.Bucket != models.BucketPackage || row.Tokens != 6000 {
		t.Fatalf("unexpected ledger row: %+v", row)
	}
}

func TestExpireLapsedSweep(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pro := seedPackage(t, conn, models.PlanPro, 6000)
	if _, errCreate := CreateUserPackageTx(ctx, conn, 1, pro, 10, nil, now); errCreate != nil {
		t.Fatalf("create short assignment: %v", errCreate)
	}
	if _, errCreate := CreateUserPackageTx(ctx, conn, 2, pro, 60, nil, now); errCreate != nil {
		t.Fatalf("create long assignment: %v", errCreate)
	}

	swept, errSweep := ExpireLapsedTx(ctx, conn, now.AddDate(0, 0, 11))
	if errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept assignment, got %d", swept)
	}

	up, _, errActive := ActivePackageTx(ctx, conn, 1, now.AddDate(0, 0, 11))
	if errActive != nil {
		t.Fatalf("query active: %v", errActive)
	}
	if up != nil {
		t.Fatal("lapsed assignment still active")
	}
	up, _, errActive = ActivePackageTx(ctx, conn, 2, now.AddDate(0, 0, 11))
	if errActive != nil {
		t.Fatalf("query active: %v", errActive)
	}
	if up == nil {
		t.Fatal("unexpired assignment was swept")
	}
}
