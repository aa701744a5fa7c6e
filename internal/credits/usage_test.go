package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/creditrail/creditrail/internal/models"
)

func TestChargeSpendsPackageFirst(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	pkg := seedPackage(t, conn, models.PlanBasic, 100, 100, 10, 1)
	assignPackage(t, conn, 1, pkg, now)

	usage := NewUsageService(conn)
	if res, errGrant := usage.GrantIndependent(ctx, 1, 50, nil, "purchase", now); errGrant != nil || !res.Success {
		t.Fatalf("grant: %v %+v", errGrant, res)
	}

	res, errCharge := usage.Charge(ctx, 1, 120, "api usage", now)
	if errCharge != nil {
		t.Fatalf("charge: %v", errCharge)
	}
	if !res.Success || res.FromPackage != 100 || res.FromIndependent != 20 {
		t.Fatalf("unexpected charge split: %+v", res)
	}

	w := loadWallet(t, conn, 1)
	if w.PackageTokensRemaining != 0 || w.IndependentTokens != 30 {
		t.Fatalf("unexpected balances: pkg=%d ind=%d", w.PackageTokensRemaining, w.IndependentTokens)
	}

	var rows []models.CreditTransaction
	if errFind := conn.Where("user_id = ? AND type = ?", uint64(1), models.TxnExpense).
		Order("id ASC").Find(&rows).Error; errFind != nil {
		t.Fatalf("load expense rows: %v", errFind)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one expense row per touched bucket, got %d", len(rows))
	}
	if rows[0].Bucket != models.BucketPackage || rows[0].Tokens != -100 {
		t.Fatalf("unexpected package expense row: %+v", rows[0])
	}
	if rows[1].Bucket != models.BucketIndependent || rows[1].Tokens != -20 {
		t.Fatalf("unexpected independent expense row: %+v", rows[1])
	}
}

func TestChargeSingleBucketWritesOneRow(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	pkg := seedPackage(t, conn, models.PlanBasic, 100, 100, 10, 1)
	assignPackage(t, conn, 1, pkg, now)

	usage := NewUsageService(conn)
	res, errCharge := usage.Charge(ctx, 1, 40, "api usage", now)
	if errCharge != nil || !res.Success {
		t.Fatalf("charge: %v %+v", errCharge, res)
	}

	var count int64
	if errCount := conn.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND type = ?", uint64(1), models.TxnExpense).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count expense rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected exactly one expense row, got %d", count)
	}
}

func TestChargeInsufficientBalance(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	usage := NewUsageService(conn)
	if res, errGrant := usage.GrantIndependent(ctx, 1, 30, nil, "purchase", now); errGrant != nil || !res.Success {
		t.Fatalf("grant: %v %+v", errGrant, res)
	}

	res, errCharge := usage.Charge(ctx, 1, 31, "api usage", now)
	if errCharge != nil {
		t.Fatalf("charge: %v", errCharge)
	}
	if res.Success || res.ErrorCode != ErrCodeInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %+v", res)
	}

	w := loadWallet(t, conn, 1)
	if w.IndependentTokens != 30 {
		t.Fatalf("rejected charge mutated balance: %d", w.IndependentTokens)
	}
	if w.Version != 1 {
		t.Fatalf("rejected charge bumped version: %d", w.Version)
	}
}

func TestChargeDailyUsageLimit(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pkg := seedPackage(t, conn, models.PlanBasic, 1000, 1000, 10, 1)
	pkg.DailyUsageLimit = 300
	if errSave := conn.Save(pkg).Error; errSave != nil {
		t.Fatalf("set daily limit: %v", errSave)
	}
	assignPackage(t, conn, 1, pkg, now)

	usage := NewUsageService(conn)
	if res, errCharge := usage.Charge(ctx, 1, 250, "api usage", now); errCharge != nil || !res.Success {
		t.Fatalf("first charge: %v %+v", errCharge, res)
	}

	res, errCharge := usage.Charge(ctx, 1, 100, "api usage", now)
	if errCharge != nil {
		t.Fatalf("second charge: %v", errCharge)
	}
	if res.Success || res.ErrorCode != ErrCodeLimitReached {
		t.Fatalf("expected LIMIT_REACHED over daily limit, got %+v", res)
	}
}

func TestGrantIdempotentPerOrderRef(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	usage := NewUsageService(conn)
	ref := "order-abc"

	first, errFirst := usage.GrantIndependent(ctx, 1, 500, &ref, "order paid", now)
	if errFirst != nil || !first.Success || first.Granted != 500 {
		t.Fatalf("first grant: %v %+v", errFirst, first)
	}

	// A webhook replay carries the same order reference and must apply
	// nothing.
	second, errSecond := usage.GrantIndependent(ctx, 1, 500, &ref, "order paid", now.Add(time.Minute))
	if errSecond != nil {
		t.Fatalf("second grant: %v", errSecond)
	}
	if !second.Success || second.Granted != 0 {
		t.Fatalf("replay was not a no-op: %+v", second)
	}

	w := loadWallet(t, conn, 1)
	if w.IndependentTokens != 500 {
		t.Fatalf("replay double-granted: %d", w.IndependentTokens)
	}
	if countLedgerRows(t, conn, 1) != 1 {
		t.Fatal("replay wrote a second ledger row")
	}
}

func TestConcurrentChargesSingleWinner(t *testing.T) {
	conn := openTestFileDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	usage := NewUsageService(conn)
	if res, errGrant := usage.GrantIndependent(ctx, 1, 100, nil, "purchase", now); errGrant != nil || !res.Success {
		t.Fatalf("grant: %v %+v", errGrant, res)
	}

	const workers = 8
	results := make([]ChargeResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = usage.Charge(ctx, 1, 100, "api usage", now)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("charge %d errored: %v", i, errs[i])
		}
		if results[i].Success {
			wins++
			continue
		}
		if results[i].ErrorCode != ErrCodeInsufficientBalance && results[i].ErrorCode != ErrCodeConflict {
			t.Fatalf("charge %d failed with unexpected code %s", i, results[i].ErrorCode)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning charge, got %d", wins)
	}

	w := loadWallet(t, conn, 1)
	if w.IndependentTokens != 0 {
		t.Fatalf("final balance %d, want 0", w.IndependentTokens)
	}
	if w.IndependentTokens < 0 || w.PackageTokensRemaining < 0 {
		t.Fatal("balance went negative")
	}
}
