package wallet

import (
	"context"
	"errors"
	"testing"

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

func TestApplyDeltaCreatesZeroedWallet(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	delta, errApply := store.ApplyDelta(ctx, 7, func(w *models.Wallet) error {
		w.IndependentTokens += 100
		return nil
	})
	if errApply != nil {
		t.Fatalf("apply delta: %v", errApply)
	}
	if delta.Before.IndependentTokens != 0 || delta.Before.Version != 0 {
		t.Fatalf("unexpected before state: %+v", delta.Before)
	}
	if delta.After.IndependentTokens != 100 {
		t.Fatalf("expected 100 independent tokens, got %d", delta.After.IndependentTokens)
	}
	if delta.After.Version != 1 {
		t.Fatalf("expected version 1, got %d", delta.After.Version)
	}
}

func TestApplyDeltaIncrementsVersionByOne(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		delta, errApply := store.ApplyDelta(ctx, 1, func(w *models.Wallet) error {
			w.IndependentTokens += 10
			return nil
		})
		if errApply != nil {
			t.Fatalf("apply delta %d: %v", i, errApply)
		}
		if delta.After.Version != int64(i) {
			t.Fatalf("expected version %d, got %d", i, delta.After.Version)
		}
	}
}

func TestApplyDeltaConflictWhenVersionMoves(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	if _, errSeed := store.ApplyDelta(ctx, 1, func(w *models.Wallet) error {
		w.IndependentTokens = 50
		return nil
	}); errSeed != nil {
		t.Fatalf("seed wallet: %v", errSeed)
	}

	// Bump the version between the read and the conditional write to model
	// a racing writer.
	_, errApply := ApplyDeltaTx(ctx, conn, 1, func(w *models.Wallet) error {
		if errBump := conn.Model(&models.Wallet{}).
			Where("user_id = ?", uint64(1)).
			Update("version", gorm.Expr("version + 1")).Error; errBump != nil {
			t.Fatalf("bump version: %v", errBump)
		}
		w.IndependentTokens -= 10
		return nil
	})
	if !errors.Is(errApply, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", errApply)
	}

	var w models.Wallet
	if errFind := conn.Where("user_id = ?", uint64(1)).First(&w).Error; errFind != nil {
		t.Fatalf("reload wallet: %v", errFind)
	}
	if w.IndependentTokens != 50 {
		t.Fatalf("losing writer mutated balance: %d", w.IndependentTokens)
	}
}

func TestApplyDeltaRejectsNegativeBalance(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	_, errApply := store.ApplyDelta(ctx, 1, func(w *models.Wallet) error {
		w.IndependentTokens -= 5
		return nil
	})
	if errApply == nil {
		t.Fatal("expected invariant error for negative balance")
	}

	var w models.Wallet
	errFind := conn.Where("user_id = ?", uint64(1)).First(&w).Error
	if errFind == nil && (w.Version != 0 || w.IndependentTokens != 0) {
		t.Fatalf("failed mutation left a write behind: %+v", w)
	}
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		t.Fatalf("reload wallet: %v", errFind)
	}
}

func TestApplyDeltaRejectsPackageAboveQuota(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	if _, errSeed := store.ApplyDelta(ctx, 1, func(w *models.Wallet) error {
		w.PackageDailyQuotaTokens = 1000
		w.PackageTokensRemaining = 1000
		return nil
	}); errSeed != nil {
		t.Fatalf("seed wallet: %v", errSeed)
	}

	_, errApply := store.ApplyDelta(ctx, 1, func(w *models.Wallet) error {
		w.PackageTokensRemaining += 1
		return nil
	})
	if errApply == nil {
		t.Fatal("expected invariant error above quota")
	}
}

func TestMutationErrorAbortsWithoutWrite(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	sentinel := errors.New("nope")
	_, errApply := store.ApplyDelta(ctx, 1, func(w *models.Wallet) error {
		w.IndependentTokens += 100
		return sentinel
	})
	if !errors.Is(errApply, sentinel) {
		t.Fatalf("expected sentinel error, got %v", errApply)
	}

	// The enclosing transaction rolled back, including the lazily created
	// zeroed row.
	var w models.Wallet
	errFind := conn.Where("user_id = ?", uint64(1)).First(&w).Error
	if errFind == nil && w.IndependentTokens != 0 {
		t.Fatalf("aborted mutation wrote balance: %d", w.IndependentTokens)
	}
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		t.Fatalf("reload wallet: %v", errFind)
	}
}
