package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteWalletColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"version", "manual_reset_count", "package_daily_quota_tokens", "last_recovery_at"} {
		if !conn.Migrator().HasColumn("wallets", column) {
			t.Fatalf("wallets missing column %s", column)
		}
	}
}

func TestMigrateSQLiteWalletColumnsBackfillExistingTable(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errExec := conn.Exec(`
		CREATE TABLE wallets (
			id integer primary key autoincrement,
			user_id integer not null unique,
			package_tokens_remaining integer not null default 0,
			independent_tokens integer not null default 0,
			package_daily_quota_tokens integer not null default 0,
			last_recovery_at datetime,
			package_reset_at datetime,
			manual_reset_at datetime,
			created_at datetime,
			updated_at datetime
		)
	`).Error; errExec != nil {
		t.Fatalf("create legacy wallets table: %v", errExec)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"version", "manual_reset_count"} {
		if !conn.Migrator().HasColumn("wallets", column) {
			t.Fatalf("wallets missing column %s after backfill migration", column)
		}
	}
}

func TestSeedDefaultPackages(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errSeed := SeedDefaultPackages(conn); errSeed != nil {
		t.Fatalf("seed packages: %v", errSeed)
	}
	var count int64
	if errCount := conn.Table("packages").Count(&count).Error; errCount != nil {
		t.Fatalf("count packages: %v", errCount)
	}
	if count != 3 {
		t.Fatalf("expected 3 seeded packages, got %d", count)
	}

	// Seeding twice must not duplicate the catalog.
	if errSeed := SeedDefaultPackages(conn); errSeed != nil {
		t.Fatalf("seed packages again: %v", errSeed)
	}
	if errCount := conn.Table("packages").Count(&count).Error; errCount != nil {
		t.Fatalf("recount packages: %v", errCount)
	}
	if count != 3 {
		t.Fatalf("expected 3 packages after reseed, got %d", count)
	}
}
