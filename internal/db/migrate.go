package db

import (
	"errors"
	"fmt"

	"github.com/creditrail/creditrail/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}

	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Wallet{},
		&models.CreditTransaction{},
		&models.Package{},
		&models.UserPackage{},
		&models.RedemptionCode{},
		&models.Order{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	return backfillWalletColumns(conn)
}

// backfillWalletColumns adds columns introduced after the first wallet
// schema shipped. AutoMigrate covers new installs; existing tables created
// before these fields landed need the defaults applied explicitly.
func backfillWalletColumns(conn *gorm.DB) error {
	migrator := conn.Migrator()
	if !migrator.HasTable(&models.Wallet{}) {
		return nil
	}

	wallet := &models.Wallet{}
	for _, column := range []string{"version", "manual_reset_count"} {
		if migrator.HasColumn(wallet, column) {
			continue
		}
		if errAdd := migrator.AddColumn(wallet, column); errAdd != nil {
			return fmt.Errorf("db: add wallet column %s: %w", column, errAdd)
		}
		if errFill := conn.Model(wallet).Where(column+" IS NULL").Update(column, 0).Error; errFill != nil {
			return fmt.Errorf("db: backfill wallet column %s: %w", column, errFill)
		}
	}
	return nil
}

// SeedDefaultPackages inserts the built-in package catalog when empty.
func SeedDefaultPackages(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}

	var count int64
	if errCount := conn.Model(&models.Package{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count packages: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Package{
		{
			Name:              "Basic",
			PlanType:          models.PlanBasic,
			DailyPoints:       2000,
			CreditCap:         2000,
			RecoveryRate:      200,
			ManualResetPerDay: 1,
			ValidDays:         30,
			IsEnabled:         true,
		},
		{
			Name:              "Pro",
			PlanType:          models.PlanPro,
			DailyPoints:       6000,
			CreditCap:         6000,
			RecoveryRate:      500,
			ManualResetPerDay: 2,
			ValidDays:         30,
			IsEnabled:         true,
		},
		{
			Name:              "Enterprise",
			PlanType:          models.PlanEnterprise,
			DailyPoints:       20000,
			CreditCap:         20000,
			RecoveryRate:      2000,
			ManualResetPerDay: 5,
			ValidDays:         30,
			IsEnabled:         true,
		},
	}
	if errCreate := conn.Create(&defaults).Error; errCreate != nil {
		return fmt.Errorf("db: seed packages: %w", errCreate)
	}
	return nil
}
