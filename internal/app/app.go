package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/creditrail/creditrail/internal/config"
	"github.com/creditrail/creditrail/internal/db"
	internalhttp "github.com/creditrail/creditrail/internal/http"
	"github.com/creditrail/creditrail/internal/logging"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/scheduler"
	"github.com/creditrail/creditrail/internal/security"
	"github.com/creditrail/creditrail/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations plus catalog seeding.
func Migrate(ctx context.Context, appCfg config.AppConfig) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(appCfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	return db.SeedDefaultPackages(conn)
}

// RunServer boots the API server with its background scheduler and blocks
// until ctx is cancelled.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(appCfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := db.SeedDefaultPackages(conn); errSeed != nil {
		return errSeed
	}
	if errBootstrap := bootstrapAdmin(ctx, conn); errBootstrap != nil {
		return errBootstrap
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	sched, errSched := scheduler.New(conn)
	if errSched != nil {
		return errSched
	}
	if errStart := sched.Start(ctx); errStart != nil {
		return errStart
	}
	defer func() {
		if errStop := sched.Stop(); errStop != nil {
			log.WithError(errStop).Warn("scheduler shutdown")
		}
	}()

	router := internalhttp.BuildRouter(conn, cfg)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// bootstrapAdmin creates an initial admin account when none exists. The
// generated password is logged once; it must be changed after first login.
func bootstrapAdmin(ctx context.Context, conn *gorm.DB) error {
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	password, errRand := security.GenerateRandomString(24)
	if errRand != nil {
		return errRand
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	admin := models.Admin{
		Username: "admin",
		Password: hash,
		Active:   true,
	}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return errCreate
	}
	log.WithFields(log.Fields{
		"username": admin.Username,
		"password": password,
	}).Warn("created initial admin account")
	return nil
}
