package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/creditrail/creditrail/internal/app"
	"github.com/creditrail/creditrail/internal/config"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var appCfg config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "creditrail",
	Short: "Credit ledger and billing backend",
	Long:  "CreditRail tracks per-user credit wallets with regenerating package pools, purchased independent credits, redemption codes and subscription packages.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunServer(ctx, appCfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and seed the package catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate(cmd.Context(), appCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appCfg.ConfigPath, "config", config.DefaultConfigPath, "path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if errEnv := godotenv.Load(); errEnv != nil && !os.IsNotExist(errEnv) {
		log.WithError(errEnv).Warn("load .env")
	}
	if errRun := rootCmd.Execute(); errRun != nil {
		log.Fatal(errRun)
	}
}
