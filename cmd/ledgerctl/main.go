package main

import (
	"fmt"
	"os"

	"ai-interview-be/internal/config"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/unitofwork"
	"ai-interview-be/pkg/database"
	"ai-interview-be/pkg/ledger"

	"github.com/fatih/color"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		color.Red("DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	consumption := ledger.New(unitofwork.NewRepositoryFactory(db), ledger.Config{
		FreeCredits:   cfg.Ledger.FreeCredits,
		RefundRetries: cfg.Ledger.RefundRetries,
		RefundBackoff: cfg.Ledger.RefundBackoff,
	}, logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production"))

	if err := newRootCmd(consumption).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
