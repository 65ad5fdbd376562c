package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mo-amir99/wb-simple-server-go/internal/bootstrap"
	"github.com/mo-amir99/wb-simple-server-go/pkg/config"
	"github.com/mo-amir99/wb-simple-server-go/pkg/database"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel, "")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	db, err := database.Connect(context.Background(), cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db, appLogger) }()

	if err := database.Migrate(db, appLogger, bootstrap.Models()...); err != nil {
		appLogger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := bootstrap.EnsureAdmins(db, cfg.AdminTelegramIDs, appLogger); err != nil {
		appLogger.Error("Failed to promote admins", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println("\n✅ All database tables created/updated successfully!")
}
