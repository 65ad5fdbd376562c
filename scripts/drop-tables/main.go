package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

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

	if cfg.IsProduction() {
		fmt.Println("\n❌ Refusing to drop tables in production.")
		os.Exit(1)
	}

	db, err := database.Connect(context.Background(), cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db, appLogger) }()

	fmt.Println("\n⚠️  WARNING: This will DROP ALL TABLES in the database!")
	fmt.Println("   This action CANNOT be undone.")
	fmt.Print("\nType 'DROP ALL TABLES' to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	confirmation, _ := reader.ReadString('\n')
	if strings.TrimSpace(confirmation) != "DROP ALL TABLES" {
		fmt.Println("\n❌ Operation cancelled. Database unchanged.")
		os.Exit(0)
	}

	// Drop in reverse dependency order.
	models := bootstrap.Models()
	droppedCount := 0
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			appLogger.Warn("Failed to drop table", slog.String("model", fmt.Sprintf("%T", models[i])), slog.String("error", err.Error()))
			continue
		}
		droppedCount++
	}

	fmt.Printf("\n✅ Successfully dropped %d tables!\n", droppedCount)
	fmt.Println("   You can now run the migrate script to recreate them.")
}
