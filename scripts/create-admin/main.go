package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/pkg/config"
	"github.com/mo-amir99/wb-simple-server-go/pkg/database"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/validation"
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

	telegramID := ""
	if len(os.Args) > 1 {
		telegramID = strings.TrimSpace(os.Args[1])
	} else {
		fmt.Print("Telegram user id: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		telegramID = strings.TrimSpace(line)
	}

	telegramID, err = validation.NormalizeTelegramID(telegramID)
	if err != nil {
		fmt.Println("\n❌ Telegram user id must be numeric.")
		os.Exit(1)
	}

	changed, err := user.EnsureAdmins(db, []string{telegramID})
	if err != nil {
		appLogger.Error("Failed to promote admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if changed == 0 {
		fmt.Printf("\nℹ️  %s is already an admin.\n", telegramID)
		return
	}
	fmt.Printf("\n✅ %s is now an admin.\n", telegramID)
}
