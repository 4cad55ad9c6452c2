package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/kiosk/cmd/utils/internal/commands"
)

const (
	appName    = "kiosk-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := apt.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]

	switch command {
	case "show-session":
		if err := commands.ShowSession(ctx, config, logger, os.Stdout); err != nil {
			log.Fatalf("❌ Show session failed: %v", err)
		}

	case "seed-session":
		if err := commands.SeedSession(ctx, config, logger); err != nil {
			log.Fatalf("❌ Session seeding failed: %v", err)
		}
		logger.Info("✅ Session seeding completed successfully")

	case "clear-session":
		if err := commands.ClearSession(ctx, config, logger); err != nil {
			log.Fatalf("❌ Clear session failed: %v", err)
		}

	case "reset-state":
		if err := commands.ResetState(ctx, config, logger); err != nil {
			log.Fatalf("❌ State reset failed: %v", err)
		}
		logger.Info("✅ State reset completed successfully")

	case "menu":
		if err := commands.Menu(ctx, config, logger, os.Stdout); err != nil {
			log.Fatalf("❌ Menu failed: %v", err)
		}

	case "watch-events":
		if err := commands.WatchEvents(ctx, config, logger, os.Stdout); err != nil {
			log.Fatalf("❌ Watch events failed: %v", err)
		}

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Kiosk utility commands

Usage:
  %s <command> [options]

Commands:
  show-session   Print the stored session and kiosk correlation id
  seed-session   Store a demo customer so the kiosk starts on the ordering screen
  clear-session  Remove the stored session (the correlation id is kept)
  reset-state    Delete the kiosk state database (USE WITH CAUTION)
  menu           Print the menu as the kiosk would show it
  watch-events   Print kiosk ticket and session events from NATS
  version        Print version information
  help           Show this help message

Environment Variables:
  UTILS_SESSION_DB_PATH  Kiosk state database (default: data/kiosk.db)
  UTILS_API_URL          Ordering backend URL (default: http://127.0.0.1:8000)
  UTILS_NATS_URL         NATS URL for watch-events (default: nats://localhost:4222)
  UTILS_SEED_PHONE       Phone used by seed-session (default: 555-0100)
  UTILS_SEED_PROFILE     Profile used by seed-session (default: kid_friendly)
  UTILS_LOG_LEVEL        Log level: debug, info, warn, error (default: info)

Examples:
  %s seed-session
  UTILS_API_URL=http://10.0.0.5:8000 %s menu
  %s reset-state

`, appName, appName, appName, appName, appName)
}
