// Package main is the CLI entrypoint for telebot. It provides subcommands
// for running the bot (serve), managing the audit database migrations
// (migrate), and printing version information (version). The serve
// command loads configuration, wires every collaborator through
// internal/app, and handles graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hkarel/telebot/internal/app"
	"github.com/hkarel/telebot/internal/audit"
	"github.com/hkarel/telebot/internal/config"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "migrate":
		if err := runMigrate(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		runVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("telebot — group chat moderation bot")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  telebot <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the bot")
	fmt.Println("  migrate   Run audit database migrations")
	fmt.Println("  version   Print version information")
	fmt.Println("  help      Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  Config file:  telebot.yaml (or set TELEBOT_CONFIG_PATH)")
	fmt.Println("  Env prefix:   TELEBOT_ (e.g. TELEBOT_BOT_ID)")
}

// runServe loads configuration, builds the App, and runs it until a
// shutdown signal arrives.
func runServe() error {
	bootLogger := app.SetupLogger("info", "json")
	bootLogger.Info("starting telebot", "version", version, "commit", commit)

	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := app.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "path", cfgPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bot, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building bot: %w", err)
	}

	return bot.Run(ctx)
}

// runMigrate applies pending audit database migrations.
func runMigrate() error {
	logger := app.SetupLogger("info", "text")

	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Audit.Enabled {
		return fmt.Errorf("audit.enabled is false; nothing to migrate")
	}

	return audit.MigrateUp(cfg.Audit.URL, logger)
}

func runVersion() {
	fmt.Printf("telebot %s\n", version)
	fmt.Printf("  commit: %s\n", commit)
}

// configPath returns the config file path from TELEBOT_CONFIG_PATH or the
// default "telebot.yaml".
func configPath() string {
	if p := os.Getenv("TELEBOT_CONFIG_PATH"); p != "" {
		return p
	}
	return "telebot.yaml"
}
