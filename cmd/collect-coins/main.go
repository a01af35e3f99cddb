package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/coin-collector/internal/app"
	"github.com/maltedev/coin-collector/internal/collector"
	"github.com/maltedev/coin-collector/internal/config"
	"github.com/maltedev/coin-collector/internal/runs"
	"github.com/maltedev/coin-collector/pkg/logger"
)

func main() {
	var (
		headless     = flag.Bool("headless", false, "Run browser in headless mode (overrides BROWSER_HEADLESS)")
		manual       = flag.Bool("manual", false, "Ask for confirmation before every browser action (overrides COLLECT_MANUAL)")
		maxAttempts  = flag.Int("max-attempts", 0, "Maximum collection attempts (overrides COLLECT_MAX_ATTEMPTS)")
		envFile      = flag.String("env", ".env", "Path to an optional .env file")
		listLocators = flag.Bool("list-locators", false, "Print the element locators and exit")
	)
	flag.Parse()

	if *listLocators {
		printLocators()
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "headless":
			cfg.Browser.Headless = *headless
		case "manual":
			cfg.Cycle.Manual = *manual
		case "max-attempts":
			cfg.Cycle.MaxAttempts = *maxAttempts
		}
	})

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	var gate collector.Gate
	if cfg.Cycle.Manual {
		gate = collector.NewPromptGate(os.Stdin, os.Stdout)
	}

	session, err := app.Launch(cfg, gate, logger)
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	sc, err := app.OpenSideChannels(ctx, cfg, logger)
	if err != nil {
		logger.Warn("Side channels unavailable, running without them", "error", err)
		sc = &app.SideChannels{}
	}
	defer sc.Close()

	manager := runs.NewManager(session.Collector, sc.Publisher, sc.Recorder, logger)
	run, err := manager.Execute(ctx)
	if err != nil {
		logger.Error("Run did not start", "error", err)
		return
	}

	switch {
	case run.Status == runs.StatusSuccess:
		logger.Info("Coins collected", "attempts", run.Attempts)
	case run.Collected:
		logger.Warn("Coins collected by the last resort", "attempts", run.Attempts)
	case errors.Is(ctx.Err(), context.Canceled):
		logger.Info("Run interrupted", "attempts", run.Attempts)
	default:
		logger.Error("Coins not collected", "status", run.Status, "attempts", run.Attempts, "error", run.Error)
	}
}

func printLocators() {
	for _, spec := range collector.Catalogue() {
		fmt.Printf("%s\n", spec.Name)
		for i, alt := range spec.Alternatives {
			fmt.Printf("  %d. [%s] %s\n", i+1, alt.Strategy, alt.Pattern)
			for _, v := range alt.Variants {
				fmt.Printf("       {label} = %s\n", v)
			}
		}
	}
}
