package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/pipeline"
)

func main() {
	var (
		target      = flag.String("target", "books_toscrape", "target profile to scrape")
		maxProducts = flag.Int("max", 50, "maximum number of products to extract")
		skipScrape  = flag.Bool("skip-scrape", false, "skip scraping and enrich the existing raw snapshot")
		skipEnrich  = flag.Bool("skip-enrich", false, "stop after writing the raw snapshot")
		provider    = flag.String("provider", "", "override the configured AI provider (openai or anthropic)")
		listTargets = flag.Bool("list-targets", false, "print configured targets and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	if *provider != "" {
		cfg.AI.Provider = *provider
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if *listTargets {
		for name, t := range cfg.Targets {
			fmt.Printf("%-20s %-8s %s\n", name, t.Type, t.URL)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg)

	var report *pipeline.Report
	if *skipScrape {
		report, err = p.EnrichExisting(ctx)
	} else {
		report, err = p.Run(ctx, pipeline.Options{
			Target:      *target,
			MaxProducts: *maxProducts,
			SkipEnrich:  *skipEnrich,
		})
	}
	if err != nil {
		slog.Error("pipeline failed", "target", *target, "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
