// Package pipeline composes the full run: scrape a target, persist the
// raw snapshot, enrich it, persist the final snapshot. It owns the
// browser session's scope so the OS process is released on every exit
// path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/marketintel/stealth-scraper/internal/browser"
	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/enrich"
	"github.com/marketintel/stealth-scraper/internal/models"
	"github.com/marketintel/stealth-scraper/internal/scraper"
	"github.com/marketintel/stealth-scraper/internal/storage"
)

type Options struct {
	Target      string
	MaxProducts int
	SkipEnrich  bool

	// Rand seeds every randomized component; nil means time-seeded.
	Rand *rand.Rand
}

// Report summarizes one completed run.
type Report struct {
	Target         string                `json:"target"`
	TotalProducts  int                   `json:"total_products"`
	Enriched       bool                  `json:"enriched"`
	AIProvider     string                `json:"ai_provider,omitempty"`
	BatchFailures  []enrich.BatchFailure `json:"batch_failures,omitempty"`
	RawPath        string                `json:"raw_path"`
	EnrichedPath   string                `json:"enriched_path,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

type Pipeline struct {
	cfg    *config.Config
	store  *storage.SnapshotStore
	logger *slog.Logger

	// scrape and newProvider are swapped in tests to avoid a live
	// browser and a live AI upstream.
	scrape      func(ctx context.Context, target config.Target, opts Options) (*models.Snapshot, error)
	newProvider func(cfg config.AIConfig) (enrich.Provider, error)
}

func New(cfg *config.Config) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  storage.NewSnapshotStore(),
		logger: slog.Default().With("component", "pipeline"),
	}
	p.scrape = p.scrapeTarget
	p.newProvider = enrich.NewProvider

	return p
}

// Run executes scrape → persist → enrich → persist for one target.
// Batch-level enrichment failures are reported, not fatal; only
// navigation failure or empty extraction abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	target, err := p.cfg.GetTarget(opts.Target)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Target:    target.Name,
		StartedAt: time.Now(),
		RawPath:   p.cfg.Output.RawPath,
	}

	raw, err := p.scrape(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	if err := p.store.Write(p.cfg.Output.RawPath, raw); err != nil {
		return nil, fmt.Errorf("failed to persist raw snapshot: %w", err)
	}
	p.logger.Info("raw snapshot written", "path", p.cfg.Output.RawPath, "records", raw.Metadata.TotalProducts)

	report.TotalProducts = raw.Metadata.TotalProducts

	if opts.SkipEnrich {
		report.FinishedAt = time.Now()
		return report, nil
	}

	provider, err := p.newProvider(p.cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	enriched, failures, err := enrich.NewEngine(provider, p.cfg.AI).Enrich(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("enrichment failed: %w", err)
	}

	if err := p.store.Write(p.cfg.Output.EnrichedPath, enriched); err != nil {
		return nil, fmt.Errorf("failed to persist enriched snapshot: %w", err)
	}
	p.logger.Info("enriched snapshot written", "path", p.cfg.Output.EnrichedPath,
		"distribution", enriched.Metadata.CategoryDistribution)

	report.Enriched = true
	report.AIProvider = provider.Name()
	report.BatchFailures = failures
	report.EnrichedPath = p.cfg.Output.EnrichedPath
	report.FinishedAt = time.Now()

	return report, nil
}

// EnrichExisting re-runs enrichment over a previously written raw
// snapshot, without touching a browser.
func (p *Pipeline) EnrichExisting(ctx context.Context) (*Report, error) {
	started := time.Now()

	raw, err := p.store.Read(p.cfg.Output.RawPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load raw snapshot: %w", err)
	}

	provider, err := p.newProvider(p.cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	enriched, failures, err := enrich.NewEngine(provider, p.cfg.AI).Enrich(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("enrichment failed: %w", err)
	}

	if err := p.store.Write(p.cfg.Output.EnrichedPath, enriched); err != nil {
		return nil, fmt.Errorf("failed to persist enriched snapshot: %w", err)
	}

	return &Report{
		Target:        raw.Metadata.Target,
		TotalProducts: raw.Metadata.TotalProducts,
		Enriched:      true,
		AIProvider:    provider.Name(),
		BatchFailures: failures,
		RawPath:       p.cfg.Output.RawPath,
		EnrichedPath:  p.cfg.Output.EnrichedPath,
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}, nil
}

// scrapeTarget scopes the browser session to exactly one target run.
func (p *Pipeline) scrapeTarget(ctx context.Context, target config.Target, opts Options) (*models.Snapshot, error) {
	session, err := browser.New(&browser.Options{
		Headless:       p.cfg.Browser.Headless,
		Timeout:        p.cfg.Browser.Timeout,
		UserAgents:     browser.DefaultOptions().UserAgents,
		RotateUA:       p.cfg.Browser.RotateUA,
		ViewportWidth:  p.cfg.Browser.ViewportWidth,
		ViewportHeight: p.cfg.Browser.ViewportHeight,
		AcceptLanguage: p.cfg.Browser.AcceptLanguage,
		TimezoneID:     p.cfg.Browser.TimezoneID,
		Locale:         p.cfg.Browser.Locale,
		ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
		Rand:           opts.Rand,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			p.logger.Error("failed to close browser session", "error", err)
		}
	}()

	products, err := scraper.New(session, p.cfg, opts.Rand).Scrape(ctx, target, opts.MaxProducts)
	if err != nil {
		return nil, err
	}

	return models.NewSnapshot(target.Name, products), nil
}

// Store exposes the snapshot store for read-side collaborators.
func (p *Pipeline) Store() *storage.SnapshotStore {
	return p.store
}
