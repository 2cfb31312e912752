package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/models"
)

// ErrBatchFailed marks a batch that exhausted its retries. It is
// recorded on the run report, never propagated as a run failure.
var ErrBatchFailed = errors.New("batch failed after retries")

// BatchFailure records a batch that exhausted its retries and passed
// through unenriched.
type BatchFailure struct {
	Batch   int    `json:"batch"`
	Records int    `json:"records"`
	Error   string `json:"error"`
}

// Engine runs batched categorization over a raw snapshot. It never
// mutates its input and never drops a record: the worst outcome for
// any record is passing through without enrichment fields.
type Engine struct {
	provider   Provider
	batchSize  int
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

func NewEngine(provider Provider, cfg config.AIConfig) *Engine {
	return &Engine{
		provider:   provider,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		logger:     slog.Default().With("component", "enrichment"),
	}
}

// Enrich produces a new enriched snapshot from a raw one. Records
// without a parsed price are not submitted (there is nothing to tier)
// and land in the Uncategorized distribution bucket alongside records
// whose batch or verdict failed.
func (e *Engine) Enrich(ctx context.Context, raw *models.Snapshot) (*models.Snapshot, []BatchFailure, error) {
	if raw == nil {
		return nil, nil, fmt.Errorf("nil snapshot")
	}

	products := make([]models.Product, len(raw.Products))
	copy(products, raw.Products)

	stats, priced := ComputePriceStats(products)
	e.logger.Info("starting enrichment",
		"provider", e.provider.Name(),
		"records", len(products),
		"priced", priced,
		"price_min", stats.Min,
		"price_max", stats.Max,
	)

	var failures []BatchFailure

	if priced > 0 {
		// Indices of records eligible for submission, in record order.
		eligible := make([]int, 0, priced)
		for i := range products {
			if products[i].Price != nil {
				eligible = append(eligible, i)
			}
		}

		batchNum := 0
		for start := 0; start < len(eligible); start += e.batchSize {
			end := start + e.batchSize
			if end > len(eligible) {
				end = len(eligible)
			}
			batchNum++

			indices := eligible[start:end]
			if failure := e.enrichBatch(ctx, products, indices, stats, batchNum); failure != nil {
				failures = append(failures, *failure)
			}
		}
	} else {
		e.logger.Warn("no records with parsed prices, nothing to submit")
	}

	now := time.Now()
	enriched := &models.Snapshot{
		Metadata: models.Metadata{
			Target:               raw.Metadata.Target,
			TotalProducts:        len(products),
			ScrapedAt:            raw.Metadata.ScrapedAt,
			AIProvider:           e.provider.Name(),
			EnrichedAt:           &now,
			CategoryDistribution: models.Distribution(products),
		},
		Products: products,
	}

	e.logger.Info("enrichment finished",
		"enriched", len(products)-enriched.Metadata.CategoryDistribution[models.CategoryUncategorized],
		"uncategorized", enriched.Metadata.CategoryDistribution[models.CategoryUncategorized],
		"failed_batches", len(failures),
	)

	return enriched, failures, nil
}

// enrichBatch submits one batch with bounded retries and applies the
// verdicts in place. Returns a failure record when retries are
// exhausted; per-record verdict problems degrade silently to
// pass-through.
func (e *Engine) enrichBatch(ctx context.Context, products []models.Product, indices []int, stats PriceStats, batchNum int) *BatchFailure {
	batch := make([]Summary, 0, len(indices))
	for _, i := range indices {
		batch = append(batch, Summary{
			ID:     products[i].ID,
			Name:   products[i].Name,
			Price:  products[i].Price,
			Rating: products[i].Rating,
		})
	}

	verdicts, err := e.categorizeWithRetry(ctx, batch, stats, batchNum)
	if err != nil {
		e.logger.Error("batch failed, passing records through unenriched",
			"batch", batchNum, "records", len(batch), "error", err)
		return &BatchFailure{Batch: batchNum, Records: len(batch), Error: err.Error()}
	}

	now := time.Now()
	for _, i := range indices {
		verdict, ok := verdicts[products[i].ID]
		if !ok {
			e.logger.Warn("no verdict for record", "batch", batchNum, "id", products[i].ID)
			continue
		}

		category, err := models.ParseCategory(verdict.Category)
		if err != nil {
			e.logger.Warn("verdict outside category enumeration",
				"batch", batchNum, "id", products[i].ID, "category", verdict.Category)
			continue
		}

		products[i].AICategory = category
		products[i].AIReasoning = verdict.Reasoning
		products[i].EnrichedAt = &now
	}

	return nil
}

func (e *Engine) categorizeWithRetry(ctx context.Context, batch []Summary, stats PriceStats, batchNum int) (map[string]Categorization, error) {
	var lastErr error
	delay := e.baseDelay

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		verdicts, err := e.provider.Categorize(ctx, batch, stats)
		if err == nil {
			return verdicts, nil
		}
		lastErr = err

		if attempt < e.maxRetries {
			e.logger.Warn("batch attempt failed, backing off",
				"batch", batchNum, "attempt", attempt, "max", e.maxRetries, "delay", delay, "error", err)

			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrBatchFailed, e.maxRetries, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
