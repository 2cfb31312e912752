package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/models"
)

// fakeProvider categorizes by price: below 30 is Budget, above 100 is
// High End. failFor marks record ids whose batch must fail transport.
type fakeProvider struct {
	failFor   map[string]bool
	badFor    map[string]string
	omitFor   map[string]bool
	callCount int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Categorize(_ context.Context, batch []Summary, _ PriceStats) (map[string]Categorization, error) {
	f.callCount++

	verdicts := make(map[string]Categorization, len(batch))
	for _, s := range batch {
		if f.failFor[s.ID] {
			return nil, errors.New("simulated timeout")
		}
		if f.omitFor[s.ID] {
			continue
		}

		category := string(models.CategoryMidRange)
		if bad, ok := f.badFor[s.ID]; ok {
			category = bad
		} else if s.Price != nil && *s.Price < 30 {
			category = string(models.CategoryBudget)
		} else if s.Price != nil && *s.Price > 100 {
			category = string(models.CategoryHighEnd)
		}

		verdicts[s.ID] = Categorization{
			ID:        s.ID,
			Category:  category,
			Reasoning: fmt.Sprintf("priced at %v", s.Price),
		}
	}

	return verdicts, nil
}

func aiConfig(batchSize int) config.AIConfig {
	return config.AIConfig{
		BatchSize:      batchSize,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}
}

func rawSnapshot(prices ...float64) *models.Snapshot {
	products := make([]models.Product, 0, len(prices))
	for i, price := range prices {
		p := price
		products = append(products, models.Product{
			ID:        fmt.Sprintf("books_toscrape_%d", i+1),
			Name:      fmt.Sprintf("Book %d", i+1),
			Price:     &p,
			Source:    "books_toscrape",
			ScrapedAt: time.Now(),
		})
	}
	return models.NewSnapshot("books_toscrape", products)
}

func TestEnrichHappyPath(t *testing.T) {
	provider := &fakeProvider{}
	engine := NewEngine(provider, aiConfig(20))

	raw := rawSnapshot(10, 50, 200)
	enriched, failures, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, failures)

	require.Len(t, enriched.Products, 3)
	assert.Equal(t, models.CategoryBudget, enriched.Products[0].AICategory)
	assert.Equal(t, models.CategoryMidRange, enriched.Products[1].AICategory)
	assert.Equal(t, models.CategoryHighEnd, enriched.Products[2].AICategory)

	for _, p := range enriched.Products {
		assert.NotEmpty(t, p.AIReasoning)
		assert.NotNil(t, p.EnrichedAt)
	}

	assert.Equal(t, "fake", enriched.Metadata.AIProvider)
	assertDistributionSums(t, enriched)
}

func TestEnrichIsPureOverInput(t *testing.T) {
	provider := &fakeProvider{}
	engine := NewEngine(provider, aiConfig(20))

	raw := rawSnapshot(10, 50)
	_, _, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)

	// The raw snapshot is the immutable intermediate artifact.
	for _, p := range raw.Products {
		assert.Empty(t, p.AICategory)
		assert.Nil(t, p.EnrichedAt)
	}

	// Re-running with identical provider behavior yields identical labels.
	first, _, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)
	second, _, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)

	for i := range first.Products {
		assert.Equal(t, first.Products[i].AICategory, second.Products[i].AICategory)
		assert.Equal(t, first.Products[i].AIReasoning, second.Products[i].AIReasoning)
	}
}

func TestEnrichFailedBatchPassesThrough(t *testing.T) {
	// Batch size 5: records 1-5 form batch 1 (fails every retry),
	// records 6-10 form batch 2 (succeeds).
	raw := rawSnapshot(10, 20, 30, 40, 50, 60, 70, 80, 90, 110)
	provider := &fakeProvider{failFor: map[string]bool{"books_toscrape_1": true}}
	engine := NewEngine(provider, aiConfig(5))

	enriched, failures, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Batch)
	assert.Equal(t, 5, failures[0].Records)
	assert.Contains(t, failures[0].Error, "simulated timeout")

	// All ten records survive; the failed batch is unenriched.
	require.Len(t, enriched.Products, 10)
	for _, p := range enriched.Products[:5] {
		assert.False(t, p.Enriched())
	}
	for _, p := range enriched.Products[5:] {
		assert.True(t, p.Enriched())
	}

	// Batch 1 retried 3 times, batch 2 called once.
	assert.Equal(t, 4, provider.callCount)

	assert.Equal(t, 5, enriched.Metadata.CategoryDistribution[models.CategoryUncategorized])
	assertDistributionSums(t, enriched)
}

func TestEnrichInvalidVerdictDegradesToPassThrough(t *testing.T) {
	raw := rawSnapshot(10, 50, 200)
	provider := &fakeProvider{
		badFor:  map[string]string{"books_toscrape_2": "Luxury"},
		omitFor: map[string]bool{"books_toscrape_3": true},
	}
	engine := NewEngine(provider, aiConfig(20))

	enriched, failures, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, failures)

	assert.True(t, enriched.Products[0].Enriched())
	assert.False(t, enriched.Products[1].Enriched())
	assert.False(t, enriched.Products[2].Enriched())

	assert.Equal(t, 2, enriched.Metadata.CategoryDistribution[models.CategoryUncategorized])
	assertDistributionSums(t, enriched)
}

func TestEnrichUnpricedRecordsAreNotSubmitted(t *testing.T) {
	raw := rawSnapshot(25)
	raw.Products = append(raw.Products, models.Product{
		ID:     "books_toscrape_2",
		Name:   "Unpriced Book",
		Source: "books_toscrape",
	})
	raw.Metadata.TotalProducts = len(raw.Products)

	provider := &fakeProvider{}
	engine := NewEngine(provider, aiConfig(20))

	enriched, failures, err := engine.Enrich(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, failures)

	require.Len(t, enriched.Products, 2)
	assert.True(t, enriched.Products[0].Enriched())
	assert.False(t, enriched.Products[1].Enriched())
	assertDistributionSums(t, enriched)
}

func TestEnrichEmptySnapshot(t *testing.T) {
	provider := &fakeProvider{}
	engine := NewEngine(provider, aiConfig(20))

	enriched, failures, err := engine.Enrich(context.Background(), models.NewSnapshot("books_toscrape", nil))
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Empty(t, enriched.Products)
	assert.Zero(t, provider.callCount)
}

func assertDistributionSums(t *testing.T, snapshot *models.Snapshot) {
	t.Helper()

	total := 0
	for _, n := range snapshot.Metadata.CategoryDistribution {
		total += n
	}
	assert.Equal(t, snapshot.Metadata.TotalProducts, total)
}
