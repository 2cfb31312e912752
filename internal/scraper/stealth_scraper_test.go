package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/stealth-scraper/internal/browser"
	"github.com/marketintel/stealth-scraper/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	// Zero out pacing so tests run instantly.
	cfg.Behavior.ActionDelayMin = 0
	cfg.Behavior.ActionDelayMax = 0
	return cfg
}

func booksTarget(cfg *config.Config, t *testing.T) config.Target {
	t.Helper()
	target, err := cfg.GetTarget("books_toscrape")
	require.NoError(t, err)
	return target
}

func newTestScraper(t *testing.T, html string, loadErr error) *StealthScraper {
	t.Helper()
	cfg := testConfig(t)
	s := New(nil, cfg, rand.New(rand.NewSource(1)))
	s.loadPage = func(ctx context.Context, target config.Target) (string, error) {
		return html, loadErr
	}
	return s
}

const pageHTML = `
<article class="product_pod">
	<p class="star-rating Four"></p>
	<h3><a title="Sharp Objects">Sharp Objects</a></h3>
	<p class="price_color">£47.82</p>
	<p class="availability">In stock</p>
</article>
<article class="product_pod">
	<h3><a title="Sapiens">Sapiens</a></h3>
	<p class="price_color">£54.23</p>
	<p class="availability">Only 1 left in stock</p>
</article>`

func TestScrapeExtractsRecords(t *testing.T) {
	cfg := testConfig(t)
	s := newTestScraper(t, pageHTML, nil)

	products, err := s.Scrape(context.Background(), booksTarget(cfg, t), 50)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "books_toscrape_1", products[0].ID)
	assert.Equal(t, "Sharp Objects", products[0].Name)
	require.NotNil(t, products[0].Rating)
	assert.Equal(t, 4.0, *products[0].Rating)

	require.NotNil(t, products[1].Stock.ScarcitySignal)
	assert.Equal(t, StateDone, s.State())
}

func TestScrapeHonorsMaxProducts(t *testing.T) {
	cfg := testConfig(t)
	s := newTestScraper(t, pageHTML, nil)

	products, err := s.Scrape(context.Background(), booksTarget(cfg, t), 1)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestScrapeNavigationFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	navErr := fmt.Errorf("%w: connection refused", browser.ErrNavigation)
	s := newTestScraper(t, "", navErr)

	_, err := s.Scrape(context.Background(), booksTarget(cfg, t), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNavigation)
	assert.Equal(t, StateFailed, s.State())
}

func TestScrapeEmptyPageIsFatal(t *testing.T) {
	cfg := testConfig(t)
	s := newTestScraper(t, `<html><body><p>maintenance page</p></body></html>`, nil)

	_, err := s.Scrape(context.Background(), booksTarget(cfg, t), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyExtraction)
	assert.Equal(t, StateFailed, s.State())
}

func TestScrapeAllRowsInvalidIsFatal(t *testing.T) {
	cfg := testConfig(t)
	// Containers exist but none carries a name: a rotted selector, not
	// an empty category.
	s := newTestScraper(t, `<article class="product_pod"><p class="price_color">£9.99</p></article>`, nil)

	_, err := s.Scrape(context.Background(), booksTarget(cfg, t), 10)
	assert.ErrorIs(t, err, ErrEmptyExtraction)
}
