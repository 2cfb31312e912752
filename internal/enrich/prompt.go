package enrich

import (
	"encoding/json"
	"fmt"

	"github.com/marketintel/stealth-scraper/internal/models"
)

// PriceStats gives the model the price range context it needs to place
// records into relative tiers.
type PriceStats struct {
	Min float64
	Max float64
	Avg float64
}

// ComputePriceStats aggregates over records with a parsed price.
func ComputePriceStats(products []models.Product) (PriceStats, int) {
	var stats PriceStats
	count := 0

	for _, p := range products {
		if p.Price == nil {
			continue
		}
		price := *p.Price
		if count == 0 || price < stats.Min {
			stats.Min = price
		}
		if price > stats.Max {
			stats.Max = price
		}
		stats.Avg += price
		count++
	}

	if count > 0 {
		stats.Avg /= float64(count)
	}

	return stats, count
}

const promptTemplate = `Analyze these e-commerce products and categorize each into a pricing tier.

PRICE STATISTICS:
- Min: $%.2f
- Max: $%.2f
- Average: $%.2f

PRODUCTS:
%s

TASK:
For each product, determine its category based on:
1. Price relative to the range
2. Rating (if available)
3. Product name/features

CATEGORIES:
- "Budget" - Lower-priced options (typically below average)
- "Mid Range" - Moderately priced (around average)
- "High End" - Premium/expensive (well above average)

Respond ONLY with valid JSON in this exact format:
{
  "categorizations": [
    {
      "id": "product_id",
      "category": "Budget|Mid Range|High End",
      "reasoning": "brief explanation"
    }
  ]
}`

// buildPrompt renders the shared categorization prompt for one batch.
// Both providers send the identical prompt so enrichment output is a
// pure function of records plus provider behavior.
func buildPrompt(batch []Summary, stats PriceStats) (string, error) {
	payload, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch: %w", err)
	}

	return fmt.Sprintf(promptTemplate, stats.Min, stats.Max, stats.Avg, payload), nil
}
