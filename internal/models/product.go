package models

import (
	"fmt"
	"time"
)

// Category is the pricing tier assigned during AI enrichment.
type Category string

const (
	CategoryBudget   Category = "Budget"
	CategoryMidRange Category = "Mid Range"
	CategoryHighEnd  Category = "High End"

	// CategoryUncategorized never appears on a record; it is the
	// distribution bucket for records that passed through enrichment
	// without a label.
	CategoryUncategorized Category = "Uncategorized"
)

// ParseCategory validates a provider-supplied category string against
// the known tiers.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBudget, CategoryMidRange, CategoryHighEnd:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// StockInfo captures availability and any scarcity phrasing found in
// the container's stock text.
type StockInfo struct {
	InStock        bool    `json:"in_stock"`
	ScarcitySignal *string `json:"scarcity_signal"`
	RawText        string  `json:"raw_text,omitempty"`
}

// Product is one extracted listing record. Price and Rating are nil
// when the source text could not be parsed; the raw strings are kept
// verbatim for audit either way.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     *float64  `json:"price"`
	PriceRaw  string    `json:"price_raw"`
	Rating    *float64  `json:"rating"`
	RatingRaw string    `json:"rating_raw"`
	Stock     StockInfo `json:"stock_info"`
	Source    string    `json:"source"`
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`

	// Set by enrichment only; empty on raw records.
	AICategory  Category   `json:"ai_category,omitempty"`
	AIReasoning string     `json:"ai_reasoning,omitempty"`
	EnrichedAt  *time.Time `json:"enriched_at,omitempty"`
}

func (p *Product) Validate() []string {
	var errs []string

	if p.ID == "" {
		errs = append(errs, "id is required")
	}
	if p.Name == "" {
		errs = append(errs, "name is required")
	}
	if p.Source == "" {
		errs = append(errs, "source is required")
	}
	if p.Price != nil && *p.Price < 0 {
		errs = append(errs, "price cannot be negative")
	}
	if p.Rating != nil && *p.Rating < 0 {
		errs = append(errs, "rating cannot be negative")
	}

	return errs
}

// Enriched reports whether enrichment attached a category.
func (p *Product) Enriched() bool {
	return p.AICategory != ""
}

// Metadata wraps a record collection for persistence.
type Metadata struct {
	Target        string    `json:"target"`
	TotalProducts int       `json:"total_products"`
	ScrapedAt     time.Time `json:"scraped_at"`

	// Enriched output only.
	AIProvider           string           `json:"ai_provider,omitempty"`
	EnrichedAt           *time.Time       `json:"enriched_at,omitempty"`
	CategoryDistribution map[Category]int `json:"category_distribution,omitempty"`
}

// Snapshot is the hand-off document: raw records after extraction,
// enriched records after the enrichment pass.
type Snapshot struct {
	Metadata Metadata  `json:"metadata"`
	Products []Product `json:"products"`
}

// NewSnapshot builds a raw snapshot around a record set.
func NewSnapshot(target string, products []Product) *Snapshot {
	return &Snapshot{
		Metadata: Metadata{
			Target:        target,
			TotalProducts: len(products),
			ScrapedAt:     time.Now(),
		},
		Products: products,
	}
}

// Distribution counts ai_category values across a record set. Records
// without a category land in the Uncategorized bucket, so the counts
// always sum to len(products).
func Distribution(products []Product) map[Category]int {
	dist := make(map[Category]int)
	for _, p := range products {
		if p.Enriched() {
			dist[p.AICategory]++
		} else {
			dist[CategoryUncategorized]++
		}
	}
	return dist
}
