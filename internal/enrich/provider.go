// Package enrich attaches AI-derived pricing-tier labels to scraped
// records. The batch is the unit of failure isolation: a failed batch
// passes through unenriched, it never aborts the run.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Summary is the per-record view submitted to the categorization
// provider.
type Summary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Rating *float64 `json:"rating"`
}

// Categorization is a provider's verdict for one record. Category is
// validated against the tier enumeration by the engine, not here.
type Categorization struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

// Provider is the pluggable categorization capability: submit one
// batch, get back a verdict per record id. Implementations are
// interchangeable; the engine depends on nothing else.
type Provider interface {
	Name() string
	Categorize(ctx context.Context, batch []Summary, stats PriceStats) (map[string]Categorization, error)
}

type categorizationsEnvelope struct {
	Categorizations []Categorization `json:"categorizations"`
}

// parseCategorizations decodes the JSON envelope both REST providers
// ask the model for. Markdown code fences around the payload are
// tolerated; models add them despite instructions.
func parseCategorizations(text string) (map[string]Categorization, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var envelope categorizationsEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode categorizations: %w", err)
	}

	verdicts := make(map[string]Categorization, len(envelope.Categorizations))
	for _, c := range envelope.Categorizations {
		if c.ID == "" {
			continue
		}
		verdicts[c.ID] = c
	}

	return verdicts, nil
}
