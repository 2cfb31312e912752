package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/marketintel/stealth-scraper/internal/models"
)

// Recognized-phrase tables. These are data on purpose: extending the
// scarcity or rating vocabulary must not touch control flow.
var (
	priceBodyPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

	decimalRatingPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

	wordRatingPattern = regexp.MustCompile(`(?i)\b(one|two|three|four|five)\b`)

	wordRatings = map[string]float64{
		"one":   1.0,
		"two":   2.0,
		"three": 3.0,
		"four":  4.0,
		"five":  5.0,
	}

	scarcityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)only\s+\d+\s+left(?:\s+in\s+stock)?`),
		regexp.MustCompile(`(?i)\d+\s+items?\s+left`),
		regexp.MustCompile(`(?i)last\s+(?:one|few|item)`),
	}

	outOfStockPhrases = []string{
		"out of stock",
		"sold out",
		"currently unavailable",
	}
)

const maxRating = 5.0

// ParsePrice normalizes a locale-formatted currency string ("$29.99",
// "£1,045.00") into a float. Returns nil when no numeric body is
// found; the caller keeps the raw string either way.
func ParsePrice(raw string) *float64 {
	if raw == "" {
		return nil
	}

	body := priceBodyPattern.FindString(strings.ReplaceAll(raw, ",", ""))
	if body == "" {
		return nil
	}

	price, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return nil
	}

	return &price
}

// ParseRating normalizes free-text or symbolic ratings onto the 1-5
// scale. Handles decimal forms ("4.5 out of 5 stars") and the word
// scale ("Three"). Returns nil when nothing matches.
func ParseRating(raw string) *float64 {
	if raw == "" {
		return nil
	}

	if m := decimalRatingPattern.FindStringSubmatch(raw); m != nil {
		if rating, err := strconv.ParseFloat(m[1], 64); err == nil {
			if rating > maxRating {
				rating = maxRating
			}
			return &rating
		}
	}

	if m := wordRatingPattern.FindStringSubmatch(raw); m != nil {
		if value, ok := wordRatings[strings.ToLower(m[1])]; ok {
			return &value
		}
	}

	return nil
}

// ParseStock interprets availability text. Text that matches no known
// phrasing defaults to in-stock with no scarcity signal; only an
// explicit out-of-stock phrase flips availability.
func ParseStock(raw string) models.StockInfo {
	info := models.StockInfo{InStock: true, RawText: strings.TrimSpace(raw)}
	if info.RawText == "" {
		return info
	}

	lower := strings.ToLower(info.RawText)
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(lower, phrase) {
			info.InStock = false
			return info
		}
	}

	for _, pattern := range scarcityPatterns {
		if signal := pattern.FindString(info.RawText); signal != "" {
			info.ScarcitySignal = &signal
			break
		}
	}

	return info
}
