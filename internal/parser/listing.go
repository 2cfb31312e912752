package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/models"
)

var (
	// ErrNoContainers means the container selector matched nothing on a
	// fully loaded page.
	ErrNoContainers = errors.New("no product containers found")

	// ErrNoValidRecords means containers were located but every row
	// failed the name requirement, which points at rotted selectors
	// rather than an empty listing.
	ErrNoValidRecords = errors.New("no valid records extracted")
)

// ListingParser turns a rendered listing page into product records.
// Each field is extracted independently: a missing or malformed field
// degrades to its zero value or nil, never invalidates the record.
// Only a missing name drops the row.
type ListingParser struct {
	logger *slog.Logger
}

func NewListingParser() *ListingParser {
	return &ListingParser{
		logger: slog.Default().With("component", "listing_parser"),
	}
}

// ParseListing extracts up to maxProducts records from the page HTML
// using the target's selector profile.
func (lp *ListingParser) ParseListing(html string, target config.Target, maxProducts int) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	containers := doc.Find(target.Selectors.Container)
	if containers.Length() == 0 {
		return nil, ErrNoContainers
	}

	lp.logger.Info("located product containers", "target", target.Name, "count", containers.Length())

	products := make([]models.Product, 0, containers.Length())
	skipped := 0

	containers.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if maxProducts > 0 && len(products) >= maxProducts {
			return false
		}

		product, ok := lp.parseContainer(sel, target, len(products)+1)
		if !ok {
			skipped++
			return true
		}

		products = append(products, product)
		return true
	})

	if len(products) == 0 {
		return nil, fmt.Errorf("%w: %d containers, all rows skipped", ErrNoValidRecords, containers.Length())
	}

	if skipped > 0 {
		lp.logger.Warn("skipped unnamed containers", "target", target.Name, "skipped", skipped)
	}

	return products, nil
}

func (lp *ListingParser) parseContainer(sel *goquery.Selection, target config.Target, seq int) (models.Product, bool) {
	name := extractText(sel, target.Selectors.Name)
	if name == "" {
		// A container without a name is not a product row.
		return models.Product{}, false
	}

	priceRaw := extractText(sel, target.Selectors.Price)
	ratingRaw := extractRatingText(sel, target.Selectors.Rating)
	availability := extractText(sel, target.Selectors.Availability)

	return models.Product{
		ID:        fmt.Sprintf("%s_%d", target.Name, seq),
		Name:      name,
		Price:     ParsePrice(priceRaw),
		PriceRaw:  priceRaw,
		Rating:    ParseRating(ratingRaw),
		RatingRaw: ratingRaw,
		Stock:     ParseStock(availability),
		Source:    target.Name,
		SourceURL: target.URL,
		ScrapedAt: time.Now(),
	}, true
}

// extractText safely pulls trimmed text for a selector scoped to the
// container. Falls back to the title attribute, which listing pages
// commonly use for truncated names.
func extractText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}

	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return ""
	}

	if text := strings.TrimSpace(found.Text()); text != "" {
		return text
	}

	if title, ok := found.Attr("title"); ok {
		return strings.TrimSpace(title)
	}

	return ""
}

// extractRatingText reads the rating element's text, falling back to
// its class attribute: star widgets often carry the scale as a class
// ("star-rating Three") with no text at all.
func extractRatingText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}

	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return ""
	}

	if text := strings.TrimSpace(found.Text()); text != "" {
		return text
	}

	if class, ok := found.Attr("class"); ok {
		return strings.TrimSpace(class)
	}

	if label, ok := found.Attr("aria-label"); ok {
		return strings.TrimSpace(label)
	}

	return ""
}
