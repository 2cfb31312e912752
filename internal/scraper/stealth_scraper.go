package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/marketintel/stealth-scraper/internal/browser"
	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/humanize"
	"github.com/marketintel/stealth-scraper/internal/models"
	"github.com/marketintel/stealth-scraper/internal/parser"
	"github.com/marketintel/stealth-scraper/internal/ratelimit"
)

// browsingRounds is the number of human-interaction rounds performed
// after navigation, before any extraction pass.
const browsingRounds = 2

// StealthScraper drives one target run: navigate, trigger lazy
// loading, extract and normalize, bounded by the requested maximum.
type StealthScraper struct {
	session  *browser.Session
	behavior config.BehaviorConfig
	viewport [2]int
	parser   *parser.ListingParser
	limiter  *ratelimit.Limiter
	rng      *rand.Rand
	logger   *slog.Logger
	state    State

	// loadPage is swapped in tests to avoid launching a browser.
	loadPage func(ctx context.Context, target config.Target) (string, error)
}

// New builds a scraper over an active browser session. The session is
// borrowed, not owned: its lifetime is scoped by the caller so one
// session can serve several target runs.
func New(session *browser.Session, cfg *config.Config, rng *rand.Rand) *StealthScraper {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &StealthScraper{
		session:  session,
		behavior: cfg.Behavior,
		viewport: [2]int{cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight},
		parser:   parser.NewListingParser(),
		limiter:  ratelimit.New(cfg.Behavior.ActionDelayMin, cfg.Behavior.ActionDelayMax, rng),
		rng:      rng,
		logger:   slog.Default().With("component", "scraper"),
		state:    StateIdle,
	}
	s.loadPage = s.loadWithBrowser

	return s
}

// State reports the orchestrator's current phase.
func (s *StealthScraper) State() State {
	return s.state
}

// Scrape runs the full extraction sequence for one target. Navigation
// failure and empty extraction are fatal for the target; individual
// malformed fields are not.
func (s *StealthScraper) Scrape(ctx context.Context, target config.Target, maxProducts int) ([]models.Product, error) {
	s.logger.Info("starting scrape", "target", target.Name, "url", target.URL, "max_products", maxProducts)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	s.setState(StateNavigating)
	html, err := s.loadPage(ctx, target)
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}

	s.setState(StateExtracting)
	products, err := s.parser.ParseListing(html, target, maxProducts)
	if err != nil {
		if errors.Is(err, parser.ErrNoContainers) || errors.Is(err, parser.ErrNoValidRecords) {
			s.setState(StateFailed)
			return nil, fmt.Errorf("%w: target %s: %v", ErrEmptyExtraction, target.Name, err)
		}
		s.setState(StateFailed)
		return nil, fmt.Errorf("extraction failed for target %s: %w", target.Name, err)
	}

	s.setState(StateDone)
	s.logger.Info("scrape complete", "target", target.Name, "records", len(products))

	return products, nil
}

// loadWithBrowser opens a page, navigates, runs the human-interaction
// sequence and returns the rendered HTML. The page is closed on every
// exit path; the session outlives it.
func (s *StealthScraper) loadWithBrowser(ctx context.Context, target config.Target) (string, error) {
	page, err := s.session.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := s.session.Navigate(page, target.URL); err != nil {
		return "", err
	}

	s.setState(StateLoading)
	sim := humanize.ForPage(page, s.behavior, s.viewport[0], s.viewport[1], s.rng)

	if err := sim.Browse(ctx, browsingRounds); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Interaction glitches are not fatal; the page may still be
		// fully rendered.
		s.logger.Warn("browsing simulation error", "target", target.Name, "error", err)
	}

	if target.Type == config.TypeDynamic {
		if err := sim.ScrollToBottom(ctx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.logger.Warn("lazy-load scroll error", "target", target.Name, "error", err)
		}
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}

	return html, nil
}

func (s *StealthScraper) setState(next State) {
	s.logger.Debug("state transition", "from", s.state, "to", next)
	s.state = next
}
