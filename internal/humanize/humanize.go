// Package humanize executes human-like interaction sequences against a
// live page: randomized scrolling, pointer movement and pauses. The
// randomness source is injectable so a fixed seed replays a fixed
// action sequence.
package humanize

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/marketintel/stealth-scraper/internal/config"
)

// Surface is the slice of page behavior the simulator needs. The
// production implementation wraps a playwright page; tests substitute
// a fake.
type Surface interface {
	ScrollBy(pixels int) error
	MoveMouse(x, y float64) error
	ContentHeight() (int, error)
}

// Simulator drives a bounded sequence of interactions on one page.
// Pure side-effect component: it only mutates the page's scroll and
// pointer state.
type Simulator struct {
	surface        Surface
	cfg            config.BehaviorConfig
	viewportWidth  int
	viewportHeight int
	rng            *rand.Rand
	logger         *slog.Logger
}

func NewSimulator(surface Surface, cfg config.BehaviorConfig, viewportWidth, viewportHeight int, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Simulator{
		surface:        surface,
		cfg:            cfg,
		viewportWidth:  viewportWidth,
		viewportHeight: viewportHeight,
		rng:            rng,
		logger:         slog.Default().With("component", "humanize"),
	}
}

// ForPage builds a simulator over a live playwright page.
func ForPage(page playwright.Page, cfg config.BehaviorConfig, viewportWidth, viewportHeight int, rng *rand.Rand) *Simulator {
	return NewSimulator(pageSurface{page: page}, cfg, viewportWidth, viewportHeight, rng)
}

// Browse performs n interaction rounds, each randomly one of: scroll
// by a bounded increment, move the pointer to a random viewport
// coordinate, or pause. Rounds that change nothing are intentional;
// perfectly uniform activity is itself a bot signature.
func (s *Simulator) Browse(ctx context.Context, interactions int) error {
	for i := 0; i < interactions; i++ {
		switch s.rng.Intn(3) {
		case 0:
			if err := s.scrollOnce(); err != nil {
				return err
			}
		case 1:
			if s.cfg.MouseMovement {
				if err := s.moveMouse(); err != nil {
					return err
				}
			}
		case 2:
			// Reading pause only; handled below like every round.
		}

		if err := s.pause(ctx, s.randomDelay(s.cfg.ActionDelayMin, s.cfg.ActionDelayMax)); err != nil {
			return err
		}
	}

	return nil
}

// ScrollToBottom scrolls in randomized increments until the content
// height stops growing, which is the termination signal for
// lazy-loaded listings. Rounds are capped so a pathological page
// cannot stall the pipeline.
func (s *Simulator) ScrollToBottom(ctx context.Context) error {
	lastHeight, err := s.surface.ContentHeight()
	if err != nil {
		return fmt.Errorf("failed to read content height: %w", err)
	}

	for round := 0; round < s.cfg.MaxScrollRounds; round++ {
		if err := s.scrollOnce(); err != nil {
			return err
		}

		if err := s.pause(ctx, s.randomDelay(s.cfg.ScrollDelayMin, s.cfg.ScrollDelayMax)); err != nil {
			return err
		}

		height, err := s.surface.ContentHeight()
		if err != nil {
			return fmt.Errorf("failed to read content height: %w", err)
		}

		if height == lastHeight {
			s.logger.Debug("content height stable, lazy loading done", "rounds", round+1, "height", height)
			return nil
		}

		lastHeight = height
	}

	s.logger.Warn("scroll round cap reached before height stabilized", "rounds", s.cfg.MaxScrollRounds)
	return nil
}

func (s *Simulator) scrollOnce() error {
	span := s.cfg.ScrollAmountMax - s.cfg.ScrollAmountMin
	amount := s.cfg.ScrollAmountMin
	if span > 0 {
		amount += s.rng.Intn(span + 1)
	}
	return s.surface.ScrollBy(amount)
}

func (s *Simulator) moveMouse() error {
	// Stay away from the viewport edges; real pointers rarely hug them.
	margin := 100
	x := float64(margin + s.rng.Intn(max(s.viewportWidth-2*margin, 1)))
	y := float64(margin + s.rng.Intn(max(s.viewportHeight-2*margin, 1)))
	return s.surface.MoveMouse(x, y)
}

func (s *Simulator) randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

func (s *Simulator) pause(ctx context.Context, d time.Duration) error {
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

type pageSurface struct {
	page playwright.Page
}

func (p pageSurface) ScrollBy(pixels int) error {
	_, err := p.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", pixels))
	return err
}

func (p pageSurface) MoveMouse(x, y float64) error {
	return p.page.Mouse().Move(x, y)
}

func (p pageSurface) ContentHeight() (int, error) {
	result, err := p.page.Evaluate("document.body.scrollHeight")
	if err != nil {
		return 0, err
	}

	switch h := result.(type) {
	case int:
		return h, nil
	case float64:
		return int(h), nil
	default:
		return 0, fmt.Errorf("unexpected scrollHeight type %T", result)
	}
}
