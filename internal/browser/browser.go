package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNavigation marks a page-load failure. Navigation is single-shot:
// retry policy belongs to the caller, not the session.
var ErrNavigation = errors.New("navigation failed")

// Session owns one stealth-configured browser instance and its
// context. It is the only resource in the pipeline that holds an OS
// process, so Close must run on every exit path.
type Session struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	context   playwright.BrowserContext
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgents     []string
	RotateUA       bool
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ExtraHeaders   map[string]string

	// Rand drives user-agent rotation; a fixed seed replays the same
	// choice. Defaults to a time-seeded source.
	Rand *rand.Rand
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        60 * time.Second,
		UserAgents:     defaultUserAgents(),
		RotateUA:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "America/New_York",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding":           "gzip, deflate, br",
			"DNT":                       "1",
			"Upgrade-Insecure-Requests": "1",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Cache-Control":             "max-age=0",
		},
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// stealthScript patches the properties scripted detection checks look
// at: the webdriver flag, plugin and language enumerations, the chrome
// runtime object and the notification permission query.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined
});

Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5]
});

Object.defineProperty(navigator, 'languages', {
	get: () => ['en-US', 'en']
});

window.chrome = window.chrome || { runtime: {} };

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);
`

// effectiveTimeout normalizes the navigation timeout; zero and
// negative values fall back to the default.
func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultOptions().Timeout
	}
	return d
}

// PickUserAgent returns the user agent the session will present. With
// rotation enabled it is drawn from the pool, otherwise the first
// entry is used.
func (o *Options) PickUserAgent() string {
	if len(o.UserAgents) == 0 {
		return DefaultOptions().UserAgents[0]
	}
	if !o.RotateUA {
		return o.UserAgents[0]
	}

	rng := o.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o.UserAgents[rng.Intn(len(o.UserAgents))]
}

// New launches a stealth-configured browser session. The caller must
// Close it; pairing New with a deferred Close gives the scoped
// acquisition the pipeline relies on.
func New(opts *Options) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	userAgent := opts.PickUserAgent()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--disable-accelerated-2d-canvas",
			"--no-first-run",
			"--disable-gpu",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{"Accept-Language": opts.AcceptLanguage}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}

	context, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &userAgent,
		JavaScriptEnabled: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(false),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		DeviceScaleFactor: playwright.Float(1),
		IsMobile:          playwright.Bool(false),
		HasTouch:          playwright.Bool(false),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		context.Close()
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to inject stealth script: %w", err)
	}

	s := &Session{
		pw:        pw,
		browser:   b,
		context:   context,
		userAgent: userAgent,
		timeout:   effectiveTimeout(opts.Timeout),
		logger:    slog.Default().With("component", "browser"),
	}

	s.logger.Info("browser session started", "user_agent", userAgent, "headless", opts.Headless)

	return s, nil
}

// NewPage opens a page in the stealth context.
func (s *Session) NewPage() (playwright.Page, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(s.timeoutMillis())

	return page, nil
}

// Navigate loads a URL and waits for the network to go idle. Fails
// with ErrNavigation on timeout or network failure; no internal retry.
func (s *Session) Navigate(page playwright.Page, url string) error {
	s.logger.Info("navigating", "url", url)

	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(s.timeoutMillis()),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}

	return nil
}

func (s *Session) timeoutMillis() float64 {
	return float64(s.timeout.Milliseconds())
}

// UserAgent reports the agent string presented by this session.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Close tears down the context, browser and playwright driver. Safe to
// call after a partial failure; it releases whatever is still held.
func (s *Session) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
