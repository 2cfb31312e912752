package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Browser  BrowserConfig
	Behavior BehaviorConfig
	AI       AIConfig
	Output   OutputConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Targets  map[string]Target
}

// Target describes one scrape profile: where the listing lives and how
// to find product fields inside it. TypeDynamic targets get the full
// lazy-load scroll treatment before extraction.
type Target struct {
	Name      string
	URL       string
	Type      TargetType
	Selectors Selectors
}

type TargetType string

const (
	TypeStatic  TargetType = "static"
	TypeDynamic TargetType = "dynamic"
)

// Selectors maps semantic field names to CSS selectors on the listing
// page. Container is resolved against the document, the rest against
// each container.
type Selectors struct {
	Container    string
	Name         string
	Price        string
	Rating       string
	Availability string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	RotateUA       bool
}

type BehaviorConfig struct {
	ScrollDelayMin  time.Duration
	ScrollDelayMax  time.Duration
	ScrollAmountMin int
	ScrollAmountMax int
	ActionDelayMin  time.Duration
	ActionDelayMax  time.Duration
	MouseMovement   bool
	MaxScrollRounds int
}

type AIConfig struct {
	Provider        string
	OpenAIKey       string
	AnthropicKey    string
	OpenAIModel     string
	AnthropicModel  string
	Temperature     float64
	MaxTokens       int
	BatchSize       int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RequestTimeout  time.Duration
}

type OutputConfig struct {
	RawPath      string
	EnrichedPath string
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}

	cfg := &Config{
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 60*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			RotateUA:       getBoolOrDefault("BROWSER_UA_ROTATION", true),
		},
		Behavior: BehaviorConfig{
			ScrollDelayMin:  getDurationOrDefault("BEHAVIOR_SCROLL_DELAY_MIN", 800*time.Millisecond),
			ScrollDelayMax:  getDurationOrDefault("BEHAVIOR_SCROLL_DELAY_MAX", 2500*time.Millisecond),
			ScrollAmountMin: getIntOrDefault("BEHAVIOR_SCROLL_AMOUNT_MIN", 200),
			ScrollAmountMax: getIntOrDefault("BEHAVIOR_SCROLL_AMOUNT_MAX", 600),
			ActionDelayMin:  getDurationOrDefault("REQUEST_DELAY_MIN", 2*time.Second),
			ActionDelayMax:  getDurationOrDefault("REQUEST_DELAY_MAX", 5*time.Second),
			MouseMovement:   getBoolOrDefault("BEHAVIOR_MOUSE_MOVEMENT", true),
			MaxScrollRounds: getIntOrDefault("BEHAVIOR_MAX_SCROLL_ROUNDS", 30),
		},
		AI: AIConfig{
			Provider:       getEnvOrDefault("AI_PROVIDER", "openai"),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-4-turbo-preview"),
			AnthropicModel: getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-sonnet-20240229"),
			Temperature:    getFloatOrDefault("AI_TEMPERATURE", 0.3),
			MaxTokens:      getIntOrDefault("AI_MAX_TOKENS", 2000),
			BatchSize:      getIntOrDefault("AI_BATCH_SIZE", 20),
			MaxRetries:     getIntOrDefault("AI_MAX_RETRIES", 3),
			RetryBaseDelay: getDurationOrDefault("AI_RETRY_BASE_DELAY", 2*time.Second),
			RequestTimeout: getDurationOrDefault("AI_REQUEST_TIMEOUT", 60*time.Second),
		},
		Output: OutputConfig{
			RawPath:      getEnvOrDefault("OUTPUT_RAW_PATH", "output/products_raw.json"),
			EnrichedPath: getEnvOrDefault("OUTPUT_ENRICHED_PATH", "output/products_enriched.json"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Targets: defaultTargets(),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Behavior.ScrollDelayMin > c.Behavior.ScrollDelayMax {
		return fmt.Errorf("BEHAVIOR_SCROLL_DELAY_MIN cannot be greater than BEHAVIOR_SCROLL_DELAY_MAX")
	}

	if c.Behavior.MaxScrollRounds < 1 {
		return fmt.Errorf("BEHAVIOR_MAX_SCROLL_ROUNDS must be at least 1")
	}

	if c.AI.BatchSize < 1 {
		return fmt.Errorf("AI_BATCH_SIZE must be at least 1")
	}

	if c.AI.Provider != "openai" && c.AI.Provider != "anthropic" {
		return fmt.Errorf("unsupported AI_PROVIDER: %s", c.AI.Provider)
	}

	for name, t := range c.Targets {
		if t.URL == "" {
			return fmt.Errorf("target %s: URL is required", name)
		}
		if t.Selectors.Container == "" {
			return fmt.Errorf("target %s: container selector is required", name)
		}
	}

	return nil
}

// GetTarget resolves a target profile by name.
func (c *Config) GetTarget(name string) (Target, error) {
	t, ok := c.Targets[name]
	if !ok {
		return Target{}, fmt.Errorf("unknown target: %s", name)
	}
	return t, nil
}

func defaultTargets() map[string]Target {
	return map[string]Target{
		"books_toscrape": {
			Name: "books_toscrape",
			URL:  "https://books.toscrape.com/catalogue/category/books_1/index.html",
			Type: TypeStatic,
			Selectors: Selectors{
				Container:    "article.product_pod",
				Name:         "h3 a",
				Price:        "p.price_color",
				Rating:       "p.star-rating",
				Availability: "p.availability",
			},
		},
		"amazon_headphones": {
			Name: "amazon_headphones",
			URL:  "https://www.amazon.com/s?k=wireless+headphones",
			Type: TypeDynamic,
			Selectors: Selectors{
				Container:    `div[data-component-type="s-search-result"]`,
				Name:         "h2 a span",
				Price:        "span.a-price span.a-offscreen",
				Rating:       `span[aria-label*="stars"]`,
				Availability: `span[aria-label*="stock"]`,
			},
		},
		"ebay_laptops": {
			Name: "ebay_laptops",
			URL:  "https://www.ebay.com/b/Laptops-Netbooks/175672/bn_1648276",
			Type: TypeDynamic,
			Selectors: Selectors{
				Container:    "div.s-item",
				Name:         "h3.s-item__title",
				Price:        "span.s-item__price",
				Rating:       "span.clipped",
				Availability: "span.s-item__quantity",
			},
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
