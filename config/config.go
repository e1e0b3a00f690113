package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/krishaworker/internal/crawler"
	crawlerrors "sjsage522/krishaworker/pkg/errors"

	"gopkg.in/yaml.v2"
)

// Config represents the application configuration
type Config struct {
	// Store configuration; an empty DatabaseURL runs against an in-memory store
	DatabaseURL string
	DBMaxConns  int

	// Memcache configuration; empty disables the seen cache
	MemcacheAddr string
	SeenTTL      time.Duration

	// Redis configuration; empty disables publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Metrics server address; empty disables the server
	MetricsAddr string

	// Crawler configuration
	BaseURL           string
	PoliteDelay       time.Duration
	RequestTimeout    time.Duration
	BackoffSchedule   []time.Duration
	DetailConcurrency int
	DropLogFile       string

	// Search filters
	Search SearchConfig

	// Environment
	Environment string
}

// SearchConfig holds the search filters, from SEARCH_CONFIG_FILE or CRAWL_* variables
type SearchConfig struct {
	City      int      `yaml:"city"`
	HasPhoto  bool     `yaml:"has_photo"`
	Rooms     []int    `yaml:"rooms"`
	PriceFrom *float64 `yaml:"price_from"` // millions
	PriceTo   *float64 `yaml:"price_to"`   // millions
	Owner     bool     `yaml:"owner"`
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DBMaxConns:           p.int("DB_MAX_CONNS", "2"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		SeenTTL:              p.seconds("SEEN_TTL_SECONDS", "86400"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              p.int("REDIS_DB", "0"),
		RedisStream:          getEnv("REDIS_STREAM", "flats"),
		RedisStreamCount:     p.int("REDIS_STREAM_COUNT", "1"),
		RedisStreamMaxLength: p.int("REDIS_STREAM_MAX_LENGTH", "1000"),
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		BaseURL:              getEnv("BASE_URL", crawler.DefaultBaseURL),
		PoliteDelay:          p.seconds("POLITE_DELAY_SECONDS", "2"),
		RequestTimeout:       p.seconds("REQUEST_TIMEOUT_SECONDS", "20"),
		DetailConcurrency:    p.int("DETAIL_CONCURRENCY", "1"),
		DropLogFile:          getEnv("DROP_LOG_FILE", "dropped.log"),
		Environment:          getEnv("KRISHA_ENVIRONMENT", "development"),
		Search: SearchConfig{
			City:      p.int("CRAWL_CITY", "1"),
			HasPhoto:  p.bool("CRAWL_HAS_PHOTO", "true"),
			Rooms:     p.ints("CRAWL_ROOMS", "1,2,3,4,5"),
			PriceFrom: p.float("CRAWL_PRICE_FROM", "1"),
			PriceTo:   p.float("CRAWL_PRICE_TO", "1000"),
			Owner:     p.bool("CRAWL_OWNER", "true"),
		},
	}

	schedule, err := ParseBackoffSchedule(getEnv("BACKOFF_SCHEDULE", "15s,60s,300s,1200s,3600s"))
	if err != nil {
		p.fail("BACKOFF_SCHEDULE", err)
	}
	cfg.BackoffSchedule = schedule

	if p.err != nil {
		return nil, p.err
	}

	if path := os.Getenv("SEARCH_CONFIG_FILE"); path != "" {
		if err := cfg.Search.loadFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile overrides the search filters with the keys present in a YAML file
func (s *SearchConfig) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return crawlerrors.NewConfiguration("open search config", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(s); err != nil {
		return crawlerrors.NewConfiguration("decode search config "+path, err)
	}
	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := c.CrawlConfig(); err != nil {
		return err
	}
	if c.DetailConcurrency < 1 {
		return crawlerrors.NewConfiguration(fmt.Sprintf("DETAIL_CONCURRENCY must be positive, got %d", c.DetailConcurrency), nil)
	}
	if len(c.BackoffSchedule) == 0 {
		return crawlerrors.NewConfiguration("BACKOFF_SCHEDULE must not be empty", nil)
	}
	for _, d := range c.BackoffSchedule {
		if d < 0 {
			return crawlerrors.NewConfiguration(fmt.Sprintf("negative backoff delay %s", d), nil)
		}
	}
	if c.PoliteDelay < 0 {
		return crawlerrors.NewConfiguration(fmt.Sprintf("negative polite delay %s", c.PoliteDelay), nil)
	}
	if c.RequestTimeout <= 0 {
		return crawlerrors.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return crawlerrors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		return crawlerrors.NewConfiguration("DATABASE_URL is required in production", nil)
	}
	return nil
}

// CrawlConfig builds the immutable crawl filters
func (c *Config) CrawlConfig() (crawler.CrawlConfig, error) {
	s := c.Search
	return crawler.NewCrawlConfig(crawler.City(s.City), s.HasPhoto, s.Rooms, s.PriceFrom, s.PriceTo, s.Owner)
}

// IsProduction reports whether the worker runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseBackoffSchedule parses a comma separated list of delays. Entries are Go
// durations ("90s", "5m") or plain seconds ("90").
func ParseBackoffSchedule(value string) ([]time.Duration, error) {
	var schedule []time.Duration
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if secs, err := strconv.Atoi(field); err == nil {
			schedule = append(schedule, time.Duration(secs)*time.Second)
			continue
		}
		d, err := time.ParseDuration(field)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", field, err)
		}
		schedule = append(schedule, d)
	}
	return schedule, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser reads typed variables and keeps the first error
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = crawlerrors.NewConfiguration("invalid "+key, err)
	}
}

func (p *parser) int(key, def string) int {
	v, err := strconv.Atoi(strings.TrimSpace(getEnv(key, def)))
	if err != nil {
		p.fail(key, err)
	}
	return v
}

func (p *parser) bool(key, def string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, def)))
	if err != nil {
		p.fail(key, err)
	}
	return v
}

func (p *parser) seconds(key, def string) time.Duration {
	v, err := strconv.ParseFloat(strings.TrimSpace(getEnv(key, def)), 64)
	if err != nil {
		p.fail(key, err)
	}
	return time.Duration(v * float64(time.Second))
}

// float returns nil for "none" so a bound can be switched off
func (p *parser) float(key, def string) *float64 {
	raw := strings.TrimSpace(getEnv(key, def))
	if strings.EqualFold(raw, "none") {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, err)
		return nil
	}
	return &v
}

func (p *parser) ints(key, def string) []int {
	var out []int
	for _, field := range strings.Split(getEnv(key, def), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			p.fail(key, err)
			return nil
		}
		out = append(out, v)
	}
	return out
}
