package crawler

import (
	"context"
	"fmt"
	"time"

	crawlerrors "sjsage522/krishaworker/pkg/errors"
)

// CrawlConfig holds the search filters of one crawl run. It is built once by
// the caller and never modified afterwards.
type CrawlConfig struct {
	City      City
	HasPhoto  bool
	Rooms     []int
	PriceFrom *float64 // millions of tenge
	PriceTo   *float64 // millions of tenge
	OwnerOnly bool
}

// NewCrawlConfig validates the filters and returns a config that owns its room slice
func NewCrawlConfig(city City, hasPhoto bool, rooms []int, priceFrom, priceTo *float64, ownerOnly bool) (CrawlConfig, error) {
	cfg := CrawlConfig{
		City:      city,
		HasPhoto:  hasPhoto,
		Rooms:     append([]int(nil), rooms...),
		PriceFrom: priceFrom,
		PriceTo:   priceTo,
		OwnerOnly: ownerOnly,
	}
	if err := cfg.Validate(); err != nil {
		return CrawlConfig{}, err
	}
	return cfg, nil
}

// Validate checks the room set and the price range
func (c CrawlConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return crawlerrors.NewConfiguration("room set must not be empty", nil)
	}
	for _, r := range c.Rooms {
		if r <= 0 {
			return crawlerrors.NewConfiguration(fmt.Sprintf("invalid room count %d", r), nil)
		}
	}
	if c.PriceFrom != nil && c.PriceTo != nil && *c.PriceFrom > *c.PriceTo {
		return crawlerrors.NewConfiguration(
			fmt.Sprintf("price lower bound %v exceeds upper bound %v", *c.PriceFrom, *c.PriceTo), nil)
	}
	return nil
}

// ListingRecord is one real-estate ad extracted from its detail page
type ListingRecord struct {
	ExternalID   int64     `json:"id_flat"`
	UniqueKey    string    `json:"uuid"`
	SourceURL    string    `json:"url"`
	Rooms        *int      `json:"room,omitempty"`
	Area         *float64  `json:"square,omitempty"`
	City         *string   `json:"city,omitempty"`
	Latitude     *float64  `json:"lat,omitempty"`
	Longitude    *float64  `json:"lon,omitempty"`
	Description  *string   `json:"description,omitempty"`
	PhotoURL     *string   `json:"photo,omitempty"`
	Price        *int64    `json:"price"`
	CapturedDate time.Time `json:"date"`
}

// Validate reports whether the record may be persisted
func (r ListingRecord) Validate() error {
	if r.Price == nil {
		return crawlerrors.NewMissingPrice(r.SourceURL)
	}
	return nil
}

// ListingPageResult is what a search results page yields
type ListingPageResult struct {
	TotalCount  int
	PageCount   int
	DetailURLs  []string
	NextPageURL *string
}

// Fetcher retrieves a page, retrying on its own schedule
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Store persists listings idempotently, keyed by ListingRecord.UniqueKey.
// InsertBatch applies the whole batch atomically and returns how many
// records were new; records whose key already exists are skipped.
type Store interface {
	EnsureSchema(ctx context.Context) error
	InsertBatch(ctx context.Context, records []ListingRecord) (int, error)
}

// Crawler runs one crawl for a search configuration
type Crawler interface {
	RunCrawl(ctx context.Context, cfg CrawlConfig) (CrawlSummary, error)
}

// FetchResult is the raw content of a fetched page and the URL it resolved to
type FetchResult struct {
	Content  []byte
	FinalURL string
}

// CrawlPhase is a state of the pagination state machine
type CrawlPhase string

const (
	PhaseStart             CrawlPhase = "start"
	PhaseFetchingList      CrawlPhase = "fetching_list"
	PhaseExtractingDetails CrawlPhase = "extracting_details"
	PhasePersisting        CrawlPhase = "persisting"
	PhaseAdvancing         CrawlPhase = "advancing"
	PhaseDone              CrawlPhase = "done"
	PhaseFailed            CrawlPhase = "failed"
)

// CrawlState is threaded through every page iteration
type CrawlState struct {
	Phase          CrawlPhase
	CurrentPageURL string
	PageIndex      int // 1-based
	PageCount      int // known after the first listing page
}

// Terminal reports whether the run has finished
func (s CrawlState) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseFailed
}

// CrawlSummary reports what a run did
type CrawlSummary struct {
	Pages      int
	DetailURLs int
	Parsed     int
	Dropped    int
	Skipped    int
	Inserted   int
	FinalState CrawlState
}
