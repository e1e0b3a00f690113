package crawler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sjsage522/krishaworker/helpers"
	"sjsage522/krishaworker/logger"
	crawlerrors "sjsage522/krishaworker/pkg/errors"
	"sjsage522/krishaworker/services/cache"
	"sjsage522/krishaworker/services/metrics"
	"sjsage522/krishaworker/services/publisher"

	"golang.org/x/sync/errgroup"
)

// DefaultPoliteDelay is slept after every successful page fetch
const DefaultPoliteDelay = 2 * time.Second

// DefaultSeenTTL is how long a persisted listing URL stays in the seen cache
const DefaultSeenTTL = 24 * time.Hour

const seenKeyPrefix = "flat:seen:"

// Options wires an Orchestrator. Fetcher and Store are required; the seen
// cache, publisher and drop recorder are optional.
type Options struct {
	Fetcher           Fetcher
	Store             Store
	Cache             cache.CacheService
	SeenTTL           time.Duration
	Publisher         publisher.Publisher
	Drops             helpers.DropRecorder
	Queries           QueryBuilder
	PoliteDelay       time.Duration
	DetailConcurrency int
}

// Orchestrator drives the pagination state machine of a crawl run
type Orchestrator struct {
	fetcher     Fetcher
	store       Store
	cache       cache.CacheService
	seenTTL     time.Duration
	publisher   publisher.Publisher
	drops       helpers.DropRecorder
	queries     QueryBuilder
	politeDelay time.Duration
	concurrency int

	spacing spacer

	sleep SleepFunc
	now   func() time.Time
	log   *logger.Logger
}

// spacer hands out request start times at least the polite delay apart
type spacer struct {
	mu   sync.Mutex
	next time.Time
}

var _ Crawler = (*Orchestrator)(nil)

// NewOrchestrator creates an orchestrator from opts
func NewOrchestrator(opts Options) *Orchestrator {
	queries := opts.Queries
	if queries.BaseURL == "" {
		queries = NewQueryBuilder(DefaultBaseURL)
	}
	concurrency := opts.DetailConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	seenTTL := opts.SeenTTL
	if seenTTL <= 0 {
		seenTTL = DefaultSeenTTL
	}
	return &Orchestrator{
		fetcher:     opts.Fetcher,
		store:       opts.Store,
		cache:       opts.Cache,
		seenTTL:     seenTTL,
		publisher:   opts.Publisher,
		drops:       opts.Drops,
		queries:     queries,
		politeDelay: opts.PoliteDelay,
		concurrency: concurrency,
		sleep:       sleepContext,
		now:         time.Now,
		log:         logger.ForCrawler("krisha"),
	}
}

// crawlRun carries what one page hands from one phase to the next
type crawlRun struct {
	state   CrawlState
	page    ListingPageResult
	batch   []ListingRecord
	summary CrawlSummary
}

// RunCrawl processes every page of the search described by cfg. It returns
// once the last page is persisted or with the error that moved the run to
// PhaseFailed; the summary is filled in either way.
func (o *Orchestrator) RunCrawl(ctx context.Context, cfg CrawlConfig) (CrawlSummary, error) {
	run := &crawlRun{state: CrawlState{Phase: PhaseStart}}

	if err := cfg.Validate(); err != nil {
		run.state.Phase = PhaseFailed
		run.summary.FinalState = run.state
		return run.summary, err
	}
	run.state.CurrentPageURL = o.queries.Build(cfg)

	o.log.Info().Str("url", run.state.CurrentPageURL).Msg("Starting crawl")

	for !run.state.Terminal() {
		if err := o.step(ctx, run); err != nil {
			o.log.Error().
				Err(err).
				Str("phase", string(run.state.Phase)).
				Str("url", run.state.CurrentPageURL).
				Int("page", run.state.PageIndex).
				Msg("Crawl failed")
			run.state.Phase = PhaseFailed
			run.summary.FinalState = run.state
			return run.summary, err
		}
	}

	run.summary.FinalState = run.state
	o.log.Info().
		Int("pages", run.summary.Pages).
		Int("parsed", run.summary.Parsed).
		Int("dropped", run.summary.Dropped).
		Int("skipped", run.summary.Skipped).
		Int("inserted", run.summary.Inserted).
		Msg("Crawl finished")
	return run.summary, nil
}

// step performs the work of the current phase and moves the run to the next one
func (o *Orchestrator) step(ctx context.Context, run *crawlRun) error {
	switch run.state.Phase {
	case PhaseStart:
		run.state.Phase = PhaseFetchingList
		run.state.PageIndex = 1

	case PhaseFetchingList:
		page, err := o.fetchListing(ctx, run.state)
		if err != nil {
			return err
		}
		if run.state.PageIndex == 1 {
			run.state.PageCount = page.PageCount
		}
		run.page = page
		run.summary.Pages++
		run.summary.DetailURLs += len(page.DetailURLs)
		run.state.Phase = PhaseExtractingDetails

	case PhaseExtractingDetails:
		batch, err := o.extractDetails(ctx, run)
		if err != nil {
			return err
		}
		run.batch = batch
		run.state.Phase = PhasePersisting

	case PhasePersisting:
		if err := o.persist(ctx, run); err != nil {
			return err
		}
		run.state.Phase = PhaseAdvancing

	case PhaseAdvancing:
		run.state = advance(run.state, run.page)
		run.page = ListingPageResult{}
		run.batch = nil

	default:
		// terminal phases have nothing to do
	}
	return nil
}

// advance picks the next page or finishes the run
func advance(state CrawlState, page ListingPageResult) CrawlState {
	if page.NextPageURL == nil || state.PageIndex >= state.PageCount {
		state.Phase = PhaseDone
		return state
	}
	state.Phase = PhaseFetchingList
	state.CurrentPageURL = *page.NextPageURL
	state.PageIndex++
	return state
}

func (o *Orchestrator) fetchListing(ctx context.Context, state CrawlState) (ListingPageResult, error) {
	if err := o.waitTurn(ctx); err != nil {
		return ListingPageResult{}, err
	}
	res, err := o.fetcher.Fetch(ctx, state.CurrentPageURL)
	if err != nil {
		return ListingPageResult{}, err
	}
	if err := o.politeSleep(ctx); err != nil {
		return ListingPageResult{}, err
	}

	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = state.CurrentPageURL
	}
	page, err := ParseListingPage(res.Content, pageURL, state.PageIndex)
	if err != nil {
		return ListingPageResult{}, err
	}
	metrics.PagesFetched.Inc()

	o.log.Debug().
		Int("page", state.PageIndex).
		Int("total", page.TotalCount).
		Int("page_count", page.PageCount).
		Int("cards", len(page.DetailURLs)).
		Msg("Parsed listing page")
	return page, nil
}

type detailOutcome struct {
	record  *ListingRecord
	skipped bool
}

// extractDetails fetches and parses every detail URL of the current page.
// Records come back in document order whatever the concurrency.
func (o *Orchestrator) extractDetails(ctx context.Context, run *crawlRun) ([]ListingRecord, error) {
	urls := run.page.DetailURLs
	outcomes := make([]detailOutcome, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			outcome, err := o.processDetail(gctx, u)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var batch []ListingRecord
	for _, outcome := range outcomes {
		switch {
		case outcome.skipped:
			run.summary.Skipped++
		case outcome.record == nil:
			run.summary.Dropped++
		default:
			batch = append(batch, *outcome.record)
		}
	}
	run.summary.Parsed += len(batch)
	return batch, nil
}

// processDetail returns an error only when the run itself has to stop.
// Recoverable errors drop the listing under their type.
func (o *Orchestrator) processDetail(ctx context.Context, url string) (detailOutcome, error) {
	if o.seen(url) {
		metrics.ListingsSkipped.Inc()
		return detailOutcome{skipped: true}, nil
	}

	record, err := o.extractDetail(ctx, url)
	if err != nil {
		if ctx.Err() != nil || !crawlerrors.IsRecoverable(err) {
			return detailOutcome{}, err
		}
		o.drop(string(crawlerrors.TypeOf(err)), url, err)
		return detailOutcome{}, nil
	}
	return detailOutcome{record: &record}, nil
}

func (o *Orchestrator) extractDetail(ctx context.Context, url string) (ListingRecord, error) {
	if err := o.waitTurn(ctx); err != nil {
		return ListingRecord{}, err
	}
	res, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return ListingRecord{}, err
	}
	if err := o.politeSleep(ctx); err != nil {
		return ListingRecord{}, err
	}

	record, err := ParseDetailPage(res.Content, url)
	if err != nil {
		return ListingRecord{}, err
	}
	if err := record.Validate(); err != nil {
		return ListingRecord{}, err
	}
	return record, nil
}

func (o *Orchestrator) persist(ctx context.Context, run *crawlRun) error {
	if len(run.batch) == 0 {
		return nil
	}

	inserted, err := o.store.InsertBatch(ctx, run.batch)
	if err != nil {
		if !crawlerrors.IsType(err, crawlerrors.ErrorTypeStore) {
			err = crawlerrors.NewStore("insert batch", err)
		}
		return err
	}
	run.summary.Inserted += inserted
	metrics.ListingsInserted.Add(float64(inserted))

	o.log.Info().
		Int("page", run.state.PageIndex).
		Int("batch", len(run.batch)).
		Int("inserted", inserted).
		Msg("Persisted batch")

	o.markSeen(run.batch)
	o.publish(run.batch)
	return nil
}

func (o *Orchestrator) drop(reason, url string, err error) {
	metrics.ListingsDropped.WithLabelValues(reason).Inc()
	o.log.WithError(err).Warn().Str("reason", reason).Str("url", url).Msg("Dropped listing")
	if o.drops != nil {
		o.drops.RecordDrop(reason, url, err)
	}
}

func (o *Orchestrator) politeSleep(ctx context.Context) error {
	if o.politeDelay <= 0 {
		return nil
	}
	return o.sleep(ctx, o.politeDelay)
}

// waitTurn spaces request starts when detail pages are fetched in parallel.
// A single worker is already spaced by politeSleep.
func (o *Orchestrator) waitTurn(ctx context.Context) error {
	if o.concurrency < 2 || o.politeDelay <= 0 {
		return nil
	}

	o.spacing.mu.Lock()
	now := o.now()
	start := o.spacing.next
	if start.Before(now) {
		start = now
	}
	o.spacing.next = start.Add(o.politeDelay)
	o.spacing.mu.Unlock()

	if wait := start.Sub(now); wait > 0 {
		return o.sleep(ctx, wait)
	}
	return nil
}

// seen reports whether url was persisted recently. Cache failures count as a miss.
func (o *Orchestrator) seen(url string) bool {
	if o.cache == nil {
		return false
	}
	_, err := o.cache.Get(seenKey(url))
	return err == nil
}

func (o *Orchestrator) markSeen(batch []ListingRecord) {
	if o.cache == nil {
		return
	}
	for _, record := range batch {
		if err := o.cache.Set(seenKey(record.SourceURL), []byte(record.UniqueKey), o.seenTTL); err != nil {
			o.log.Warn().Err(err).Str("url", record.SourceURL).Msg("Failed to mark listing as seen")
		}
	}
}

// publish sends every record of a persisted batch to the stream, keyed by its unique key
func (o *Orchestrator) publish(batch []ListingRecord) {
	if o.publisher == nil {
		return
	}
	today := o.now()
	for _, record := range batch {
		if record.CapturedDate.IsZero() {
			record.CapturedDate = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
		}
		data, err := json.Marshal(record)
		if err != nil {
			o.log.Error().Err(err).Str("uuid", record.UniqueKey).Msg("Failed to encode listing")
			continue
		}
		if err := o.publisher.Publish(record.UniqueKey, data); err != nil {
			o.log.Warn().Err(err).Str("uuid", record.UniqueKey).Msg("Failed to publish listing")
		}
	}
}

func seenKey(url string) string {
	return seenKeyPrefix + url
}
