package worker

import (
	"context"
	"time"

	"sjsage522/krishaworker/internal/crawler"
	"sjsage522/krishaworker/logger"
	"sjsage522/krishaworker/services/publisher"
)

// Worker runs one crawl from start to finish
type Worker struct {
	crawler   crawler.Crawler
	store     crawler.Store
	publisher publisher.Publisher
	search    crawler.CrawlConfig
	log       *logger.Logger
}

// NewWorker creates a new worker; pub may be nil
func NewWorker(c crawler.Crawler, store crawler.Store, pub publisher.Publisher, search crawler.CrawlConfig) *Worker {
	return &Worker{
		crawler:   c,
		store:     store,
		publisher: pub,
		search:    search,
		log:       logger.ForWorker(),
	}
}

// Run prepares the store, crawls the configured search once and trims the
// publisher's streams. The returned error is the one that failed the crawl.
func (w *Worker) Run(ctx context.Context) (crawler.CrawlSummary, error) {
	if err := w.store.EnsureSchema(ctx); err != nil {
		return crawler.CrawlSummary{}, err
	}

	log := w.log.WithFields(logger.Fields{
		"city":  w.search.City,
		"rooms": w.search.Rooms,
	})

	start := time.Now()
	summary, err := w.crawler.RunCrawl(ctx, w.search)
	elapsed := time.Since(start)

	// Trim all streams after crawling
	if w.publisher != nil {
		if trimErr := w.publisher.TrimStreams(); trimErr != nil {
			log.WithError(trimErr).Error().Msg("Stream trimming failed")
		}
	}

	event := log.Info()
	if err != nil {
		event = log.WithError(err).Error()
	}
	event.
		Dur("elapsed", elapsed).
		Str("final_phase", string(summary.FinalState.Phase)).
		Int("pages", summary.Pages).
		Int("detail_urls", summary.DetailURLs).
		Int("parsed", summary.Parsed).
		Int("dropped", summary.Dropped).
		Int("skipped", summary.Skipped).
		Int("inserted", summary.Inserted).
		Msg("Crawl run finished")

	return summary, err
}
