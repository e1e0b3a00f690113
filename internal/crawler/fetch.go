package crawler

import (
	"context"
	"net/http"
	"time"

	"sjsage522/krishaworker/helpers"
	"sjsage522/krishaworker/logger"
	crawlerrors "sjsage522/krishaworker/pkg/errors"
	"sjsage522/krishaworker/services/metrics"
)

// DefaultBackoffSchedule is the delay slept after each failed attempt
var DefaultBackoffSchedule = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
	1200 * time.Second,
	3600 * time.Second,
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// ResilientFetcher is the only component that talks to the network.
// It makes one attempt per schedule entry and sleeps that entry's delay after
// a failed attempt; the fetch is exhausted once the last delay has been slept.
type ResilientFetcher struct {
	client   *http.Client
	schedule []time.Duration
	sleep    SleepFunc
	log      *logger.Logger
}

// NewResilientFetcher creates a fetcher; an empty schedule falls back to DefaultBackoffSchedule
func NewResilientFetcher(client *http.Client, schedule []time.Duration) *ResilientFetcher {
	if client == nil {
		client = helpers.NewClient(helpers.DefaultTimeout)
	}
	if len(schedule) == 0 {
		schedule = DefaultBackoffSchedule
	}
	return &ResilientFetcher{
		client:   client,
		schedule: append([]time.Duration(nil), schedule...),
		sleep:    sleepContext,
		log:      logger.ForFetcher(),
	}
}

// Fetch retrieves url, retrying network failures and non-200 responses
func (f *ResilientFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	var lastErr error
	for attempt, delay := range f.schedule {
		start := time.Now()
		page, err := helpers.Get(ctx, f.client, url)
		metrics.FetchDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.FetchAttempts.WithLabelValues("success").Inc()
			return &FetchResult{Content: page.Body, FinalURL: page.FinalURL}, nil
		}

		metrics.FetchAttempts.WithLabelValues("failure").Inc()
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.log.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt+1).
			Int("max_attempts", len(f.schedule)).
			Dur("backoff", delay).
			Msg("Fetch failed, backing off")

		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, crawlerrors.NewFetchExhausted(url, len(f.schedule), lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
