// Package metrics holds the crawl's prometheus collectors and the HTTP server exposing them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sjsage522/krishaworker/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons
const (
	ReasonFetchExhausted = "fetch_exhausted"
	ReasonMalformedData  = "malformed_embedded_data"
	ReasonMissingPrice   = "missing_price"
)

var (
	PagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krisha_pages_fetched_total",
			Help: "Search result pages fetched and parsed.",
		},
	)
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krisha_fetch_attempts_total",
			Help: "HTTP fetch attempts by result.",
		},
		[]string{"result"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "krisha_fetch_duration_seconds",
			Help:    "Duration of single HTTP fetch attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	ListingsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krisha_listings_dropped_total",
			Help: "Listings dropped during a crawl by reason.",
		},
		[]string{"reason"},
	)
	ListingsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krisha_listings_skipped_total",
			Help: "Detail pages not fetched because the listing was seen recently.",
		},
	)
	ListingsInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krisha_listings_inserted_total",
			Help: "Listings newly inserted into the store.",
		},
	)
)

func init() {
	prometheus.MustRegister(PagesFetched)
	prometheus.MustRegister(FetchAttempts)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(ListingsDropped)
	prometheus.MustRegister(ListingsSkipped)
	prometheus.MustRegister(ListingsInserted)
}

// NewRouter routes /metrics and /healthz
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// Server exposes the metrics endpoints while a crawl runs
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		logger.Info("Metrics server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped: %v", err)
		}
	}()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
