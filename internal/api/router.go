// Package api serves the index over HTTP. Every endpoint is read-only; the
// indexer is the only writer.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ssbsql/internal/metrics"
	"ssbsql/internal/ratelimit"
)

// Progress is the part of the indexer the API reads.
type Progress interface {
	Latest() uint64
	Behind() uint64
	WaitFor(ctx context.Context, seq uint64) error
}

type Options struct {
	Version string
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Nil leaves the endpoint out.
	Gatherer       prometheus.Gatherer
	ReadsPerMinute int
	// MaxWait caps the timeout a client may ask /wait for.
	MaxWait time.Duration
}

const defaultMaxWait = 30 * time.Second

func NewRouter(database *sql.DB, progress Progress, opts Options) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaultMaxWait
	}
	limiter := ratelimit.NewLimiter(opts.ReadsPerMinute, time.Minute)
	limited := func(h http.Handler) http.Handler {
		return rateLimitMiddleware(limiter, opts.Metrics, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", statusHandler(database, progress, opts.Version))
	mux.Handle("/api/v1/latest", limited(latestHandler(progress)))
	mux.Handle("/api/v1/wait", limited(waitHandler(progress, opts.MaxWait)))
	mux.Handle("/api/v1/messages", limited(messagesHandler(database)))
	mux.Handle("/api/v1/messages/", limited(messageItemHandler(database)))
	mux.Handle("/api/v1/backlinks", limited(backlinksHandler(database)))
	mux.Handle("/api/v1/contacts", limited(contactsHandler(database)))
	mux.Handle("/api/v1/abouts", limited(aboutsHandler(database)))
	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return loggingMiddleware(opts.Logger, metricsMiddleware(opts.Metrics, mux))
}

// pathTail returns the unescaped path segment after prefix. Message keys
// carry '/' in their base64, so the escaped path is split, not the decoded
// one.
func pathTail(r *http.Request, prefix string) (string, error) {
	tail := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	tail = strings.Trim(tail, "/")
	return url.PathUnescape(tail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
