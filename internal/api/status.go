package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ssbsql/internal/db"
)

func statusHandler(database *sql.DB, progress Progress, version string) http.HandlerFunc {
	type statusResponse struct {
		Status        string        `json:"status"`
		Version       string        `json:"version"`
		Timestamp     string        `json:"timestamp"`
		SchemaVersion int           `json:"schema_version"`
		Latest        uint64        `json:"latest"`
		Behind        uint64        `json:"behind"`
		Stats         db.IndexStats `json:"stats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		if err := database.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		schema, err := db.CurrentSchemaVersion(r.Context(), database)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read schema version")
			return
		}
		stats, err := db.GetIndexStats(r.Context(), database)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Status:        "ok",
			Version:       version,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			SchemaVersion: schema,
			Latest:        progress.Latest(),
			Behind:        progress.Behind(),
			Stats:         stats,
		})
	}
}

func latestHandler(progress Progress) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"latest": progress.Latest()})
	})
}

// waitHandler holds the request until the index reaches seq, so a client that
// just appended can read its own write.
func waitHandler(progress Progress, maxWait time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		q := r.URL.Query()
		seq, err := strconv.ParseUint(strings.TrimSpace(q.Get("seq")), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid seq value")
			return
		}
		timeout := maxWait
		if v := strings.TrimSpace(q.Get("timeout")); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				writeError(w, http.StatusBadRequest, "invalid timeout value")
				return
			}
			timeout = min(d, maxWait)
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := progress.WaitFor(ctx, seq); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				writeJSON(w, http.StatusGatewayTimeout, map[string]any{
					"error":  "index did not reach seq in time",
					"latest": progress.Latest(),
				})
				return
			}
			writeError(w, http.StatusServiceUnavailable, "wait cancelled")
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"latest": progress.Latest()})
	})
}
