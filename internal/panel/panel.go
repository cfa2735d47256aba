// Package panel serves a read-only HTTP status view over the cache: run
// progress, cached-context counts, and the generated-message log.
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"outreach/internal/cache"
)

const defaultMessageLimit = 20
const maxMessageLimit = 200

// Deps holds what the panel reads from. Store is the only dependency; the
// panel never writes.
type Deps struct {
	Store *cache.Store
}

// NewHandler builds the panel's HTTP handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth())
	r.Get("/api/status", handleStatus(deps))
	r.Get("/api/progress/{fingerprint}", handleProgress(deps))
	r.Get("/api/messages", handleMessages(deps))

	return r
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.Stats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "reading cache stats: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

func handleProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fp := chi.URLParam(r, "fingerprint")
		progress, err := deps.Store.GetProgress(fp)
		if errors.Is(err, cache.ErrNotFound) {
			httpError(w, http.StatusNotFound, "no progress for fingerprint %s", fp)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "reading progress: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"fingerprint": progress.Fingerprint,
			"last_index":  progress.LastIndex,
			"total":       progress.Total,
			"updated_at":  progress.UpdatedAt,
		})
	}
}

func handleMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			msgs []cache.MessageRecord
			err  error
		)
		if recipient := r.URL.Query().Get("recipient"); recipient != "" {
			msgs, err = deps.Store.MessagesFor(recipient)
		} else {
			msgs, err = deps.Store.RecentMessages(messageLimit(r))
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "reading messages: %v", err)
			return
		}
		if msgs == nil {
			msgs = []cache.MessageRecord{}
		}
		respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	}
}

func messageLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultMessageLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultMessageLimit
	}
	if n > maxMessageLimit {
		return maxMessageLimit
	}
	return n
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	respondJSON(w, code, map[string]any{
		"error": fmt.Sprintf(format, args...),
	})
}
