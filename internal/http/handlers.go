package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes plain-text counters, enough for a scrape or a quick
// curl during an incident.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	snap := s.store.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "http_requests_total %d\n", atomic.LoadInt64(&s.totalRequests))
	fmt.Fprintf(w, "http_rate_limited_total %d\n", s.rateLimiter.rejectedCount())
	fmt.Fprintf(w, "uptime_seconds %d\n", int64(time.Since(s.startedAt).Seconds()))
	fmt.Fprintf(w, "accounts_total %d\n", len(snap.Accounts))
	fmt.Fprintf(w, "transactions_total %d\n", len(snap.Transactions))
	fmt.Fprintf(w, "budget_versions_total %d\n", len(snap.Budgets))
	fmt.Fprintf(w, "saving_goals_total %d\n", len(snap.Goals))
	fmt.Fprintf(w, "series_cache_entries %d\n", s.seriesCache.Size())
	fmt.Fprintf(w, "budgets_cache_entries %d\n", s.budgetsCache.Size())
}
