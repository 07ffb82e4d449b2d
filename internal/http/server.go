// Package http exposes the JSON API over the store and the transaction
// service: monthly series, budget rollups, transaction filtering and the
// account, goal and preference resources.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// TransactionWriter is the slice of the transaction service the handlers
// need. Reads go straight to the store; writes go through the service so the
// export pipeline sees them.
type TransactionWriter interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, t core.Transaction) error
	Delete(ctx context.Context, id string) error
}

// Server wraps http.Server with the API handlers, per-IP rate limiting and
// the derived-view caches.
type Server struct {
	http.Server

	store        *store.Store
	transactions TransactionWriter

	rateLimiter *rateLimiter

	// Derived views are cheap to rebuild but requested on every dashboard
	// refresh; both caches are dropped wholesale on any write.
	seriesCache  *cache.LRUCache[[]core.DailyPoint]
	budgetsCache *cache.LRUCache[[]core.BudgetSpending]
	cacheManager *cache.Manager

	totalRequests int64
	startedAt     time.Time
	shutdownOnce  sync.Once
}

// NewServer wires the mux. The transaction writer may be the store-only
// service when no export pipeline is configured.
func NewServer(addr string, st *store.Store, tw TransactionWriter) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		store:        st,
		transactions: tw,
		rateLimiter:  newRateLimiter(),
		seriesCache:  cache.NewLRUCache[[]core.DailyPoint](100, 5*time.Minute),
		budgetsCache: cache.NewLRUCache[[]core.BudgetSpending](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
		startedAt:    time.Now(),
	}

	s.cacheManager.Register(s.seriesCache)
	s.cacheManager.Register(s.budgetsCache)
	s.cacheManager.StartCleanup(time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/series", s.withSecurityHeaders(s.handleSeries))
	mux.HandleFunc("/api/budgets", s.withSecurityHeaders(s.handleBudgets))
	mux.HandleFunc("/api/budgets/", s.withSecurityHeaders(s.handleBudgetByID))
	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("/api/transactions", s.withSecurityHeaders(s.handleTransactions))
	mux.HandleFunc("/api/transactions/", s.withSecurityHeaders(s.handleTransactionByID))
	mux.HandleFunc("/api/accounts", s.withSecurityHeaders(s.handleAccounts))
	mux.HandleFunc("/api/accounts/", s.withSecurityHeaders(s.handleAccountByID))
	mux.HandleFunc("/api/categories", s.withSecurityHeaders(s.handleCategories))
	mux.HandleFunc("/api/goals", s.withSecurityHeaders(s.handleGoals))
	mux.HandleFunc("/api/goals/", s.withSecurityHeaders(s.handleGoalByID))
	mux.HandleFunc("/api/preference", s.withSecurityHeaders(s.handlePreference))

	return s
}

// Shutdown stops the rate limiter and cache cleanup before closing the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.cacheManager.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// invalidateDerived drops the cached series and budget rollups after a write.
func (s *Server) invalidateDerived() {
	s.seriesCache.Clear()
	s.budgetsCache.Clear()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		atomic.AddInt64(&s.totalRequests, 1)

		// Apply rate limiting to writes
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Capture the status code for the completion log
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
