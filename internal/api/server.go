package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ServerConfig holds the listener and admin protection settings.
type ServerConfig struct {
	Port           string
	AdminAPIKey    string
	AdminRateLimit float64
	AdminRateBurst int
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(cfg ServerConfig, svcs Services) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(cfg, svcs),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter builds the route table. Admin routes are only mounted when an admin key is
// configured; they sit behind bearer auth and a per-client rate limit.
func NewRouter(cfg ServerConfig, svcs Services) http.Handler {
	h := NewHandler(svcs)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/v1/items", h.ListItems)
	mux.HandleFunc("GET /api/v1/items/{code}", h.GetItem)
	mux.HandleFunc("GET /api/v1/market/snapshot", h.GetSnapshot)
	mux.HandleFunc("GET /api/v1/market/digital-currencies", h.ListDigitalCurrencies)
	mux.HandleFunc("GET /api/v1/market/digital-currencies/{symbol}", h.GetDigitalCurrency)
	mux.HandleFunc("GET /api/v1/ohlc/{code}", h.GetOHLC)
	mux.HandleFunc("POST /api/v1/calculator/sync", h.SyncCalculator)
	mux.HandleFunc("GET /api/v1/export/market.xlsx", h.ExportWorkbook)

	if cfg.AdminAPIKey != "" {
		limiter := newRateLimiter(cfg.AdminRateLimit, cfg.AdminRateBurst)
		admin := func(fn http.HandlerFunc) http.Handler {
			return requireAuth(cfg.AdminAPIKey, limiter.middleware(fn))
		}
		mux.Handle("GET /api/v1/admin/items", admin(h.AdminListItems))
		mux.Handle("POST /api/v1/admin/items", admin(h.CreateItem))
		mux.Handle("PATCH /api/v1/admin/items/{code}", admin(h.UpdateItem))
		mux.Handle("DELETE /api/v1/admin/items/{code}", admin(h.DeleteItem))
		mux.Handle("POST /api/v1/admin/digital-currencies", admin(h.CreateDigitalCurrency))
		mux.Handle("GET /api/v1/admin/digital-currencies/stale", admin(h.ListStaleDigitalCurrencies))
		mux.Handle("POST /api/v1/admin/ingest", admin(h.Ingest))
	} else {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are disabled")
	}

	return recoverPanic(logRequests(mux))
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
