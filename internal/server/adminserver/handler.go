package adminserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yndnr/condkv/internal/infra/buildinfo"
)

// Stats is the body of GET /stats.
type Stats struct {
	Keys           int            `json:"keys"`
	WaitPoints     int            `json:"wait_points"`
	BlockedWaiters int            `json:"blocked_getwhen"`
	ActiveSessions int            `json:"active_sessions"`
	MaxSessions    int            `json:"max_sessions"`
	WaitingLogins  int            `json:"waiting_logins"`
	Accounts       int            `json:"accounts"`
	Connections    int            `json:"connections"`
	ConnList       []ConnInfo     `json:"connection_list"`
	Uptime         string         `json:"uptime"`
	Build          buildinfo.Info `json:"build"`
}

// ConnInfo describes one open protocol connection.
type ConnInfo struct {
	ID     string `json:"id"`
	Remote string `json:"remote"`
	// User is empty while the connection has no session.
	User string `json:"user,omitempty"`
	Age  string `json:"age"`
}

// HandlerConfig wires the admin routes to the running server.
type HandlerConfig struct {
	// Stats returns the current counters. Uptime and Build are filled in
	// by the handler.
	Stats func() Stats
	// Ready reports whether the protocol server accepts connections.
	// Nil means always ready.
	Ready func() bool
	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler
	Logger  *slog.Logger
}

type handler struct {
	cfg     HandlerConfig
	started time.Time
	logger  *slog.Logger
}

// NewHandler builds the admin router.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{cfg: cfg, started: time.Now(), logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/stats", h.handleStats)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Ready != nil && !h.cfg.Ready() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	var st Stats
	if h.cfg.Stats != nil {
		st = h.cfg.Stats()
	}
	st.Uptime = time.Since(h.started).Truncate(time.Second).String()
	st.Build = buildinfo.Get()
	h.writeJSON(w, http.StatusOK, st)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// accessLog logs every admin request at debug level.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("admin request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
