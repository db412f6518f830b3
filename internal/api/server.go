package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/backend"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/metrics"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/render"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

type Server struct {
	console   Console
	renderer  *render.Renderer
	journal   store.Journal
	broker    Broker
	backend   BackendHealth
	metrics   *metrics.Metrics
	downloads http.Handler
	cfg       config.Config
}

type Console interface {
	Submit(ctx context.Context, instruction string) (*render.RunView, error)
	Current() *render.RunView
	Busy() bool
}

type Broker interface {
	Subscribe(ctx context.Context) <-chan events.StatusEvent
}

type BackendHealth interface {
	Health(ctx context.Context) (backend.Health, error)
}

func NewServer(console Console, renderer *render.Renderer, journal store.Journal, broker Broker, health BackendHealth, m *metrics.Metrics, cfg config.Config) *Server {
	return &Server{
		console:   console,
		renderer:  renderer,
		journal:   journal,
		broker:    broker,
		backend:   health,
		metrics:   m,
		downloads: newDownloadsProxy(cfg.BackendURL),
		cfg:       cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", s.index)
	r.Get("/error", s.errorPage)
	r.Post("/runs", s.submitForm)
	r.Post("/api/runs", s.createRun)
	r.Get("/api/runs", s.listRuns)
	r.Get("/api/runs/current", s.currentRun)
	r.Get("/api/runs/{id}", s.getRun)
	r.Get("/report/download", s.downloadReport)
	r.Get("/events", s.streamEvents)
	r.Get(render.DownloadsPrefix+"*", s.proxyDownload)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method != http.MethodGet {
		return false
	}
	switch cleanPath {
	case "/events", "/health", "/ready", "/metrics", "/api/runs/current":
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.journal.ListRuns(ctx, 1); err != nil {
		subsystems["journal"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["journal"] = subsystemStatus{Status: "ok"}
	}

	health, err := s.backend.Health(ctx)
	switch {
	case err != nil:
		subsystems["backend"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	case !health.APIKeyValid:
		subsystems["backend"] = subsystemStatus{Status: "error", Error: "backend API key is missing or invalid"}
		overall = http.StatusServiceUnavailable
	default:
		subsystems["backend"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, map[string]string{"error": message}, statusCode)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newDownloadsProxy(backendURL string) http.Handler {
	target, err := url.Parse(strings.TrimRight(strings.TrimSpace(backendURL), "/"))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return http.NotFoundHandler()
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, "document unavailable: "+err.Error(), http.StatusBadGateway)
	}
	return proxy
}

func (s *Server) proxyDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}
	s.downloads.ServeHTTP(w, r)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
