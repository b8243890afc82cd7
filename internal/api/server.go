// Package api provides the HTTP API server for hearth.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/metrics"
	"github.com/quantumlife/hearth/internal/notifications"
	"github.com/quantumlife/hearth/internal/ratelimit"
	"github.com/quantumlife/hearth/internal/scheduler"
	"github.com/quantumlife/hearth/internal/state"
	"github.com/quantumlife/hearth/internal/store"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	store         *store.Store
	storage       kv.Store
	notifications *notifications.Service
	rateLimits    *ratelimit.Store
	metrics       *metrics.Collector
	monitor       *store.Monitor
	scheduler     *scheduler.Scheduler

	wsHub          *WebSocketHub
	dispatchLimits *clientLimiter
	logger         *logging.Logger
}

// Config for the server
type Config struct {
	Addr string

	Store *store.Store
	// Storage backs GET /preferences. Optional.
	Storage       kv.Store
	Notifications *notifications.Service
	RateLimits    *ratelimit.Store
	Metrics       *metrics.Collector
	Monitor       *store.Monitor
	// Scheduler backs GET /tasks. Optional.
	Scheduler *scheduler.Scheduler
	Logger    *logging.Logger

	// DispatchRate and DispatchBurst bound POST /dispatch per client.
	// Zero uses 20 requests per second with a burst of 40.
	DispatchRate  float64
	DispatchBurst int
}

// New creates a new API server
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.DispatchRate <= 0 {
		cfg.DispatchRate = 20
	}
	if cfg.DispatchBurst <= 0 {
		cfg.DispatchBurst = 40
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:8080"
	}

	logger := cfg.Logger.WithField("component", "api")
	s := &Server{
		store:          cfg.Store,
		storage:        cfg.Storage,
		notifications:  cfg.Notifications,
		rateLimits:     cfg.RateLimits,
		metrics:        cfg.Metrics,
		monitor:        cfg.Monitor,
		scheduler:      cfg.Scheduler,
		wsHub:          NewWebSocketHub(cfg.Logger),
		dispatchLimits: newClientLimiter(cfg.DispatchRate, cfg.DispatchBurst),
		logger:         logger,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", s.handleHealth)

		// State
		r.Get("/state", s.handleGetState)
		r.Get("/state/{slice}", s.handleGetSlice)
		r.With(s.dispatchLimits.Handler).Post("/dispatch", s.handleDispatch)

		// Preferences
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)

		// Diagnostics
		r.Get("/ratelimit/stats", s.handleRateLimitStats)
		r.Get("/performance", s.handlePerformance)
		r.Get("/tasks", s.handleTasks)

		// Notifications (if service configured)
		if s.notifications != nil {
			notifAPI := NewNotificationsAPI(s.notifications)
			r.Get("/notifications", notifAPI.handleGetNotifications)
			r.Post("/notifications", notifAPI.handleCreateNotification)
			r.Get("/notifications/active-count", notifAPI.handleGetActiveCount)
			r.Get("/notifications/stats", notifAPI.handleGetNotificationStats)
			r.Post("/notifications/dismiss-all", notifAPI.handleDismissAll)
			r.Get("/notifications/{id}", notifAPI.handleGetNotification)
			r.Post("/notifications/{id}/dismiss", notifAPI.handleDismissNotification)
		}
	})

	r.Handle("/metrics", s.metrics.Handler())

	// WebSocket
	r.Get("/ws", s.wsHub.ServeHTTP)

	s.router = r
}

// requestLogger logs each request at debug level, or warn for 5xx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log := s.logger.WithFields(map[string]interface{}{
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
		if ww.Status() >= 500 {
			log.Warn("%s %s", r.Method, r.URL.Path)
			return
		}
		log.Debug("%s %s", r.Method, r.URL.Path)
	})
}

// Start serves HTTP until ctx is done, then shuts down gracefully. State
// changes and new toasts are pushed to WebSocket clients while it runs.
func (s *Server) Start(ctx context.Context) error {
	unsubscribe := s.store.Subscribe(func(st state.GlobalState) {
		s.Broadcast(MessageState, st)
	})
	defer unsubscribe()

	if s.notifications != nil {
		sub := toastSubscriber{hub: s.wsHub}
		s.notifications.Subscribe(sub)
		defer s.notifications.Unsubscribe(sub.ID())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.wsHub.Run(ctx)
	})
	g.Go(func() error {
		s.logger.Info("API server listening on http://%s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.Stop(context.Background())
	})
	return g.Wait()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast sends a message to all WebSocket clients
func (s *Server) Broadcast(msgType string, data any) {
	s.wsHub.Broadcast(WebSocketMessage{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now(),
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps err to a status code by its error type.
func respondError(w http.ResponseWriter, err error) {
	typ := core.TypeOf(err)
	status := typ.StatusCode()

	var appErr *core.AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		status = appErr.StatusCode
	}
	if errors.Is(err, core.ErrRateLimited) {
		status = http.StatusTooManyRequests
	}

	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"type":  string(typ),
	})
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}
