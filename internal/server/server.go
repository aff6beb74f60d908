// Package server answers configured stubs and fires their webhooks, and
// exposes the delivery journal under /__admin.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mattjoyce/postserve/internal/config"
	"github.com/mattjoyce/postserve/internal/events"
	"github.com/mattjoyce/postserve/internal/journal"
	"github.com/mattjoyce/postserve/internal/webhook"
)

// AdminPrefix is reserved for the server's own endpoints.
const AdminPrefix = "/__admin"

// Dispatcher fires the webhooks of a served stub without blocking the response.
type Dispatcher interface {
	Dispatch(ctx context.Context, event webhook.ServeEvent, hooks []config.WebhookConfig)
}

// DeliveryStore is the delivery journal as the admin API sees it.
type DeliveryStore interface {
	Get(ctx context.Context, id string) (*journal.Delivery, error)
	List(ctx context.Context, f journal.ListFilter) ([]*journal.Delivery, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Server represents the stub HTTP server.
type Server struct {
	config     config.ServerConfig
	stubs      []config.StubConfig
	dispatcher Dispatcher
	deliveries DeliveryStore
	events     *events.Hub
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a server. deliveries and hub may be nil; the matching admin
// endpoints then answer 503.
func New(cfg config.ServerConfig, stubs []config.StubConfig, dispatcher Dispatcher, deliveries DeliveryStore, hub *events.Hub, logger *slog.Logger) *Server {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}
	return &Server{
		config:     cfg,
		stubs:      stubs,
		dispatcher: dispatcher,
		deliveries: deliveries,
		events:     hub,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// No write timeout: /__admin/events streams.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("stub server starting", "listen", s.config.Listen, "stubs", len(s.stubs))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("stub server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stub server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("stub server error: %w", err)
	}
}

// Handler returns the routed handler, for Start and for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Route(AdminPrefix, func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.With(s.requireScopes(config.ScopeDeliveriesRead)).Get("/deliveries", s.handleListDeliveries)
			r.With(s.requireScopes(config.ScopeDeliveriesRead)).Get("/deliveries/{id}", s.handleGetDelivery)
			r.With(s.requireScopes(config.ScopeDeliveriesWrite)).Delete("/deliveries", s.handlePruneDeliveries)
			r.With(s.requireScopes(config.ScopeEventsRead)).Get("/events", s.handleEvents)
		})
	})

	for i := range s.stubs {
		stub := &s.stubs[i]
		r.Method(stub.Method, stub.Path, s.stubHandler(stub))
	}

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) stubHandler(stub *config.StubConfig) http.HandlerFunc {
	respHeader := stubResponseHeader(stub.Response.Headers)

	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to read request body")
			return
		}
		if int64(len(body)) > s.config.MaxBodySize {
			s.writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}

		for _, name := range respHeader.Names() {
			for _, v := range respHeader.Values(name) {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(stub.Response.Status)
		if stub.Response.Body != "" {
			_, _ = io.WriteString(w, stub.Response.Body)
		}

		event := webhook.ServeEvent{
			ID:   uuid.NewString(),
			Stub: stub.Name,
			Request: webhook.LoggedRequest{
				Method: webhook.Method(r.Method),
				URL:    r.URL.String(),
				Header: webhook.HeaderFromHTTP(r.Header),
				Body:   body,
			},
			Response: webhook.LoggedResponse{
				Status: stub.Response.Status,
				Header: respHeader,
				Body:   []byte(stub.Response.Body),
			},
			At: time.Now().UTC(),
		}

		s.events.Publish(events.TypeStubServed, map[string]any{
			"serve_event_id": event.ID,
			"stub":           stub.Name,
			"method":         r.Method,
			"path":           r.URL.Path,
			"webhooks":       len(stub.Webhooks),
		})

		if len(stub.Webhooks) > 0 && s.dispatcher != nil {
			s.dispatcher.Dispatch(r.Context(), event, stub.Webhooks)
		}
	}
}

func stubResponseHeader(headers map[string]string) webhook.Header {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, headers[name])
	}
	return webhook.NewHeader(pairs...)
}
