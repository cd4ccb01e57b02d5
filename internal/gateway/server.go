// Package gateway serves offer pages and exports over HTTP.
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/cutoff"
	"college-predictor/internal/render"
)

// OfferService is the query side the gateway exposes.
type OfferService interface {
	GetPage(ctx context.Context, req cutoff.Request, pageNumber int) (*cutoff.ResultPage, error)
	GetExportSet(ctx context.Context, req cutoff.Request) ([]cutoff.ReconciledOffer, error)
	Categories() cutoff.CategorySet
	Catalog() *cutoff.Catalog
}

// Renderer draws an export document.
type Renderer interface {
	Render(w io.Writer, doc render.ExportDocument) error
	ContentType() string
	Filename() string
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type Config struct {
	Address           string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	RequestTimeout    time.Duration
}

// ConfigFromServer converts the millisecond server settings.
func ConfigFromServer(sc config.ServerConfig) Config {
	return Config{
		Address:           sc.Address,
		ReadHeaderTimeout: config.GetDuration(sc.ReadHeaderTimeout),
		WriteTimeout:      config.GetDuration(sc.WriteTimeout),
		RequestTimeout:    config.GetDuration(sc.RequestTimeout),
	}
}

type Option func(*Server)

// WithReadinessCheck adds a named dependency to /ready.
func WithReadinessCheck(name string, p Pinger) Option {
	return func(s *Server) {
		s.checks = append(s.checks, namedCheck{name: name, pinger: p})
	}
}

// WithMetricsHandler replaces the default prometheus handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

type namedCheck struct {
	name   string
	pinger Pinger
}

type Server struct {
	cfg            Config
	service        OfferService
	renderer       Renderer
	logger         logger.Logger
	checks         []namedCheck
	metricsHandler http.Handler
	handler        http.Handler
	httpServer     *http.Server
}

func New(cfg Config, service OfferService, renderer Renderer, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:            cfg,
		service:        service,
		renderer:       renderer,
		logger:         log,
		metricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = requestID(s.withTimeout(mux))

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("GET /api/offers", s.instrument("offers", s.handleOffers))
	mux.Handle("GET /api/offers/export", s.instrument("export", s.handleExport))
	mux.Handle("GET /api/offers/export.pdf", s.instrument("export_pdf", s.handleExportPDF))
	mux.Handle("GET /api/categories", s.instrument("categories", s.handleCategories))
	mux.Handle("GET /api/groups", s.instrument("groups", s.handleGroups))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", s.metricsHandler)
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Gateway listening", map[string]interface{}{
		"address": s.cfg.Address,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
