// Package server exposes the auction and administration services over a
// JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/player-auction/internal/admin"
	"github.com/jensholdgaard/player-auction/internal/auction"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/config"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/health"
	"github.com/jensholdgaard/player-auction/internal/server/middleware"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// AuctionService is what the auction routes need from the auction layer.
type AuctionService interface {
	Get(ctx context.Context, slug string, creds auth.Credentials) (*auction.Snapshot, error)
	Dispatch(ctx context.Context, slug string, creds auth.Credentials, a auction.Action) (*auction.Result, error)
}

// AdminService is what the tournament routes need from the admin layer.
type AdminService interface {
	Create(ctx context.Context, in admin.CreateInput, clientIP string) (*admin.Created, error)
	SetPublished(ctx context.Context, slug string, creds auth.Credentials, published bool) (*tournament.Tournament, error)
	SetStatus(ctx context.Context, slug string, creds auth.Credentials, status tournament.Status) (*tournament.Tournament, error)
	Delete(ctx context.Context, slug string, creds auth.Credentials, confirm bool) error
	ListPublished(ctx context.Context) ([]tournament.Tournament, error)
	Audit(ctx context.Context, slug string, creds auth.Credentials, limit int) ([]event.Event, error)
}

// Telemetry carries the providers used to instrument the handler chain.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Server is the HTTP front end.
type Server struct {
	cfg        config.ServerConfig
	auctions   AuctionService
	admin      AdminService
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New registers every route and wraps the mux in the middleware chain.
func New(cfg config.ServerConfig, auctions AuctionService, adm AdminService, hh *health.Handler, logger *slog.Logger, tel Telemetry, clk clock.Clock) *Server {
	s := &Server{
		cfg:      cfg,
		auctions: auctions,
		admin:    adm,
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", hh.LivenessHandler())
	mux.HandleFunc("GET /readyz", hh.ReadinessHandler())

	mux.HandleFunc("GET /api/tournaments", s.listTournaments)
	mux.HandleFunc("POST /api/tournaments", s.createTournament)
	mux.HandleFunc("DELETE /api/tournaments/{slug}", s.deleteTournament)
	mux.HandleFunc("PUT /api/tournaments/{slug}/publish", s.setPublished(true))
	mux.HandleFunc("DELETE /api/tournaments/{slug}/publish", s.setPublished(false))
	mux.HandleFunc("PUT /api/tournaments/{slug}/status", s.setStatus)
	mux.HandleFunc("GET /api/tournaments/{slug}/audit", s.auditTrail)

	mux.HandleFunc("GET /api/tournaments/{slug}/auction", s.getAuction)
	mux.HandleFunc("POST /api/tournaments/{slug}/auction", s.postAuction)

	var h http.Handler = mux
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger, clk)(h)
	h = middleware.RequestID(h)

	opts := []otelhttp.Option{}
	if tel.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tel.TracerProvider))
	}
	if tel.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(tel.MeterProvider))
	}
	s.handler = otelhttp.NewHandler(h, "auctiond", opts...)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "starting http server", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
