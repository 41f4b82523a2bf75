package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// StatusProvider returns a consistent copy of the trading state.
type StatusProvider interface {
	Status() domain.StatusReport
}

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	tradeRepo domain.TradeRepository
	status    StatusProvider
	logger    *zap.Logger
}

func NewServer(
	port int,
	tradeRepo domain.TradeRepository,
	status StatusProvider,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		tradeRepo: tradeRepo,
		status:    status,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Trading state
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /status/{asset}", s.handleAssetStatus)

	// Journal
	s.router.HandleFunc("GET /trades", s.handleListTrades)
	s.router.HandleFunc("GET /snapshots/{asset}", s.handleListSnapshots)

	s.router.Handle("GET /metrics", promhttp.Handler())
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
