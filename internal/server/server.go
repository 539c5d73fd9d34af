// Package server exposes the engine to the routing layer over HTTP. The
// engine itself stays transport-agnostic; this layer only translates
// requests and maps the rejection taxonomy to status codes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/audit"
	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/insurance"
	"github.com/nexafin/poolrisk/internal/ledger"
	"github.com/nexafin/poolrisk/internal/oracle"
	"github.com/nexafin/poolrisk/internal/position"
	"github.com/nexafin/poolrisk/internal/rebalance"
	"github.com/nexafin/poolrisk/pkg/errors"
)

// Server is the HTTP API.
type Server struct {
	logger     *zap.Logger
	cfg        config.ServerConfig
	engine     *gin.Engine
	httpServer *http.Server

	ledger     *ledger.Service
	positions  *position.Manager
	fund       *insurance.Fund
	cache      *oracle.Cache
	rebalancer *rebalance.Rebalancer
	journal    *audit.Store
}

// New builds the HTTP server and wires all routes.
func New(
	logger *zap.Logger,
	cfg config.ServerConfig,
	led *ledger.Service,
	positions *position.Manager,
	fund *insurance.Fund,
	cache *oracle.Cache,
	rebalancer *rebalance.Rebalancer,
	journal *audit.Store,
	registry *prometheus.Registry,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		logger:     logger,
		cfg:        cfg,
		engine:     engine,
		ledger:     led,
		positions:  positions,
		fund:       fund,
		cache:      cache,
		rebalancer: rebalancer,
		journal:    journal,
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/pools", s.createPool)
		v1.GET("/pools", s.listPools)
		v1.GET("/pools/:id", s.getPool)
		v1.GET("/pools/:id/quote", s.quoteSwap)
		v1.GET("/pools/:id/rebalances", s.listRebalances)
		v1.POST("/swaps", s.executeSwap)
		v1.POST("/oracle/snapshots", s.recordSnapshot)
		v1.POST("/positions", s.openPosition)
		v1.GET("/positions", s.listPositions)
		v1.GET("/positions/:id", s.getPosition)
		v1.POST("/positions/:id/close", s.closePosition)
		v1.POST("/positions/:id/withdraw", s.partialWithdraw)
		v1.GET("/fund", s.fundStatus)
	}

	return s
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// statusFor maps the rejection taxonomy to HTTP status codes. Partial
// insurance payouts are not errors and never reach this path.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrPoolNotFound), errors.Is(err, errors.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInsufficientLiquidity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrOracleUnavailable), errors.Is(err, errors.ErrStaleQuote):
		return http.StatusConflict
	case errors.Is(err, errors.ErrWithdrawalPending):
		return http.StatusAccepted
	case errors.Is(err, errors.ErrPositionNotActive), errors.Is(err, errors.ErrNotOwner):
		return http.StatusConflict
	case errors.Is(err, errors.ErrCustody):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
