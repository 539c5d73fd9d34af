package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/audit"
	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/custody"
	"github.com/nexafin/poolrisk/internal/fee"
	"github.com/nexafin/poolrisk/internal/insurance"
	"github.com/nexafin/poolrisk/internal/ledger"
	"github.com/nexafin/poolrisk/internal/oracle"
	"github.com/nexafin/poolrisk/internal/position"
	"github.com/nexafin/poolrisk/internal/rebalance"
	"github.com/nexafin/poolrisk/internal/server"
	"github.com/nexafin/poolrisk/pkg/logger"
	"github.com/nexafin/poolrisk/pkg/metrics"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.New(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	manager := config.NewManager(zapLogger)
	cfg, err := manager.Load(os.Getenv("POOLRISK_CONFIG"))
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	journal, err := audit.NewStore(zapLogger, cfg.AuditDSN)
	if err != nil {
		zapLogger.Fatal("Failed to open audit store", zap.Error(err))
	}

	cust := custody.NewInMemory()
	cache := oracle.NewCache(zapLogger, manager)
	fund := insurance.NewFund(zapLogger)
	fees := fee.NewEngine(zapLogger, manager, cache)
	led := ledger.NewService(zapLogger, manager, cache, fees, fund, cust)
	positions := position.NewManager(zapLogger, manager, led, fund, cache, cust, journal)
	rebalancer := rebalance.New(zapLogger, led, journal)

	if err := rebalancer.Start(cfg.RebalanceCron); err != nil {
		zapLogger.Fatal("Failed to start rebalancer", zap.Error(err))
	}
	defer rebalancer.Stop()

	srv := server.New(zapLogger, cfg.Server, led, positions, fund, cache, rebalancer, journal, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		zapLogger.Fatal("HTTP server failed", zap.Error(err))
	}
	zapLogger.Info("Shutdown complete")
}
