package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/perpgate/perpgate/internal/config"
	"github.com/perpgate/perpgate/internal/providers"
	"github.com/perpgate/perpgate/internal/providers/builtin"
	"github.com/perpgate/perpgate/internal/risk"
	"github.com/perpgate/perpgate/pkg/logger"
	"github.com/perpgate/perpgate/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.RiskLimit{}, &models.RiskEvent{}, &models.Position{}); err != nil {
		zapLogger.Fatal("failed to migrate schema", zap.Error(err))
	}

	registry := providers.NewRegistry()
	builtin.Register(registry)
	factory := providers.NewFactory(registry, cfg, zapLogger)
	router := providers.NewRouter(cfg.Routing, factory, zapLogger)

	riskService := risk.NewService(zapLogger,
		risk.NewRiskLimitStore(db),
		risk.NewRiskEventStore(db),
		risk.NewPositionStore(db))
	monitor := risk.NewMonitor(riskService, risk.NewPositionStore(db),
		time.Duration(cfg.Risk.MonitorInterval)*time.Second,
		cfg.Risk.MonitorPageSize, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the default providers so a broken configuration fails at boot
	// instead of on the first trade.
	warmCtx, warmCancel := context.WithTimeout(ctx, 60*time.Second)
	if _, err := router.GetTradingProvider(warmCtx, "", -1); err != nil {
		zapLogger.Warn("default trading provider unavailable at boot", zap.Error(err))
	}
	if _, err := router.GetSettlementProvider(warmCtx, "", -1); err != nil {
		zapLogger.Warn("default settlement provider unavailable at boot", zap.Error(err))
	}
	warmCancel()

	go monitor.Run(ctx)

	zapLogger.Info("perpgate started",
		zap.String("default_trading_provider", cfg.Routing.DefaultTradingProvider),
		zap.String("default_settlement_provider", cfg.Routing.DefaultSettlementProvider))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down")
	cancel()
}
