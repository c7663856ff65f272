package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/api"
	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/forecast"
	"papertrade/internal/market"
	"papertrade/internal/store"
	"papertrade/internal/util"
)

func main() {
	memOnly := flag.Bool("memory", false, "keep all state in memory instead of SQLite")
	flag.Parse()

	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if os.Getenv("PAPERTRADE_CONFIG") == "" && errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		log.Fatalf("invalid trading.starting_cash %q: %v", cfg.Trading.StartingCash, err)
	}

	var (
		orders store.OrderStore
		ledger store.LedgerStore
	)
	if *memOnly {
		mem := store.NewMemoryStore(startingCash)
		orders, ledger = mem, mem
		logger.Info("using in-memory store")
	} else {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath, startingCash)
		if err != nil {
			log.Fatalf("failed to open sqlite store: %v", err)
		}
		defer db.Close()
		orders, ledger = db, db
		logger.Info("using sqlite store", "path", cfg.Storage.SQLitePath)
	}

	var catalog market.Catalog
	switch cfg.Market.Source {
	case "alpaca":
		catalog = market.NewAlpacaCatalog(
			cfg.Alpaca.APIKey,
			cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL,
			market.DefaultSymbolMap(),
			cfg.Market.RateLimitPerMin,
		)
		logger.Info("using alpaca price catalogue", "data_url", cfg.Alpaca.DataURL)
	default:
		catalog = market.DefaultCatalog()
		logger.Info("using static price catalogue")
	}

	eng := engine.New(catalog, orders, ledger, logger)

	fc := forecast.NewClient(
		cfg.Prediction.BaseURL,
		time.Duration(cfg.Prediction.TimeoutSeconds)*time.Second,
		cfg.Prediction.RetryAttempts,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(eng, fc, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("papertrade-server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
