package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tikka/internal/config"
	"tikka/internal/event"
	"tikka/internal/indexer"
	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/oracle"
	"tikka/internal/raffle"
	"tikka/internal/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("RAFFLE_CONFIG_FILE"), ".env")
	if err != nil {
		panic(err)
	}
	if cfg.Oracle.Account == "" {
		panic("oracle account is not configured, set RAFFLE_ORACLE_ACCOUNT")
	}

	logger.Initialize(cfg.Log)
	defer logger.Sync()

	errCh := make(chan error, 1)

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	views, err := indexer.NewViewStorage(cfg.Indexer.Path)
	if err != nil {
		panic(err)
	}
	defer views.Close()

	sequence, err := store.LatestSequence(ctx)
	if err != nil {
		panic(err)
	}
	contract := raffle.New(store, ledger.NewSystemClock(sequence), cfg.ContractOptions()...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := contract.RegisterMetrics(registry); err != nil {
		panic(err)
	}
	if err := event.RegisterMetrics(registry); err != nil {
		panic(err)
	}

	idx, err := indexer.NewIndexer(ctx, store, views, cfg.Oracle.BatchSize)
	if err != nil {
		panic(err)
	}
	responder := oracle.NewResponder(contract, views, cfg.Oracle.Account, oracle.CryptoSeed{})
	service := oracle.NewService(idx, responder, cfg.Oracle.PollInterval)

	var metricsServer *http.Server
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		go func() {
			logger.Info("serving prometheus metrics", zap.String("address", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	logger.Info("starting oracle...", zap.String("account", string(cfg.Oracle.Account)), zap.String("storage", cfg.Storage.Driver))
	if err := service.Start(ctx); err != nil {
		panic(err)
	}

	select {
	case err := <-errCh:
		logger.Error("stopping on error", zap.Error(err))
	case sig := <-waitForInterrupt():
		logger.Info("interrupt received", zap.String("signal", sig.String()))
	}

	cancel()
	service.Stop()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("cannot stop metrics server", zap.Error(err))
		}
	}
	logger.Info("oracle stopped")
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
