package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/api"
	"ActionKit-Chain/internal/audit"
	"ActionKit-Chain/internal/auth"
	"ActionKit-Chain/internal/config"
	"ActionKit-Chain/internal/observability/alerting"
	"ActionKit-Chain/internal/observability/metrics"
	"ActionKit-Chain/internal/providers/catalog"
	storageredis "ActionKit-Chain/internal/storage/redis"
	"ActionKit-Chain/internal/wallet/evm"
	"ActionKit-Chain/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("actionkitd: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.FromEnvironment()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("actionkitd")
	lg.Info("starting", slog.String("config", cfg.String()))

	w, err := evm.New(ctx, evm.Config{
		PrivateKey:   cfg.Wallet.PrivateKey,
		RPCURL:       cfg.Wallet.RPCURL,
		Network:      cfg.Wallet.Network(),
		PollInterval: cfg.Wallet.PollInterval,
	})
	if err != nil {
		return err
	}
	defer w.Close()
	lg.Info("wallet ready", slog.String("address", w.Address().Hex()), slog.String("network", w.Network().String()))

	var rdb *storageredis.Client
	if cfg.Redis.Enabled {
		rdb, err = storageredis.Open(ctx, cfg.Redis.Config)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var backends catalog.Backends
	if rdb != nil {
		backends.X402Services = storageredis.NewServiceStore(rdb)
		backends.X402Discovery = storageredis.NewDiscoveryCache(rdb)
	}
	providerSet, err := catalog.Build(cfg.Providers, w.Network(), backends)
	if err != nil {
		return err
	}
	registry, err := action.NewRegistry(providerSet...)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	queue, err := openQueue(cfg, rdb)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			lg.Warn("close audit queue", slog.Any("error", err))
		}
	}()

	collector := metrics.New()
	alerts := alerting.NewObserver(buildAlerts(cfg), cfg.Alerting.Timeout)
	defer alerts.Wait()

	dispatcher := action.NewDispatcher(registry, w,
		action.WithObserver(collector),
		action.WithObserver(alerts),
		action.WithObserver(audit.NewRecorder(queue, cfg.Audit.PublishTimeout)),
	)

	processor := audit.NewProcessor(repo, queue, audit.WithWorkerCount(cfg.Audit.Workers))
	processorCtx, cancelProcessor := context.WithCancel(ctx)
	defer cancelProcessor()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("audit processor stopped", slog.Any("error", err))
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address, collector.Handler()); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("metrics listener stopped", slog.Any("error", err))
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, dispatcher,
		api.WithHistory(repo),
		api.WithAuth(auth.NewStatic(cfg.Server.AuthToken, "")),
		api.WithRequestObserver(collector),
		api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info("stopped")
	return nil
}
