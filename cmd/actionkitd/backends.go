package main

import (
	"context"
	"fmt"

	"ActionKit-Chain/internal/audit"
	"ActionKit-Chain/internal/config"
	"ActionKit-Chain/internal/observability/alerting"
	storagemysql "ActionKit-Chain/internal/storage/mysql"
	storageredis "ActionKit-Chain/internal/storage/redis"
	"ActionKit-Chain/pkg/logger"
)

func openRepository(ctx context.Context, cfg *config.Config) (storagemysql.InvocationRepository, error) {
	switch cfg.Storage.Driver {
	case "mysql":
		return storagemysql.Open(ctx, cfg.Storage.MySQL)
	case "memory", "":
		return storagemysql.NewMemoryInvocationRepository(cfg.Storage.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openQueue(cfg *config.Config, rdb *storageredis.Client) (audit.Queue, error) {
	switch cfg.Audit.Queue {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("audit queue redis needs a redis connection")
		}
		return audit.NewRedisQueue(rdb.Raw(), cfg.Audit.Redis)
	case "rabbitmq":
		return audit.NewRabbitMQQueue(cfg.Audit.RabbitMQ)
	case "memory", "":
		return audit.NewMemoryQueue(cfg.Audit.BufferSize), nil
	default:
		return nil, fmt.Errorf("unknown audit queue %q", cfg.Audit.Queue)
	}
}

func buildAlerts(cfg *config.Config) *alerting.FanoutDispatcher {
	var notifiers []alerting.Notifier
	if cfg.Alerting.Log {
		notifiers = append(notifiers, &alerting.LogNotifier{Logger: logger.Named("alerting")})
	}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, alerting.NewWebhook(cfg.Alerting.WebhookURL))
	}
	return alerting.NewFanout(notifiers...)
}
