package main

import (
	"fmt"
	"time"

	"logguard/internal/alert"
	"logguard/internal/api"
	"logguard/internal/client"
	"logguard/internal/pipeline"
	"logguard/internal/rules"
	"logguard/internal/rules/builtin"
	"logguard/internal/storage"
	"logguard/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// services holds the long-lived collaborators shared by the commands.
type services struct {
	registry   *prometheus.Registry
	metrics    *client.PipelineMetrics
	store      storage.Store
	engine     *rules.Engine
	hub        *api.AlertHub
	dispatcher *alert.Dispatcher
	processor  *pipeline.Processor
}

func buildServices(config *utils.LogGuardConfig, logger *logrus.Logger) (*services, error) {
	store, err := storage.Open(storage.Config{
		Driver:       config.Storage.Driver,
		DSN:          config.Storage.DSN,
		Table:        config.Storage.Table,
		MaxAnomalies: config.Storage.MaxAnomalies,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open anomaly store: %w", err)
	}

	registry := alert.CreateCustomRegistry()
	metrics := client.NewPipelineMetrics(registry)

	engine := rules.NewEngine(logger)
	builtin.RegisterBuiltinRules(engine, config, logger)

	hub := api.NewAlertHub(logger)
	dispatcher := newDispatcher(config, buildNotifier(config, hub, logger), logger)

	opts := []pipeline.ProcessorOption{
		pipeline.WithSink(store),
		pipeline.WithMetrics(metrics),
		pipeline.WithWorkers(config.Ingest.Workers),
	}
	if config.Alerting.Enabled {
		opts = append(opts, pipeline.WithDispatcher(dispatcher))
	} else {
		logger.Info("Alerting disabled")
	}

	return &services{
		registry:   registry,
		metrics:    metrics,
		store:      store,
		engine:     engine,
		hub:        hub,
		dispatcher: dispatcher,
		processor:  pipeline.NewProcessor(engine, logger, opts...),
	}, nil
}

func newDispatcher(config *utils.LogGuardConfig, notifier alert.Notifier, logger *logrus.Logger) *alert.Dispatcher {
	return alert.NewDispatcher(notifier, logger,
		alert.WithMaxListed(config.Alerting.MaxListed),
		alert.WithLocation(config.Location()),
		alert.WithMessageTemplate(config.Alerting.MessageTemplate),
	)
}

// buildNotifier registers every enabled channel. hub may be nil when no API is served.
func buildNotifier(config *utils.LogGuardConfig, hub *api.AlertHub, logger *logrus.Logger) *alert.MultiNotifier {
	notifier := alert.NewMultiNotifier()
	channels := config.Alerting.Channels

	if channels.Log {
		notifier.Add(alert.NewLogAlertNotifier(logger))
	}

	if channels.Telegram {
		tg := config.Alerting.Telegram
		telegram := alert.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.ParseMode, tg.APIURL, logger)
		if telegram.Destination() == "" {
			logger.Warn("Telegram channel enabled but bot_token or chat_id is missing")
		}
		notifier.Add(telegram)
	}

	if channels.Webhook {
		wh := config.Alerting.Webhook
		if wh.URL == "" {
			logger.Warn("Webhook channel enabled but url is missing")
		}
		notifier.Add(alert.NewWebhookNotifier(wh.URL, wh.Headers, time.Duration(wh.TimeoutSeconds)*time.Second, logger))
	}

	if channels.WebSocket && hub != nil {
		notifier.Add(hub)
	}

	return notifier
}
