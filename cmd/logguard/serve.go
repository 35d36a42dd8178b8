package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"logguard/internal/alert"
	"logguard/internal/api"
	"logguard/internal/generator"
	"logguard/internal/model"
	"logguard/internal/pipeline"
	"logguard/internal/server"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	var generate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest API, stream batcher, metrics exporter and health service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, generate)
		},
	}

	cmd.Flags().BoolVar(&generate, "generate", false, "Feed synthetic log events into the in-process stream")
	return cmd
}

func (a *app) serve(ctx context.Context, generate bool) error {
	config := a.config
	logger := a.logger

	svc, err := buildServices(config, logger)
	if err != nil {
		return err
	}
	defer svc.store.Close()

	fmt.Fprintln(a.stdout, "LogGuard")
	fmt.Fprintf(a.stdout, "API: http://localhost:%s/api/v1\n", config.Application.APIPort)
	fmt.Fprintf(a.stdout, "Metrics: http://localhost:%s/metrics\n", config.Application.MetricsPort)
	fmt.Fprintf(a.stdout, "gRPC health: localhost:%s\n", config.Application.GRPCPort)
	fmt.Fprintf(a.stdout, "Storage: %s (%s)\n", config.Storage.Driver, config.Storage.Table)
	fmt.Fprintln(a.stdout)

	stream := pipeline.NewStream(svc.processor, pipeline.StreamConfig{
		BatchSize:     config.Ingest.BatchSize,
		FlushInterval: config.FlushInterval(),
		BufferSize:    config.Ingest.BufferSize,
	}, logger)
	stream.OnBatch(func(result model.InvocationResult) {
		logger.WithFields(logrus.Fields{
			"records_processed":  result.RecordsProcessed,
			"anomalies_detected": result.AnomaliesDetected,
			"critical_anomalies": result.CriticalAnomalies,
		}).Debug("Stream batch done")
	})

	handlers := api.NewHandlers(svc.processor, svc.store, svc.engine, config, svc.hub, logger)
	apiServer := api.NewServer(config.Application.APIPort, api.NewRouter(handlers), logger)
	exporter := alert.NewPrometheusExporter(config.Application.MetricsPort, svc.registry, logger)
	health := server.NewHealthServer(config.Application.GRPCPort, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stream.Run(ctx) })
	g.Go(func() error { return apiServer.Start(ctx) })
	g.Go(func() error { return exporter.Start(ctx) })
	g.Go(func() error { return health.Start(ctx) })

	if generate {
		gen := generator.New(generatorConfig(config, 0), logger)
		g.Go(func() error {
			_, err := gen.Run(ctx, stream)
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("LogGuard stopped")
	return nil
}
