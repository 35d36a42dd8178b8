package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logguard/internal/client"
	"logguard/internal/generator"
	"logguard/internal/utils"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		target      string
		healthAddr  string
		count       int
		rate        float64
		noAnomalies bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Send synthetic log events to a running LogGuard server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			config := a.config
			if target == "" {
				target = config.Generator.TargetURL
			}
			if rate > 0 {
				config.Generator.RatePerSecond = rate
			}
			if noAnomalies {
				config.Generator.IncludeAnomalies = false
			}

			ingest := client.NewIngestClient(target, healthAddr, 30*time.Second)
			if healthAddr != "" {
				if err := ingest.TestConnection(ctx); err != nil {
					a.logger.Warnf("Connection test failed: %v", err)
				}
			}

			gen := generator.New(generatorConfig(config, count), a.logger)
			result, err := gen.Run(ctx, generator.NewHTTPTarget(ingest, a.logger))
			if err != nil {
				return err
			}
			return json.NewEncoder(a.stdout).Encode(result)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Base URL of the LogGuard API (default from config)")
	cmd.Flags().StringVar(&healthAddr, "health", "", "gRPC health address to check before sending (host:port)")
	cmd.Flags().IntVar(&count, "count", -1, "Number of events to send, 0 for unlimited (default from config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Events per second (default from config)")
	cmd.Flags().BoolVar(&noAnomalies, "no-anomalies", false, "Only send normal events")
	return cmd
}

// generatorConfig maps the YAML section. count < 0 keeps the configured count.
func generatorConfig(config *utils.LogGuardConfig, count int) generator.Config {
	if count < 0 {
		count = config.Generator.Count
	}
	return generator.Config{
		RatePerSecond:    config.Generator.RatePerSecond,
		Count:            count,
		IncludeAnomalies: config.Generator.IncludeAnomalies,
		AnomalyEvery:     config.Generator.AnomalyEvery,
		Seed:             config.Generator.Seed,
	}
}
