package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"logguard/internal/client"
	"logguard/internal/pipeline"

	"github.com/spf13/cobra"
)

func newProcessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "process [FILE]",
		Short: "Process one stream-trigger batch from a file or stdin",
		Long: `Process one batch in the stream-trigger shape:

  {"Records":[{"kinesis":{"data":"<base64 JSON log event>"}}]}

Anomalies are written to the configured store and alerts go to the configured
channels. The invocation result is printed as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open batch file: %w", err)
				}
				defer f.Close()
				in = f
			}

			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read batch: %w", err)
			}

			records, err := pipeline.DecodeEnvelope(body)
			if err != nil {
				return err
			}

			svc, err := buildServices(a.config, a.logger)
			if err != nil {
				return err
			}
			defer svc.store.Close()

			result := svc.processor.Process(cmd.Context(), records)

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(client.IngestResponse{StatusCode: 200, Body: result})
		},
	}
}
