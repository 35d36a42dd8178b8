package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or write it to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "" {
				if err := a.config.SaveConfig(output); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Configuration written to %s\n", output)
				return nil
			}

			data, err := yaml.Marshal(a.config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the configuration to this file")
	return cmd
}
