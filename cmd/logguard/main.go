package main

import (
	"fmt"
	"io"
	"os"

	"logguard/internal/rules"
	"logguard/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type app struct {
	configFile string
	rulesFile  string
	config     *utils.LogGuardConfig
	logger     *logrus.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "logguard",
		Short:         "Rule-based log anomaly detection and alerting",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", utils.DefaultConfigPath, "Configuration file path (YAML)")
	root.PersistentFlags().StringVar(&a.rulesFile, "rules", "", "Rule configuration file (YAML or JSON), overrides the rules section")

	root.AddCommand(
		newServeCmd(a),
		newProcessCmd(a),
		newGenerateCmd(a),
		newTestAlertCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) loadConfig() error {
	config, err := utils.LoadConfig(a.configFile)
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to load YAML config %s: %v\n", a.configFile, err)
		fmt.Fprintln(a.stderr, "Using default configuration...")
		config = utils.GetDefaultConfig()
		config.ApplyEnv()
		if err := config.Validate(); err != nil {
			return err
		}
	}

	if a.rulesFile != "" {
		ruleConfigs, err := rules.LoadRules(a.rulesFile)
		if err != nil {
			return err
		}
		config.Rules = ruleConfigs
	}

	a.config = config
	a.logger = utils.NewLoggerFromConfig(config.Logging)
	return nil
}
