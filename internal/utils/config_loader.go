package utils

import (
	"fmt"
	"os"
	"time"

	"logguard/internal/model"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "configs/logguard.yaml"

// Environment variables that override values from the config file.
const (
	EnvAnomaliesTable   = "ANOMALIES_TABLE"
	EnvAlertWebhookURL  = "ALERT_WEBHOOK_URL"
	EnvTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "TELEGRAM_CHAT_ID"
	EnvStorageDSN       = "STORAGE_DSN"
)

func LoadConfig(filename string) (*LogGuardConfig, error) {
	if filename == "" {
		filename = DefaultConfigPath
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config LogGuardConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filename, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// ApplyEnv overrides table, DSN and transport secrets from the environment.
func (c *LogGuardConfig) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvAnomaliesTable); ok && v != "" {
		c.Storage.Table = v
	}
	if v, ok := os.LookupEnv(EnvStorageDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := os.LookupEnv(EnvAlertWebhookURL); ok && v != "" {
		c.Alerting.Webhook.URL = v
		c.Alerting.Channels.Webhook = true
	}
	if v, ok := os.LookupEnv(EnvTelegramBotToken); ok && v != "" {
		c.Alerting.Telegram.BotToken = v
	}
	if v, ok := os.LookupEnv(EnvTelegramChatID); ok && v != "" {
		c.Alerting.Telegram.ChatID = v
	}
}

func (c *LogGuardConfig) Validate() error {
	if c.Application.APIPort == "" {
		c.Application.APIPort = "5001"
	}
	if c.Application.MetricsPort == "" {
		c.Application.MetricsPort = "8080"
	}
	if c.Application.GRPCPort == "" {
		c.Application.GRPCPort = "9090"
	}

	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 100
	}
	if c.Ingest.FlushIntervalMS <= 0 {
		c.Ingest.FlushIntervalMS = 1000
	}
	if c.Ingest.BufferSize <= 0 {
		c.Ingest.BufferSize = 1000
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 1
	}

	if c.Detection.ErrorThreshold <= 0 {
		c.Detection.ErrorThreshold = 5
	}
	if c.Detection.FailedLoginThreshold <= 0 {
		c.Detection.FailedLoginThreshold = 3
	}

	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = "memory"
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("storage dsn cannot be empty for driver %s", c.Storage.Driver)
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "LogGuardAnomalies"
	}
	if c.Storage.MaxAnomalies <= 0 {
		c.Storage.MaxAnomalies = 10000
	}

	if c.Alerting.MaxListed <= 0 {
		c.Alerting.MaxListed = 5
	}
	if c.Alerting.TimeZone == "" {
		c.Alerting.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(c.Alerting.TimeZone); err != nil {
		return fmt.Errorf("invalid alerting time_zone %q: %w", c.Alerting.TimeZone, err)
	}
	if c.Alerting.Webhook.TimeoutSeconds <= 0 {
		c.Alerting.Webhook.TimeoutSeconds = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Generator.RatePerSecond <= 0 {
		c.Generator.RatePerSecond = 10
	}
	if c.Generator.AnomalyEvery <= 0 {
		c.Generator.AnomalyEvery = 5
	}

	return nil
}

// Location returns the zone alert times are rendered in.
func (c *LogGuardConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Alerting.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *LogGuardConfig) FlushInterval() time.Duration {
	return time.Duration(c.Ingest.FlushIntervalMS) * time.Millisecond
}

func (c *LogGuardConfig) GetRuleConfigByName(name string) (*model.Rule, bool) {
	for i := range c.Rules {
		if c.Rules[i].Name == name {
			return &c.Rules[i], true
		}
	}
	return nil, false
}

// IsRuleEnabled treats rules missing from the config as enabled.
func (c *LogGuardConfig) IsRuleEnabled(name string) bool {
	rule, exists := c.GetRuleConfigByName(name)
	return !exists || rule.Enabled
}

// SaveConfig writes the configuration as YAML.
func (c *LogGuardConfig) SaveConfig(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
