package utils

import (
	"logguard/internal/model"
)

// LogGuardConfig is the top-level YAML configuration.
type LogGuardConfig struct {
	Application ApplicationYAMLConfig `yaml:"application"`
	Ingest      IngestYAMLConfig      `yaml:"ingest"`
	Detection   DetectionYAMLConfig   `yaml:"detection"`
	Rules       []model.Rule          `yaml:"rules"`
	Storage     StorageYAMLConfig     `yaml:"storage"`
	Alerting    AlertingYAMLConfig    `yaml:"alerting"`
	Logging     LoggingYAMLConfig     `yaml:"logging"`
	Generator   GeneratorYAMLConfig   `yaml:"generator"`
}

type ApplicationYAMLConfig struct {
	APIPort     string `yaml:"api_port"`
	MetricsPort string `yaml:"metrics_port"`
	GRPCPort    string `yaml:"grpc_port"`
}

type IngestYAMLConfig struct {
	BatchSize       int `yaml:"batch_size"`
	FlushIntervalMS int `yaml:"flush_interval_ms"`
	BufferSize      int `yaml:"buffer_size"`
	Workers         int `yaml:"workers"`
}

// DetectionYAMLConfig holds thresholds reserved for rate-based rules.
// No current rule reads them.
type DetectionYAMLConfig struct {
	ErrorThreshold       int `yaml:"error_threshold" json:"error_threshold"`
	FailedLoginThreshold int `yaml:"failed_login_threshold" json:"failed_login_threshold"`
}

type StorageYAMLConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	MaxAnomalies int    `yaml:"max_anomalies"`
}

type AlertingYAMLConfig struct {
	Enabled         bool               `yaml:"enabled"`
	MaxListed       int                `yaml:"max_listed"`
	TimeZone        string             `yaml:"time_zone"`
	MessageTemplate string             `yaml:"message_template,omitempty"`
	Channels        AlertChannelsYAML  `yaml:"channels"`
	Telegram        TelegramYAMLConfig `yaml:"telegram"`
	Webhook         WebhookYAMLConfig  `yaml:"webhook"`
}

type AlertChannelsYAML struct {
	Log       bool `yaml:"log"`
	Telegram  bool `yaml:"telegram"`
	Webhook   bool `yaml:"webhook"`
	WebSocket bool `yaml:"websocket"`
}

type TelegramYAMLConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChatID    string `yaml:"chat_id"`
	ParseMode string `yaml:"parse_mode"`
	APIURL    string `yaml:"api_url,omitempty"`
}

type WebhookYAMLConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

type LoggingYAMLConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type GeneratorYAMLConfig struct {
	RatePerSecond    float64 `yaml:"rate_per_second"`
	Count            int     `yaml:"count"`
	IncludeAnomalies bool    `yaml:"include_anomalies"`
	AnomalyEvery     int     `yaml:"anomaly_every"`
	TargetURL        string  `yaml:"target_url"`
	Seed             int64   `yaml:"seed"`
}

// GetDefaultConfig returns a default LogGuardConfig
func GetDefaultConfig() *LogGuardConfig {
	return &LogGuardConfig{
		Application: ApplicationYAMLConfig{
			APIPort:     "5001",
			MetricsPort: "8080",
			GRPCPort:    "9090",
		},
		Ingest: IngestYAMLConfig{
			BatchSize:       100,
			FlushIntervalMS: 1000,
			BufferSize:      1000,
			Workers:         1,
		},
		Detection: DetectionYAMLConfig{
			ErrorThreshold:       5,
			FailedLoginThreshold: 3,
		},
		Rules: []model.Rule{
			{Name: "error_level", Enabled: true},
			{Name: "failed_login", Enabled: true},
			{Name: "critical_level", Enabled: true},
			{Name: "database_issue", Enabled: true},
		},
		Storage: StorageYAMLConfig{
			Driver:       "memory",
			Table:        "LogGuardAnomalies",
			MaxAnomalies: 10000,
		},
		Alerting: AlertingYAMLConfig{
			Enabled:   true,
			MaxListed: 5,
			TimeZone:  "UTC",
			Channels: AlertChannelsYAML{
				Log:       true,
				WebSocket: true,
			},
			Webhook: WebhookYAMLConfig{
				TimeoutSeconds: 10,
			},
		},
		Logging: LoggingYAMLConfig{
			Level:      "INFO",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Generator: GeneratorYAMLConfig{
			RatePerSecond:    10,
			Count:            100,
			IncludeAnomalies: true,
			AnomalyEvery:     5,
			TargetURL:        "http://localhost:5001",
		},
	}
}
