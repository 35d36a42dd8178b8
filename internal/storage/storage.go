package storage

import (
	"context"
	"errors"
	"fmt"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no anomaly has the requested id.
var ErrNotFound = errors.New("anomaly not found")

// DefaultTable is the anomaly table used when none is configured.
const DefaultTable = "LogGuardAnomalies"

// Sink persists anomalies keyed by anomaly_id.
type Sink interface {
	Put(ctx context.Context, anomaly model.Anomaly) error
}

// Reader queries stored anomalies.
type Reader interface {
	Get(ctx context.Context, id string) (*model.Anomaly, error)
	List(ctx context.Context, filter AnomalyFilter) ([]model.Anomaly, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	Reader
	Close() error
}

// AnomalyFilter narrows List results. Zero values match everything.
type AnomalyFilter struct {
	Limit    int
	Severity string
	Type     string
	Source   string
}

// Stats counts stored anomalies.
type Stats struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
}

// Config selects and configures a Store.
type Config struct {
	Driver       string
	DSN          string
	Table        string
	MaxAnomalies int
}

// Open builds the Store named by cfg.Driver.
func Open(cfg Config, logger *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.MaxAnomalies, logger), nil
	case "sqlite", "postgres":
		return NewSQLStore(cfg.Driver, cfg.DSN, cfg.Table, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newStats() *Stats {
	return &Stats{
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
