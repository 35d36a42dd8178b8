package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"logguard/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
    anomaly_id  TEXT PRIMARY KEY,
    timestamp   BIGINT NOT NULL,
    type        TEXT NOT NULL,
    severity    TEXT NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    log_level   TEXT NOT NULL DEFAULT '',
    details     TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_timestamp ON %[1]s(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_%[1]s_severity ON %[1]s(severity);
`

// SQLStore persists anomalies in a SQLite or PostgreSQL table.
type SQLStore struct {
	db     *sqlx.DB
	table  string
	logger *logrus.Logger
}

type anomalyRow struct {
	AnomalyID string `db:"anomaly_id"`
	Timestamp int64  `db:"timestamp"`
	Type      string `db:"type"`
	Severity  string `db:"severity"`
	Source    string `db:"source"`
	Message   string `db:"message"`
	LogLevel  string `db:"log_level"`
	Details   string `db:"details"`
}

// NewSQLStore connects to the database and creates the anomaly table if needed.
// driver is "sqlite" or "postgres".
func NewSQLStore(driver, dsn, table string, logger *logrus.Logger) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if driver == "sqlite" && dsn == "" {
		dsn = ":memory:"
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// :memory: databases are per-connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db, table: table, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, stmt := range strings.Split(fmt.Sprintf(schemaTemplate, s.table), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *SQLStore) Put(ctx context.Context, anomaly model.Anomaly) error {
	details := string(anomaly.Details)
	if details == "" {
		details = "{}"
	}

	query := s.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (anomaly_id, timestamp, type, severity, source, message, log_level, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table))

	_, err := s.db.ExecContext(ctx, query,
		anomaly.AnomalyID,
		anomaly.Timestamp,
		string(anomaly.Type),
		string(anomaly.Severity),
		anomaly.Source,
		anomaly.Message,
		anomaly.LogLevel,
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly %s: %w", anomaly.AnomalyID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*model.Anomaly, error) {
	var row anomalyRow
	query := s.db.Rebind(fmt.Sprintf(`SELECT * FROM %s WHERE anomaly_id = ?`, s.table))
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get anomaly %s: %w", id, err)
	}
	anomaly := row.toModel()
	return &anomaly, nil
}

func (s *SQLStore) List(ctx context.Context, filter AnomalyFilter) ([]model.Anomaly, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}

	query := fmt.Sprintf("SELECT * FROM %s", s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, anomaly_id LIMIT ?"
	args = append(args, normalizeLimit(filter.Limit))

	var rows []anomalyRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}

	anomalies := make([]model.Anomaly, 0, len(rows))
	for _, row := range rows {
		anomalies = append(anomalies, row.toModel())
	}
	return anomalies, nil
}

func (s *SQLStore) Stats(ctx context.Context) (*Stats, error) {
	var counts []struct {
		Type     string `db:"type"`
		Severity string `db:"severity"`
		Count    int    `db:"count"`
	}
	query := fmt.Sprintf(`SELECT type, severity, COUNT(*) AS count FROM %s GROUP BY type, severity`, s.table)
	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}

	stats := newStats()
	for _, c := range counts {
		stats.Total += c.Count
		stats.ByType[c.Type] += c.Count
		stats.BySeverity[c.Severity] += c.Count
	}
	return stats, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (r anomalyRow) toModel() model.Anomaly {
	return model.Anomaly{
		AnomalyID: r.AnomalyID,
		Timestamp: r.Timestamp,
		Type:      model.AnomalyType(r.Type),
		Severity:  model.Severity(r.Severity),
		Source:    r.Source,
		Message:   r.Message,
		LogLevel:  r.LogLevel,
		Details:   json.RawMessage(r.Details),
	}
}
