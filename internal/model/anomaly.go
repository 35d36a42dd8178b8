package model

import (
	"encoding/json"
	"time"
)

// AnomalyType identifies which detection rule produced an anomaly
type AnomalyType string

const (
	AnomalyErrorSpike    AnomalyType = "ERROR_SPIKE"
	AnomalyFailedLogin   AnomalyType = "FAILED_LOGIN"
	AnomalyCriticalError AnomalyType = "CRITICAL_ERROR"
	AnomalyDatabaseIssue AnomalyType = "DATABASE_ISSUE"
)

// Severity is the ordinal tag attached to an anomaly
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severity returns the fixed severity for the anomaly type.
func (t AnomalyType) Severity() Severity {
	switch t {
	case AnomalyErrorSpike:
		return SeverityMedium
	case AnomalyFailedLogin, AnomalyDatabaseIssue:
		return SeverityHigh
	case AnomalyCriticalError:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// AlertEligible reports whether anomalies of this severity trigger an alert.
func (s Severity) AlertEligible() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Anomaly is a classified record derived from a single LogEvent. It is never mutated after creation.
type Anomaly struct {
	AnomalyID string          `json:"anomaly_id"`
	Timestamp int64           `json:"timestamp"`
	Type      AnomalyType     `json:"type"`
	Severity  Severity        `json:"severity"`
	Source    string          `json:"source"`
	Message   string          `json:"message"`
	LogLevel  string          `json:"log_level"`
	Details   json.RawMessage `json:"details"`
}

// NewAnomaly fills the shared anomaly fields for the given type from the originating event.
// level is the normalized (upper-case) log level.
func NewAnomaly(id string, detectedAt time.Time, anomalyType AnomalyType, level string, event *LogEvent) Anomaly {
	source := event.Source
	if source == "" {
		source = "unknown"
	}
	return Anomaly{
		AnomalyID: id,
		Timestamp: detectedAt.Unix(),
		Type:      anomalyType,
		Severity:  anomalyType.Severity(),
		Source:    source,
		Message:   event.Message,
		LogLevel:  level,
		Details:   event.Details(),
	}
}

// DetectedAt returns the detection time.
func (a Anomaly) DetectedAt() time.Time {
	return time.Unix(a.Timestamp, 0)
}

// BatchResult is the outcome of aggregating one batch of records.
type BatchResult struct {
	Anomalies        []Anomaly
	Processed        int
	Skipped          int
	ErrorCount       int
	FailedLoginCount int
}

// Critical returns the HIGH and CRITICAL anomalies in detection order.
func (r *BatchResult) Critical() []Anomaly {
	var critical []Anomaly
	for _, a := range r.Anomalies {
		if a.Severity.AlertEligible() {
			critical = append(critical, a)
		}
	}
	return critical
}

// Result summarizes the batch for the caller that triggered it.
func (r *BatchResult) Result() InvocationResult {
	return InvocationResult{
		RecordsProcessed:  r.Processed,
		AnomaliesDetected: len(r.Anomalies),
		CriticalAnomalies: len(r.Critical()),
	}
}

// InvocationResult is returned to whatever triggered a batch
type InvocationResult struct {
	RecordsProcessed  int `json:"records_processed"`
	AnomaliesDetected int `json:"anomalies_detected"`
	CriticalAnomalies int `json:"critical_anomalies"`
}

// Alert is the rendered notification for one batch
type Alert struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Count     int       `json:"count"`
	Anomalies []Anomaly `json:"anomalies"`
	Timestamp time.Time `json:"timestamp"`
}
