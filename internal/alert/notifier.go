package alert

import (
	"context"
	"errors"

	"logguard/internal/model"
)

var (
	// ErrNotConfigured is returned when no notification destination is set up.
	ErrNotConfigured = errors.New("notification transport not configured")
	// ErrNoAnomalies is returned when the dispatcher is called with nothing to report.
	ErrNoAnomalies = errors.New("no anomalies to alert on")
)

// Notifier interface for alert notification
type Notifier interface {
	SendAlert(ctx context.Context, alert model.Alert) error
	// Destination identifies where alerts go. Empty means not configured.
	Destination() string
}
