package alert

import (
	"context"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

// LogAlertNotifier sends alerts to local logs
type LogAlertNotifier struct {
	logger *logrus.Logger
}

// NewLogAlertNotifier creates a new log alert notifier
func NewLogAlertNotifier(logger *logrus.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{
		logger: logger,
	}
}

// SendAlert implements Notifier interface - sends alert to logs
func (ln *LogAlertNotifier) SendAlert(_ context.Context, alert model.Alert) error {
	ln.logger.WithField("count", alert.Count).Warnf("ALERT %s", alert.Subject)
	ln.logger.Info(alert.Body)
	return nil
}

func (ln *LogAlertNotifier) Destination() string {
	return "log"
}
