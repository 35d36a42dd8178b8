package alert

import (
	"context"
	"errors"
	"strings"

	"logguard/internal/model"
)

// MultiNotifier fans out alerts to every configured notifier.
// If one notifier fails, the remaining notifiers still receive the alert.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Add registers another notifier.
func (m *MultiNotifier) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SendAlert delivers to every notifier that has a destination. Errors are
// collected but do not prevent delivery to the others.
func (m *MultiNotifier) SendAlert(ctx context.Context, alert model.Alert) error {
	var errs []error
	for _, n := range m.notifiers {
		if n.Destination() == "" {
			continue
		}
		if err := n.SendAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Destination lists the configured destinations, comma separated.
func (m *MultiNotifier) Destination() string {
	var dests []string
	for _, n := range m.notifiers {
		if d := n.Destination(); d != "" {
			dests = append(dests, d)
		}
	}
	return strings.Join(dests, ",")
}
