package alert

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxListed = 5
	timeLayout       = "2006-01-02 15:04:05"
)

// Dispatcher decides whether a batch's critical anomalies produce an alert
// and renders its content. Delivery is left to the Notifier.
type Dispatcher struct {
	notifier        Notifier
	maxListed       int
	location        *time.Location
	messageTemplate *template.Template
	now             func() time.Time
	logger          *logrus.Logger
}

type DispatcherOption func(*Dispatcher)

// WithMaxListed caps how many anomalies are written out in the body.
func WithMaxListed(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxListed = n
		}
	}
}

// WithLocation sets the zone detection times are rendered in. Default: UTC.
func WithLocation(loc *time.Location) DispatcherOption {
	return func(d *Dispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithMessageTemplate replaces the default body with a text/template.
// A template that fails to parse is ignored with a warning.
func WithMessageTemplate(text string) DispatcherOption {
	return func(d *Dispatcher) {
		if strings.TrimSpace(text) == "" {
			return
		}
		tmpl, err := template.New("alert_message").Funcs(d.funcMap()).Parse(text)
		if err != nil {
			d.logger.Warnf("Failed to parse alert message template: %v, using default format", err)
			return
		}
		d.messageTemplate = tmpl
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(notifier Notifier, logger *logrus.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier:  notifier,
		maxListed: DefaultMaxListed,
		location:  time.UTC,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaybeAlert sends exactly one alert for the given HIGH/CRITICAL anomalies.
// Missing transport configuration is reported as ErrNotConfigured and nothing is sent.
func (d *Dispatcher) MaybeAlert(ctx context.Context, anomalies []model.Anomaly) error {
	if len(anomalies) == 0 {
		return ErrNoAnomalies
	}

	if !d.Configured() {
		d.logger.Warn("Alert destination not configured, skipping alert")
		return ErrNotConfigured
	}

	alert := d.Render(anomalies)
	if err := d.notifier.SendAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to send alert to %s: %w", d.notifier.Destination(), err)
	}

	d.logger.WithField("count", alert.Count).Infof("Alert sent for %d anomalies", alert.Count)
	return nil
}

// Configured reports whether a notifier with a destination is attached.
func (d *Dispatcher) Configured() bool {
	return d.notifier != nil && d.notifier.Destination() != ""
}

// SendTest delivers a fixed message through the configured notifier.
func (d *Dispatcher) SendTest(ctx context.Context) error {
	if !d.Configured() {
		return ErrNotConfigured
	}
	return d.notifier.SendAlert(ctx, model.Alert{
		Subject:   "LogGuard Test Alert",
		Body:      "Test Message\n\nLogGuard alerting is working correctly!",
		Timestamp: d.now(),
	})
}

// Render builds the alert subject and body.
func (d *Dispatcher) Render(anomalies []model.Anomaly) model.Alert {
	alert := model.Alert{
		Subject:   fmt.Sprintf("LogGuard Alert - %d Critical Issues", len(anomalies)),
		Count:     len(anomalies),
		Anomalies: anomalies,
		Timestamp: d.now(),
	}

	if d.messageTemplate != nil {
		var buf bytes.Buffer
		if err := d.messageTemplate.Execute(&buf, d.templateData(alert)); err != nil {
			d.logger.Warnf("Failed to execute alert message template: %v, using default format", err)
		} else {
			alert.Body = buf.String()
			return alert
		}
	}

	alert.Body = d.formatBody(anomalies)
	return alert
}

type templateData struct {
	Subject   string
	Count     int
	Listed    []model.Anomaly
	Remaining int
	Anomalies []model.Anomaly
}

func (d *Dispatcher) templateData(alert model.Alert) templateData {
	listed := d.listed(alert.Anomalies)
	return templateData{
		Subject:   alert.Subject,
		Count:     alert.Count,
		Listed:    listed,
		Remaining: len(alert.Anomalies) - len(listed),
		Anomalies: alert.Anomalies,
	}
}

func (d *Dispatcher) funcMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": d.formatTime,
	}
}

func (d *Dispatcher) listed(anomalies []model.Anomaly) []model.Anomaly {
	if len(anomalies) > d.maxListed {
		return anomalies[:d.maxListed]
	}
	return anomalies
}

func (d *Dispatcher) formatTime(t time.Time) string {
	return t.In(d.location).Format(timeLayout)
}

func (d *Dispatcher) formatBody(anomalies []model.Anomaly) string {
	var b strings.Builder

	fmt.Fprintf(&b, "LogGuard Alert - %d Critical Anomalies Detected\n", len(anomalies))
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")

	listed := d.listed(anomalies)
	for _, a := range listed {
		fmt.Fprintf(&b, "Type: %s\n", a.Type)
		fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
		fmt.Fprintf(&b, "Source: %s\n", a.Source)
		fmt.Fprintf(&b, "Message: %s\n", a.Message)
		fmt.Fprintf(&b, "Time: %s\n", d.formatTime(a.DetectedAt()))
		b.WriteString("---\n")
	}

	if remaining := len(anomalies) - len(listed); remaining > 0 {
		fmt.Fprintf(&b, "\n...and %d more anomalies\n", remaining)
	}

	b.WriteString("\nCheck your LogGuard dashboard for full details")
	return b.String()
}
