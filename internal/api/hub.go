package api

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

// AlertSubscriber is one live WebSocket listener.
type AlertSubscriber struct {
	ID       string
	Channel  chan AlertMessage
	Filter   AlertFilter
	LastSeen time.Time
}

// AlertFilter keeps alerts containing at least one matching anomaly.
type AlertFilter struct {
	Severity string
	Type     string
	Source   string
}

// AlertMessage is the frame pushed to WebSocket clients.
type AlertMessage struct {
	Type      string          `json:"type"`
	Subject   string          `json:"subject"`
	Body      string          `json:"body"`
	Count     int             `json:"count"`
	Anomalies []model.Anomaly `json:"anomalies"`
	Timestamp time.Time       `json:"timestamp"`
}

// AlertHub broadcasts dispatched alerts to connected clients. It is a Notifier.
type AlertHub struct {
	mu     sync.RWMutex
	subs   map[*AlertSubscriber]bool
	nextID atomic.Int64
	logger *logrus.Logger
}

func NewAlertHub(logger *logrus.Logger) *AlertHub {
	return &AlertHub{
		subs:   make(map[*AlertSubscriber]bool),
		logger: logger,
	}
}

func (h *AlertHub) Subscribe(filter AlertFilter) *AlertSubscriber {
	sub := &AlertSubscriber{
		ID:       strconv.FormatInt(h.nextID.Add(1), 10),
		Channel:  make(chan AlertMessage, 100),
		Filter:   filter,
		LastSeen: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = true
	return sub
}

func (h *AlertHub) Unsubscribe(sub *AlertSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub] {
		delete(h.subs, sub)
		close(sub.Channel)
	}
}

// Subscribers returns the number of connected listeners.
func (h *AlertHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// SendAlert pushes the alert to every matching subscriber. Slow subscribers miss it.
func (h *AlertHub) SendAlert(_ context.Context, alert model.Alert) error {
	msg := AlertMessage{
		Type:      "alert",
		Subject:   alert.Subject,
		Body:      alert.Body,
		Count:     alert.Count,
		Anomalies: alert.Anomalies,
		Timestamp: alert.Timestamp,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if !sub.Filter.matches(alert.Anomalies) {
			continue
		}
		select {
		case sub.Channel <- msg:
			sub.LastSeen = time.Now()
		default:
			h.logger.Debugf("Alert subscriber %s is full, dropping alert", sub.ID)
		}
	}
	return nil
}

func (h *AlertHub) Destination() string {
	return "websocket"
}

func (f AlertFilter) matches(anomalies []model.Anomaly) bool {
	if f.Severity == "" && f.Type == "" && f.Source == "" {
		return true
	}
	for _, a := range anomalies {
		if f.Severity != "" && string(a.Severity) != f.Severity {
			continue
		}
		if f.Type != "" && string(a.Type) != f.Type {
			continue
		}
		if f.Source != "" && a.Source != f.Source {
			continue
		}
		return true
	}
	return false
}
