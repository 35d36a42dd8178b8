package rules

import (
	"strings"
	"sync"
	"time"

	"logguard/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Input is the normalized view of a LogEvent that rules match against.
type Input struct {
	Event   *model.LogEvent
	Level   string // upper-cased
	Message string // lower-cased
}

// RuleInterface is a single detection rule. A rule maps to exactly one anomaly type.
type RuleInterface interface {
	Name() string
	Description() string
	Type() model.AnomalyType
	IsEnabled() bool
	Match(in Input) bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the anomaly id source.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithClock replaces the detection time source.
func WithClock(f func() time.Time) Option {
	return func(e *Engine) { e.now = f }
}

// Engine evaluates rules in registration order. The first matching rule wins.
type Engine struct {
	rules  []RuleInterface
	newID  func() string
	now    func() time.Time
	logger *logrus.Logger
	mu     sync.RWMutex
}

func NewEngine(logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		rules:  make([]RuleInterface, 0),
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RegisterRule(rule RuleInterface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	e.logger.Infof("Registered rule: %s (%s/%s)", rule.Name(), rule.Type(), rule.Type().Severity())
}

// Rules returns the registered rules in evaluation order.
func (e *Engine) Rules() []RuleInterface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rules := make([]RuleInterface, len(e.rules))
	copy(rules, e.rules)
	return rules
}

// Classify returns the anomaly for the first enabled rule that matches, or nil for a benign event.
func (e *Engine) Classify(event *model.LogEvent) *model.Anomaly {
	if event == nil {
		return nil
	}

	in := Input{
		Event:   event,
		Level:   strings.ToUpper(event.Level),
		Message: strings.ToLower(event.Message),
	}

	for _, rule := range e.Rules() {
		if !rule.IsEnabled() || !rule.Match(in) {
			continue
		}
		anomaly := model.NewAnomaly(e.newID(), e.now(), rule.Type(), in.Level, event)
		e.logger.WithFields(logrus.Fields{
			"rule":     rule.Name(),
			"type":     anomaly.Type,
			"severity": anomaly.Severity,
			"source":   anomaly.Source,
		}).Debug("Anomaly detected")
		return &anomaly
	}

	return nil
}

// Describe lists the registered rules with their evaluation priority.
func (e *Engine) Describe() []model.RuleInfo {
	rules := e.Rules()
	infos := make([]model.RuleInfo, 0, len(rules))
	for i, rule := range rules {
		infos = append(infos, model.RuleInfo{
			Name:        rule.Name(),
			Type:        rule.Type(),
			Severity:    rule.Type().Severity(),
			Enabled:     rule.IsEnabled(),
			Priority:    i + 1,
			Description: rule.Description(),
		})
	}
	return infos
}
