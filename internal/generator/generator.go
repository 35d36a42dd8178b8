package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"logguard/internal/client"
	"logguard/internal/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var Sources = []string{"web-app", "api-server", "database", "auth-service", "payment-service"}

var NormalMessages = []string{
	"User logged in successfully",
	"API request processed",
	"Database query executed",
	"Cache hit",
	"File uploaded successfully",
}

var ErrorMessages = []string{
	"Database connection timeout",
	"Failed to process payment",
	"API rate limit exceeded",
	"File not found",
	"Memory allocation failed",
}

var CriticalMessages = []string{
	"Database connection pool exhausted",
	"Out of memory - service crashing",
	"Failed login attempt detected",
	"Authentication failed - potential breach",
}

var normalLevels = []string{"INFO", "INFO", "INFO", "WARNING"}

// Target receives generated events.
type Target interface {
	Send(ctx context.Context, events []model.LogEvent) error
}

type Config struct {
	RatePerSecond    float64
	Count            int // 0 means run until cancelled
	IncludeAnomalies bool
	AnomalyEvery     int
	Seed             int64 // 0 picks a random seed
}

type Result struct {
	LogsSent int `json:"logs_sent"`
	Failed   int `json:"failed"`
}

// Generator produces synthetic log events, injecting an anomaly on every
// AnomalyEvery-th event.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	limiter *rate.Limiter
	now     func() time.Time
	logger  *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) *Generator {
	if cfg.AnomalyEvery <= 0 {
		cfg.AnomalyEvery = 5
	}
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		logger:  logger,
	}
}

// Event builds the i-th event of a run.
func (g *Generator) Event(i int) model.LogEvent {
	event := model.LogEvent{
		Timestamp: g.now().UTC().Format(time.RFC3339),
		Source:    pick(g.rng, Sources),
		UserID:    fmt.Sprintf("user_%d", 1000+g.rng.IntN(9000)),
		RequestID: fmt.Sprintf("req_%d", 100000+g.rng.IntN(900000)),
	}

	switch {
	case !(g.cfg.IncludeAnomalies && i%g.cfg.AnomalyEvery == 0):
		event.Level = pick(g.rng, normalLevels)
		event.Message = pick(g.rng, NormalMessages)
	case g.rng.Float64() < 0.5:
		event.Level = "ERROR"
		event.Message = pick(g.rng, ErrorMessages)
	default:
		event.Level = "CRITICAL"
		event.Message = pick(g.rng, CriticalMessages)
	}

	return event
}

// Run sends events to target at the configured rate. Send failures are
// logged and counted; the run continues.
func (g *Generator) Run(ctx context.Context, target Target) (Result, error) {
	var result Result

	for i := 0; g.cfg.Count == 0 || i < g.cfg.Count; i++ {
		if err := g.limiter.Wait(ctx); err != nil {
			if g.cfg.Count == 0 {
				break
			}
			return result, err
		}

		if err := target.Send(ctx, []model.LogEvent{g.Event(i)}); err != nil {
			if ctx.Err() != nil && g.cfg.Count == 0 {
				break
			}
			result.Failed++
			g.logger.Warnf("Failed to send log: %v", err)
			continue
		}
		result.LogsSent++
	}

	g.logger.WithField("logs_sent", result.LogsSent).Infof("Sent %d logs", result.LogsSent)
	return result, nil
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

// HTTPTarget sends events to a remote ingest endpoint.
type HTTPTarget struct {
	client *client.IngestClient
	logger *logrus.Logger
}

func NewHTTPTarget(c *client.IngestClient, logger *logrus.Logger) *HTTPTarget {
	return &HTTPTarget{client: c, logger: logger}
}

func (t *HTTPTarget) Send(ctx context.Context, events []model.LogEvent) error {
	result, err := t.client.Send(ctx, events)
	if err != nil {
		return err
	}
	t.logger.WithFields(logrus.Fields{
		"anomalies_detected": result.AnomaliesDetected,
		"critical_anomalies": result.CriticalAnomalies,
	}).Debug("Batch ingested")
	return nil
}
