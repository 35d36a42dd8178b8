package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"logguard/internal/alert"
	"logguard/internal/client"
	"logguard/internal/model"
	"logguard/internal/rules"
	"logguard/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Processor turns one batch of raw records into anomalies, stores them and
// hands the HIGH/CRITICAL ones to the dispatcher.
type Processor struct {
	engine     *rules.Engine
	sink       storage.Sink
	dispatcher *alert.Dispatcher
	metrics    *client.PipelineMetrics
	workers    int
	logger     *logrus.Logger

	// batches are processed one at a time
	batchMu sync.Mutex
}

type ProcessorOption func(*Processor)

func WithSink(sink storage.Sink) ProcessorOption {
	return func(p *Processor) { p.sink = sink }
}

// WithDispatcher enables alerting. Without it no alert is attempted.
func WithDispatcher(d *alert.Dispatcher) ProcessorOption {
	return func(p *Processor) { p.dispatcher = d }
}

func WithMetrics(m *client.PipelineMetrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithWorkers classifies records on n goroutines. Results keep input order.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewProcessor creates a new processor instance
func NewProcessor(engine *rules.Engine, logger *logrus.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		engine:  engine,
		workers: 1,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DecodeEnvelope extracts the encoded records from a stream-trigger batch.
// A record whose envelope cannot be decoded is kept as an empty record so the
// aggregator counts it and skips it.
func DecodeEnvelope(body []byte) ([][]byte, error) {
	var batch struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("invalid batch envelope: %w", err)
	}

	records := make([][]byte, 0, len(batch.Records))
	for _, raw := range batch.Records {
		var rec model.StreamRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			records = append(records, nil)
			continue
		}
		records = append(records, []byte(rec.Kinesis.Data))
	}
	return records, nil
}

// Process handles one batch end to end. It never fails as a whole: bad records,
// sink errors and alert errors are logged and counted.
func (p *Processor) Process(ctx context.Context, records [][]byte) model.InvocationResult {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	start := time.Now()
	result := p.Aggregate(records)
	p.metrics.ObserveBatch(result, time.Since(start))

	p.store(ctx, result.Anomalies)

	if critical := result.Critical(); len(critical) > 0 && p.dispatcher != nil {
		p.alert(ctx, critical)
	}

	summary := result.Result()
	p.logger.WithFields(logrus.Fields{
		"records_processed":  summary.RecordsProcessed,
		"records_skipped":    result.Skipped,
		"anomalies_detected": summary.AnomaliesDetected,
		"critical_anomalies": summary.CriticalAnomalies,
		"error_count":        result.ErrorCount,
		"failed_login_count": result.FailedLoginCount,
	}).Info("Batch processed")

	return summary
}

type classified struct {
	anomaly *model.Anomaly
	err     error
}

// Aggregate decodes and classifies every record, folding the results in input order.
func (p *Processor) Aggregate(records [][]byte) *model.BatchResult {
	outcomes := p.classify(records)

	result := &model.BatchResult{Processed: len(records)}
	for i, out := range outcomes {
		if out.err != nil {
			result.Skipped++
			p.logger.WithField("record_index", i).Warnf("Skipping record: %v", out.err)
			continue
		}
		if out.anomaly == nil {
			continue
		}

		result.Anomalies = append(result.Anomalies, *out.anomaly)
		switch out.anomaly.Type {
		case model.AnomalyErrorSpike:
			result.ErrorCount++
		case model.AnomalyFailedLogin:
			result.FailedLoginCount++
		}
	}
	return result
}

func (p *Processor) classify(records [][]byte) []classified {
	outcomes := make([]classified, len(records))

	classifyOne := func(i int) {
		event, err := model.DecodeRecord(records[i])
		if err != nil {
			outcomes[i] = classified{err: err}
			return
		}
		outcomes[i] = classified{anomaly: p.engine.Classify(event)}
	}

	if p.workers <= 1 || len(records) < 2 {
		for i := range records {
			classifyOne(i)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range records {
		g.Go(func() error {
			classifyOne(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Processor) store(ctx context.Context, anomalies []model.Anomaly) {
	if p.sink == nil {
		return
	}
	for _, a := range anomalies {
		err := p.sink.Put(ctx, a)
		p.metrics.ObserveSinkWrite(err)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"anomaly_id": a.AnomalyID,
				"type":       a.Type,
				"severity":   a.Severity,
			}).Errorf("Failed to store anomaly: %v", err)
		}
	}
}

func (p *Processor) alert(ctx context.Context, critical []model.Anomaly) {
	err := p.dispatcher.MaybeAlert(ctx, critical)
	switch {
	case err == nil:
		p.metrics.ObserveAlert("", nil)
	case errors.Is(err, alert.ErrNotConfigured):
		p.metrics.ObserveAlert("not_configured", err)
	default:
		p.metrics.ObserveAlert("delivery", err)
		p.logger.WithField("count", len(critical)).Errorf("Failed to send alert: %v", err)
	}
}
