package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"logguard/internal/alert"
	"logguard/internal/client"
	"logguard/internal/model"
	"logguard/internal/rules"
	"logguard/internal/rules/builtin"
	"logguard/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newEngine(t *testing.T) *rules.Engine {
	t.Helper()
	var seq atomic.Int64
	engine := rules.NewEngine(testLogger(),
		rules.WithIDGenerator(func() string { return fmt.Sprintf("anomaly-%d", seq.Add(1)) }),
		rules.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	builtin.RegisterBuiltinRules(engine, nil, testLogger())
	return engine
}

func record(t *testing.T, level, source, message string) []byte {
	t.Helper()
	rec, err := model.EncodeRecord(&model.LogEvent{Level: level, Source: source, Message: message})
	require.NoError(t, err)
	return rec
}

type recordingNotifier struct {
	mu     sync.Mutex
	err    error
	alerts []model.Alert
}

func (r *recordingNotifier) SendAlert(_ context.Context, a model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingNotifier) Destination() string { return "recording" }

type flakySink struct {
	failOn int
	calls  int
	stored []string
}

func (s *flakySink) Put(_ context.Context, a model.Anomaly) error {
	s.calls++
	if s.calls == s.failOn {
		return errors.New("table unavailable")
	}
	s.stored = append(s.stored, a.AnomalyID)
	return nil
}

func types(anomalies []model.Anomaly) []model.AnomalyType {
	out := make([]model.AnomalyType, len(anomalies))
	for i, a := range anomalies {
		out[i] = a.Type
	}
	return out
}

func TestAggregateSkipsMalformedRecords(t *testing.T) {
	p := NewProcessor(newEngine(t), testLogger())

	records := [][]byte{
		record(t, "ERROR", "web-app", "NullPointerException in UserService"),
		[]byte("!!! not base64 !!!"),
		record(t, "info", "auth-service", "Authentication failed for user"),
		record(t, "CRITICAL", "payment-service", "Payment gateway unreachable"),
		[]byte(base64.StdEncoding.EncodeToString([]byte(`[1,2,3]`))),
		record(t, "WARNING", "database", "Database connection timeout"),
		record(t, "INFO", "web-app", "Cache hit"),
	}

	result := p.Aggregate(records)

	assert.Equal(t, 7, result.Processed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []model.AnomalyType{
		model.AnomalyErrorSpike,
		model.AnomalyFailedLogin,
		model.AnomalyCriticalError,
		model.AnomalyDatabaseIssue,
	}, types(result.Anomalies))
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.FailedLoginCount)
	assert.Equal(t, "INFO", result.Anomalies[1].LogLevel)

	summary := result.Result()
	assert.Equal(t, model.InvocationResult{RecordsProcessed: 7, AnomaliesDetected: 4, CriticalAnomalies: 3}, summary)
}

func TestProcessAlertsOncePerBatch(t *testing.T) {
	notifier := &recordingNotifier{}
	store := storage.NewMemoryStore(100, testLogger())
	p := NewProcessor(newEngine(t), testLogger(),
		WithSink(store),
		WithDispatcher(alert.NewDispatcher(notifier, testLogger())),
	)

	records := [][]byte{
		record(t, "ERROR", "web-app", "Out of memory"),
		record(t, "CRITICAL", "api-server", "Service crashed"),
		record(t, "INFO", "auth-service", "Failed login attempt"),
		record(t, "CRITICAL", "database", "Disk full"),
		record(t, "ERROR", "api-server", "Timeout"),
		record(t, "INFO", "auth-service", "authentication failed"),
		record(t, "CRITICAL", "payment-service", "Payment gateway unreachable"),
		record(t, "WARNING", "database", "database connection refused"),
		record(t, "INFO", "web-app", "Request processed"),
	}

	result := p.Process(context.Background(), records)

	assert.Equal(t, model.InvocationResult{RecordsProcessed: 9, AnomaliesDetected: 8, CriticalAnomalies: 6}, result)

	require.Len(t, notifier.alerts, 1)
	sent := notifier.alerts[0]
	assert.Equal(t, "LogGuard Alert - 6 Critical Issues", sent.Subject)
	assert.Equal(t, 5, strings.Count(sent.Body, "Type: "))
	assert.Contains(t, sent.Body, "...and 1 more")
	assert.Equal(t, model.AnomalyCriticalError, sent.Anomalies[0].Type)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Total)
}

func TestProcessWithoutCriticalDoesNotAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(newEngine(t), testLogger(), WithDispatcher(alert.NewDispatcher(notifier, testLogger())))

	result := p.Process(context.Background(), [][]byte{
		record(t, "ERROR", "web-app", "Out of memory"),
		record(t, "INFO", "web-app", "Cache hit"),
	})

	assert.Equal(t, 1, result.AnomaliesDetected)
	assert.Empty(t, notifier.alerts)
}

func TestSinkFailureDoesNotAbortBatch(t *testing.T) {
	metrics := client.NewPipelineMetrics(prometheus.NewRegistry())
	notifier := &recordingNotifier{}
	sink := &flakySink{failOn: 2}
	p := NewProcessor(newEngine(t), testLogger(),
		WithSink(sink),
		WithDispatcher(alert.NewDispatcher(notifier, testLogger())),
		WithMetrics(metrics),
	)

	result := p.Process(context.Background(), [][]byte{
		record(t, "CRITICAL", "a", "one"),
		record(t, "CRITICAL", "b", "two"),
		record(t, "CRITICAL", "c", "three"),
	})

	assert.Equal(t, 3, result.AnomaliesDetected)
	assert.Equal(t, 3, sink.calls)
	assert.Equal(t, []string{"anomaly-1", "anomaly-3"}, sink.stored)
	assert.Len(t, notifier.alerts, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SinkWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertsSent))
}

func TestAlertDeliveryFailureDoesNotAbortBatch(t *testing.T) {
	metrics := client.NewPipelineMetrics(prometheus.NewRegistry())
	notifier := &recordingNotifier{err: errors.New("topic unavailable")}
	store := storage.NewMemoryStore(10, testLogger())
	p := NewProcessor(newEngine(t), testLogger(),
		WithSink(store),
		WithDispatcher(alert.NewDispatcher(notifier, testLogger())),
		WithMetrics(metrics),
	)

	result := p.Process(context.Background(), [][]byte{
		record(t, "CRITICAL", "api-server", "Service crashed"),
		record(t, "ERROR", "web-app", "Out of memory"),
		record(t, "INFO", "auth-service", "Failed login attempt"),
	})

	assert.Equal(t, model.InvocationResult{RecordsProcessed: 3, AnomaliesDetected: 3, CriticalAnomalies: 2}, result)
	assert.Len(t, notifier.alerts, 1)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SinkWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertFailures.WithLabelValues("delivery")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AlertsSent))
}

func TestUnconfiguredTransportIsReported(t *testing.T) {
	metrics := client.NewPipelineMetrics(prometheus.NewRegistry())
	store := storage.NewMemoryStore(10, testLogger())
	p := NewProcessor(newEngine(t), testLogger(),
		WithSink(store),
		WithDispatcher(alert.NewDispatcher(nil, testLogger())),
		WithMetrics(metrics),
	)

	result := p.Process(context.Background(), [][]byte{record(t, "CRITICAL", "a", "down")})

	assert.Equal(t, 1, result.CriticalAnomalies)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertFailures.WithLabelValues("not_configured")))
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestParallelClassificationKeepsOrder(t *testing.T) {
	levels := []string{"ERROR", "INFO", "CRITICAL", "WARNING", "INFO"}
	messages := []string{"boom", "authentication failed", "crash", "database timeout", "ok"}

	var records [][]byte
	for i := 0; i < 200; i++ {
		k := i % len(levels)
		records = append(records, record(t, levels[k], fmt.Sprintf("svc-%d", i), messages[k]))
	}

	sequential := NewProcessor(newEngine(t), testLogger()).Aggregate(records)
	parallel := NewProcessor(newEngine(t), testLogger(), WithWorkers(8)).Aggregate(records)

	require.Len(t, parallel.Anomalies, len(sequential.Anomalies))
	for i := range sequential.Anomalies {
		assert.Equal(t, sequential.Anomalies[i].Source, parallel.Anomalies[i].Source)
		assert.Equal(t, sequential.Anomalies[i].Type, parallel.Anomalies[i].Type)
	}
	assert.Equal(t, sequential.ErrorCount, parallel.ErrorCount)
	assert.Equal(t, sequential.FailedLoginCount, parallel.FailedLoginCount)
}

func TestProcessRecordsMetrics(t *testing.T) {
	metrics := client.NewPipelineMetrics(prometheus.NewRegistry())
	p := NewProcessor(newEngine(t), testLogger(), WithMetrics(metrics))

	p.Process(context.Background(), [][]byte{
		record(t, "ERROR", "a", "x"),
		record(t, "INFO", "a", "failed login"),
		[]byte("%%%"),
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RecordsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FailedLoginCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Anomalies.WithLabelValues("FAILED_LOGIN", "HIGH")))
}

func TestDecodeEnvelope(t *testing.T) {
	batch, err := model.NewStreamBatch([]model.LogEvent{{Level: "INFO", Message: "a"}, {Level: "ERROR", Message: "b"}})
	require.NoError(t, err)

	body := fmt.Sprintf(`{"Records":[{"kinesis":{"data":%q}},{"kinesis":{"data":%q}}]}`,
		batch.Records[0].Kinesis.Data, batch.Records[1].Kinesis.Data)

	records, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)
	require.Len(t, records, 2)

	event, err := model.DecodeRecord(records[1])
	require.NoError(t, err)
	assert.Equal(t, "b", event.Message)

	_, err = DecodeEnvelope([]byte(`{"Records":`))
	assert.Error(t, err)
}

func TestDecodeEnvelopeKeepsUndecodableRecords(t *testing.T) {
	good := record(t, "CRITICAL", "payment-service", "Payment gateway unreachable")
	other := record(t, "INFO", "web-app", "Cache hit")
	body := fmt.Sprintf(`{"Records":[{"kinesis":{"data":%q}},{"kinesis":{"data":123}},{"kinesis":[1]},null,{"kinesis":{"data":%q}}]}`,
		good, other)

	records, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)
	require.Len(t, records, 5)

	result := NewProcessor(newEngine(t), testLogger()).Process(context.Background(), records)
	assert.Equal(t, model.InvocationResult{RecordsProcessed: 5, AnomaliesDetected: 1, CriticalAnomalies: 1}, result)

	aggregated := NewProcessor(newEngine(t), testLogger()).Aggregate(records)
	assert.Equal(t, 3, aggregated.Skipped)
}
