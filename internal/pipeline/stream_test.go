package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"logguard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFlushesOnBatchSizeAndShutdown(t *testing.T) {
	p := NewProcessor(newEngine(t), testLogger())
	s := NewStream(p, StreamConfig{BatchSize: 3, FlushInterval: time.Hour, BufferSize: 10}, testLogger())

	results := make(chan model.InvocationResult, 10)
	s.OnBatch(func(r model.InvocationResult) { results <- r })

	events := make([]model.LogEvent, 7)
	for i := range events {
		events[i] = model.LogEvent{Level: "ERROR", Source: "web-app", Message: "boom"}
	}
	require.NoError(t, s.Send(context.Background(), events))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			assert.Equal(t, 3, r.RecordsProcessed)
			assert.Equal(t, 3, r.AnomaliesDetected)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for batch")
		}
	}

	cancel()
	require.NoError(t, <-done)

	select {
	case r := <-results:
		assert.Equal(t, 1, r.RecordsProcessed)
	default:
		t.Fatal("remaining record was not flushed on shutdown")
	}

	assert.ErrorIs(t, s.Put(context.Background(), []byte("x")), ErrStreamClosed)
}

func TestStreamFlushesOnInterval(t *testing.T) {
	p := NewProcessor(newEngine(t), testLogger())
	s := NewStream(p, StreamConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, testLogger())

	results := make(chan model.InvocationResult, 10)
	s.OnBatch(func(r model.InvocationResult) { results <- r })

	require.NoError(t, s.Send(context.Background(), []model.LogEvent{
		{Level: "INFO", Message: "Cache hit"},
		{Level: "CRITICAL", Message: "Service crashed"},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	select {
	case r := <-results:
		assert.Equal(t, 2, r.RecordsProcessed)
		assert.Equal(t, 1, r.CriticalAnomalies)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for interval flush")
	}
}

// blockingSink holds the first write until released and records whether the
// context was live at that point.
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	errs    chan error
	once    sync.Once
}

func (s *blockingSink) Put(ctx context.Context, _ model.Anomaly) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	s.errs <- ctx.Err()
	return ctx.Err()
}

func TestStreamBatchSurvivesShutdown(t *testing.T) {
	sink := &blockingSink{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		errs:    make(chan error, 10),
	}
	p := NewProcessor(newEngine(t), testLogger(), WithSink(sink))
	s := NewStream(p, StreamConfig{BatchSize: 2, FlushInterval: time.Hour}, testLogger())

	require.NoError(t, s.Send(context.Background(), []model.LogEvent{
		{Level: "CRITICAL", Message: "Service crashed"},
		{Level: "ERROR", Message: "Out of memory"},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the sink write")
	}
	cancel()
	close(sink.release)
	require.NoError(t, <-done)

	require.Len(t, sink.errs, 2)
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-sink.errs)
	}
}
