package pipeline

import (
	"context"
	"errors"
	"time"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

// ErrStreamClosed is returned by Put once the stream has stopped.
var ErrStreamClosed = errors.New("stream closed")

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	defaultBufferSize    = 1000
)

type StreamConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// Stream buffers encoded records and hands them to the Processor in batches,
// either when BatchSize records are waiting or FlushInterval has elapsed.
type Stream struct {
	records       chan []byte
	done          chan struct{}
	processor     *Processor
	batchSize     int
	flushInterval time.Duration
	onBatch       func(model.InvocationResult)
	logger        *logrus.Logger
}

func NewStream(processor *Processor, cfg StreamConfig, logger *logrus.Logger) *Stream {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &Stream{
		records:       make(chan []byte, cfg.BufferSize),
		done:          make(chan struct{}),
		processor:     processor,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger,
	}
}

// OnBatch registers a callback invoked with each batch result. Must be called before Run.
func (s *Stream) OnBatch(f func(model.InvocationResult)) {
	s.onBatch = f
}

// Put enqueues one encoded record, blocking while the buffer is full.
func (s *Stream) Put(ctx context.Context, record []byte) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	select {
	case s.records <- record:
		return nil
	case <-s.done:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send encodes and enqueues events in order.
func (s *Stream) Send(ctx context.Context, events []model.LogEvent) error {
	for i := range events {
		record, err := model.EncodeRecord(&events[i])
		if err != nil {
			return err
		}
		if err := s.Put(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Run batches records until ctx is cancelled, then flushes what is left.
// Batches run on a context that shutdown does not cancel, so a batch that has
// started is always stored and alerted in full.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.done)

	s.logger.Infof("Stream started (batch_size=%d, flush_interval=%s)", s.batchSize, s.flushInterval)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batchCtx := context.WithoutCancel(ctx)
	batch := make([][]byte, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		result := s.processor.Process(batchCtx, batch)
		if s.onBatch != nil {
			s.onBatch(result)
		}
		batch = make([][]byte, 0, s.batchSize)
	}

	for {
		select {
		case record := <-s.records:
			batch = append(batch, record)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case record := <-s.records:
					batch = append(batch, record)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					s.logger.Info("Stream stopped")
					return nil
				}
			}
		}
	}
}
