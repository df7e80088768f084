// Package sink implements the batching, deduplicating writer between a
// discovery queue and durable storage.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/metrics"
	"github.com/saveweb/googlrot/internal/queue"
	"github.com/saveweb/googlrot/internal/store"
)

const (
	defaultBatchSize = 100
	defaultMaxWait   = 10 * time.Second
)

// Sink drains a queue of url strings into a URLWriter in bulk batches.
type Sink struct {
	writer    store.URLWriter
	name      string
	batchSize int
	maxWait   time.Duration
	logger    *zap.Logger

	flushed int64
}

// New constructs a Sink. name labels log lines (typically the target table).
func New(writer store.URLWriter, name string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		writer:    writer,
		name:      name,
		batchSize: defaultBatchSize,
		maxWait:   defaultMaxWait,
		logger:    logger.With(zap.String("sink", name)),
	}
}

// Run consumes q until it is closed and drained, then flushes the remainder
// and returns nil. Items are buffered into a set, so one flush never writes
// the same url twice; cross-flush duplicates are left to the storage layer's
// unique key.
//
// The flush clock is only consulted when an item arrives: a trickle below
// the batch size can sit in the buffer until the next item shows up. That is
// the accepted latency/throughput trade-off, not a bug to fix with a timer.
//
// Any non-duplicate storage error is fatal and propagates, so the owning
// errgroup scope tears down the rest of the pipeline.
func (s *Sink) Run(ctx context.Context, q *queue.Queue[string]) error {
	s.logger.Info("sink started")
	buffer := make(map[string]struct{}, s.batchSize)
	lastFlush := time.Now()

	for {
		url, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				if ferr := s.flush(ctx, buffer); ferr != nil {
					return ferr
				}
				s.logger.Info("sink finished", zap.Int64("flushed_total", s.flushed))
				return nil
			}
			return fmt.Errorf("sink %s: %w", s.name, err)
		}

		buffer[url] = struct{}{}
		if len(buffer) >= s.batchSize || time.Since(lastFlush) > s.maxWait {
			if err := s.flush(ctx, buffer); err != nil {
				return err
			}
			buffer = make(map[string]struct{}, s.batchSize)
			lastFlush = time.Now()
		}
	}
}

func (s *Sink) flush(ctx context.Context, buffer map[string]struct{}) error {
	if len(buffer) == 0 {
		return nil
	}
	batch := make([]string, 0, len(buffer))
	for url := range buffer {
		batch = append(batch, url)
	}
	inserted, err := s.writer.BulkInsert(ctx, batch)
	if err != nil {
		return fmt.Errorf("sink %s flush: %w", s.name, err)
	}
	s.flushed += int64(len(batch))
	metrics.SinkFlush(s.name)
	s.logger.Info("flushed batch",
		zap.Int("batch", len(batch)),
		zap.Int64("inserted", inserted),
		zap.Int64("duplicates", int64(len(batch))-inserted),
	)
	return nil
}
