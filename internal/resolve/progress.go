package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/metrics"
	"github.com/saveweb/googlrot/internal/queue"
)

// progressReporter periodically logs throughput and ETA computed from queue
// depth and elapsed time. Purely observational.
type progressReporter struct {
	queue    *queue.Queue[string]
	total    int
	interval time.Duration
	logger   *zap.Logger
}

func newProgressReporter(q *queue.Queue[string], total int, interval time.Duration, logger *zap.Logger) *progressReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &progressReporter{queue: q, total: total, interval: interval, logger: logger}
}

// run reports until the context ends or done closes.
func (r *progressReporter) run(ctx context.Context, done <-chan struct{}) {
	start := time.Now()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case now := <-ticker.C:
			r.report(now.Sub(start))
		}
	}
}

func (r *progressReporter) report(elapsed time.Duration) {
	left := r.queue.Len()
	metrics.SetResolveQueueDepth(left)

	processed := r.total - left
	if elapsed <= 0 || processed <= 0 {
		r.logger.Info("progress", zap.Int("left", left), zap.Int("total", r.total))
		return
	}
	speed := float64(processed) / elapsed.Seconds()
	eta := time.Duration(float64(left) / speed * float64(time.Second))
	r.logger.Info("progress",
		zap.Int("left", left),
		zap.Int("total", r.total),
		zap.Float64("per_second", speed),
		zap.Duration("eta", eta),
	)
}
