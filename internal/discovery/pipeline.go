// Package discovery implements the concurrent discovery-and-ingestion
// pipeline: claim a partition prefix, search the source corpus, extract and
// normalize candidate links, and stream accepted/rejected results into two
// durable sinks.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saveweb/googlrot/internal/extract"
	"github.com/saveweb/googlrot/internal/metrics"
	"github.com/saveweb/googlrot/internal/queue"
	"github.com/saveweb/googlrot/internal/shortlink"
	"github.com/saveweb/googlrot/internal/sink"
	"github.com/saveweb/googlrot/internal/source"
	"github.com/saveweb/googlrot/internal/store"
)

// ErrNoWork is returned by RunOnce when the partition table is exhausted.
var ErrNoWork = store.ErrNoWork

// Pipeline wires the discovery flow. Queues and sinks live per invocation;
// the stores and provider are shared, long-lived collaborators.
type Pipeline struct {
	provider   source.Provider
	prefixes   store.PrefixClaimer
	links      store.URLWriter
	badLinks   store.URLWriter
	extractor  *extract.Extractor
	queueDepth int
	logger     *zap.Logger
}

// New constructs a Pipeline.
func New(
	provider source.Provider,
	prefixes store.PrefixClaimer,
	links store.URLWriter,
	badLinks store.URLWriter,
	queueDepth int,
	logger *zap.Logger,
) *Pipeline {
	if queueDepth <= 0 {
		queueDepth = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		provider:   provider,
		prefixes:   prefixes,
		links:      links,
		badLinks:   badLinks,
		extractor:  extract.New(),
		queueDepth: queueDepth,
		logger:     logger,
	}
}

// RunOnce claims one partition unit, scans its prefix, and marks the unit
// DONE after both sinks have fully drained. It returns ErrNoWork when no
// TODO units remain. A fatal sink error leaves the unit PROCESSING.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	prefix, err := p.prefixes.Claim(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoWork) {
			p.logger.Info("no more prefixes to process")
			return ErrNoWork
		}
		return fmt.Errorf("claim prefix: %w", err)
	}

	logger := p.logger.With(
		zap.String("prefix", prefix),
		zap.String("run_id", uuid.NewString()),
	)
	logger.Info("processing prefix")

	query := fmt.Sprintf("%s%s AND NOT is:fork", shortlink.Marker, prefix)
	if err := p.run(ctx, query, logger); err != nil {
		// The unit stays PROCESSING; operators reset stuck units by hand.
		return fmt.Errorf("prefix %s: %w", prefix, err)
	}

	if err := p.prefixes.Complete(ctx, prefix); err != nil {
		return fmt.Errorf("mark prefix %s done: %w", prefix, err)
	}
	logger.Info("finished prefix")
	return nil
}

// RunQuery scans an arbitrary provider query without touching the partition
// table. Used by the repository sweep, where queries are seeded per
// character instead of per claimed prefix.
func (p *Pipeline) RunQuery(ctx context.Context, query string) error {
	logger := p.logger.With(
		zap.String("query", query),
		zap.String("run_id", uuid.NewString()),
	)
	return p.run(ctx, query, logger)
}

func (p *Pipeline) run(ctx context.Context, query string, logger *zap.Logger) error {
	accepted := queue.New[string](p.queueDepth)
	rejected := queue.New[string](p.queueDepth)

	acceptedSink := sink.New(p.links, "links", logger)
	rejectedSink := sink.New(p.badLinks, "bad_links", logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return acceptedSink.Run(ctx, accepted) })
	g.Go(func() error { return rejectedSink.Run(ctx, rejected) })
	g.Go(func() error {
		// Closing both queues is the end-of-data signal; the sinks flush
		// their remainders and exit, which completes the group. Close must
		// happen on the error path too or the sinks never return.
		defer accepted.Close()
		defer rejected.Close()
		return p.produce(ctx, query, accepted, rejected, logger)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

// produce iterates the provider's result stream and routes every candidate
// through the normalizer into one of the two queues. Enqueue blocks when a
// queue is full: a slow sink throttles discovery, it never drops work.
func (p *Pipeline) produce(
	ctx context.Context,
	query string,
	accepted, rejected *queue.Queue[string],
	logger *zap.Logger,
) error {
	var okCount, badCount int
	var routeErr error

	err := p.provider.Search(ctx, query, func(blob source.Blob) bool {
		logger.Debug("processing blob", zap.String("provenance", blob.Provenance))
		metrics.BlobScanned("ok")

		for _, candidate := range p.extractor.Candidates(blob.Content) {
			link, nerr := shortlink.Normalize(candidate)
			if nerr != nil {
				logger.Debug("rejected candidate",
					zap.String("candidate", candidate), zap.Error(nerr))
				if routeErr = rejected.Enqueue(ctx, candidate); routeErr != nil {
					return false
				}
				metrics.LinkDiscovered("rejected")
				badCount++
				continue
			}
			logger.Debug("accepted candidate",
				zap.String("candidate", candidate), zap.String("link", link.String()))
			if routeErr = accepted.Enqueue(ctx, link.String()); routeErr != nil {
				return false
			}
			metrics.LinkDiscovered("accepted")
			okCount++
		}
		return true
	})

	logger.Info("scan finished", zap.Int("accepted", okCount), zap.Int("rejected", badCount))
	if routeErr != nil {
		return fmt.Errorf("route candidate: %w", routeErr)
	}
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	return nil
}
