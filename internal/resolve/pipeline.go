package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saveweb/googlrot/internal/metrics"
	"github.com/saveweb/googlrot/internal/queue"
	"github.com/saveweb/googlrot/internal/shortlink"
)

// maxBodyBytes bounds how much of a probe response body is read. The body
// is only inspected for the blocked marker, never stored.
const maxBodyBytes = 64 * 1024

// Config controls the resolution pipeline.
type Config struct {
	Workers          int
	Timeout          time.Duration
	UserAgent        string
	RateLimitPause   time.Duration
	ProgressInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 6 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "savethewebproject/googlrot (+github.com/saveweb)"
	}
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = 3 * time.Second
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = time.Second
	}
}

// Pipeline resolves discovered links against the live service.
type Pipeline struct {
	checkpoint *Checkpoint
	client     *http.Client
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pipeline. The HTTP client never follows redirects: the
// Location header is the payload being archived.
func New(checkpoint *Checkpoint, cfg Config, logger *zap.Logger) *Pipeline {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		checkpoint: checkpoint,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run resolves every url in urls that has no checkpoint outcome yet. It
// returns once the queue has fully drained. Transport failures and
// rate-limited attempts drop their item for this run; a checkpoint write
// failure is fatal and cancels the whole pool.
func (p *Pipeline) Run(ctx context.Context, urls []string) error {
	resolved, err := p.checkpoint.ResolvedURLs(ctx)
	if err != nil {
		return err
	}

	todo := selectUnresolved(urls, resolved)
	p.logger.Info("resolution work set",
		zap.Int("total", len(urls)),
		zap.Int("resolved", len(resolved)),
		zap.Int("to_crawl", len(todo)),
	)
	if len(todo) == 0 {
		return nil
	}

	q := queue.New[string](len(todo))
	for _, u := range todo {
		if err := q.Enqueue(ctx, u); err != nil {
			return err
		}
	}
	q.Close()

	g, gctx := errgroup.WithContext(ctx)

	workers, wctx := errgroup.WithContext(gctx)
	for i := 0; i < p.cfg.Workers; i++ {
		workers.Go(func() error { return p.worker(wctx, q) })
	}

	workersDone := make(chan struct{})
	g.Go(func() error {
		defer close(workersDone)
		return workers.Wait()
	})

	reporter := newProgressReporter(q, len(todo), p.cfg.ProgressInterval, p.logger)
	g.Go(func() error {
		reporter.run(gctx, workersDone)
		return nil
	})

	return g.Wait()
}

// selectUnresolved drops empties, the bare service root, in-slice
// duplicates, and anything already checkpointed, then sorts for a stable
// crawl order.
func selectUnresolved(urls []string, resolved map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(urls))
	var todo []string
	for _, u := range urls {
		if u == "" || u == shortlink.Prefix {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if _, done := resolved[u]; done {
			continue
		}
		todo = append(todo, u)
	}
	sort.Strings(todo)
	return todo
}

func (p *Pipeline) worker(ctx context.Context, q *queue.Queue[string]) error {
	for {
		url, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if err := p.probe(ctx, url); err != nil {
			return err
		}
	}
}

// probe issues one GET and persists the classified outcome. A nil return
// with no outcome written means the attempt was dropped (transport error or
// rate limiting); the link stays unresolved for a future run.
func (p *Pipeline) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Warn("building probe request failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("probe canceled: %w", ctx.Err())
		}
		p.logger.Warn("probe failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()

	if RateLimited(resp) {
		metrics.ResolveRateLimited()
		p.logger.Warn("rate limited, backing off", zap.String("url", url))
		// The attempt is dropped, not requeued: requeueing while the
		// limiter is hot mostly feeds it, and the checkpoint filter makes
		// the next run pick the link up again.
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limit pause: %w", ctx.Err())
		case <-time.After(p.cfg.RateLimitPause):
		}
		return nil
	}

	location := resp.Header.Get("Location")
	classification, target := Classify(resp.StatusCode, location, string(body))
	if classification == Unknown {
		p.logger.Warn("unknown probe outcome",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Any("headers", resp.Header),
			zap.String("body", snippet(body)),
		)
	}

	outcome := Outcome{
		URL:         url,
		Status:      string(classification),
		RedirectURL: target,
	}
	if err := p.checkpoint.Record(ctx, outcome); err != nil {
		return err
	}
	metrics.ResolveOutcome(string(classification))
	p.logger.Info("resolved",
		zap.String("url", url),
		zap.String("status", string(classification)),
		zap.String("redirect", snippetString(target, 64)),
	)
	return nil
}

func snippet(body []byte) string {
	return snippetString(string(body), 256)
}

func snippetString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
