package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/resolve"
	"github.com/saveweb/googlrot/internal/store"
)

// newResolveCmd creates the 'resolve' subcommand, which probes discovered
// links and checkpoints each outcome locally.
func newResolveCmd() *cobra.Command {
	var fromDB bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve discovered links and record their redirect targets",
		Long: `Probes each unresolved link once, without following redirects, and
records the classified outcome in a local checkpoint database. Interrupted
runs resume where they left off: checkpointed links are never probed again.

The work set comes from the configured input file (one url per line) or,
with --from-db, from the links table.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), fromDB)
		},
	}

	cmd.Flags().BoolVar(&fromDB, "from-db", false, "read the work set from the links table instead of the input file")
	return cmd
}

func runResolve(ctx context.Context, fromDB bool) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}

	urls, err := loadWorkSet(ctx, a, fromDB)
	if err != nil {
		return err
	}

	checkpoint, err := resolve.OpenCheckpoint(a.cfg.Resolve.CheckpointPath)
	if err != nil {
		return err
	}

	rc := a.cfg.Resolve
	pipeline := resolve.New(checkpoint, resolve.Config{
		Workers:          rc.Workers,
		Timeout:          rc.Timeout,
		UserAgent:        rc.UserAgent,
		RateLimitPause:   rc.RateLimitPause,
		ProgressInterval: rc.ProgressInterval,
	}, a.logger)

	if err := pipeline.Run(ctx, urls); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info("resolution interrupted, checkpoint preserved")
			return nil
		}
		return fmt.Errorf("resolve: %w", err)
	}

	total, err := checkpoint.Count(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("resolution finished", zap.Int64("checkpointed", total))
	return nil
}

func loadWorkSet(ctx context.Context, a *app, fromDB bool) ([]string, error) {
	if fromDB {
		pool, err := store.NewPool(ctx, a.cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		links, err := store.NewURLStore(pool, a.cfg.DB.LinksTable)
		if err != nil {
			return nil, err
		}
		return links.ListURLs(ctx)
	}
	return readURLFile(a.cfg.Resolve.InputFile)
}

// readURLFile reads one url per line, skipping blanks.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return urls, nil
}
