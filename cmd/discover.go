package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/discovery"
	"github.com/saveweb/googlrot/internal/source"
	"github.com/saveweb/googlrot/internal/store"
)

// stopFile halts the discovery loop between prefixes when it appears in the
// working directory. Operators touch it to drain a long sweep cleanly.
const stopFile = "stop"

// newDiscoverCmd creates the 'discover' subcommand. It claims partition
// prefixes one at a time and scans the code-search corpus for each until the
// partition table is exhausted.
func newDiscoverCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the code-search corpus, one claimed prefix at a time",
		Long: `Claims TODO prefixes from the partition table and searches public
code for short links under each. Accepted links land in the links table,
rejected candidates in the bad-links table. Multiple instances can run
against the same database; row locking keeps their claims disjoint.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "process a single prefix and exit")
	return cmd
}

func runDiscover(ctx context.Context, once bool) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}

	pipeline, pool, err := buildDiscoveryPipeline(ctx, a, func(cfg source.GitHubConfig) source.Provider {
		return source.NewCodeSearch(cfg)
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	for {
		if _, err := os.Stat(stopFile); err == nil {
			a.logger.Info("stop file present, halting", zap.String("path", stopFile))
			return nil
		}

		if err := pipeline.RunOnce(ctx); err != nil {
			if errors.Is(err, discovery.ErrNoWork) {
				a.logger.Info("partition table exhausted")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				a.logger.Info("discovery interrupted")
				return nil
			}
			return fmt.Errorf("discover: %w", err)
		}

		if once {
			return nil
		}
	}
}

// buildDiscoveryPipeline connects the database, ensures every table exists,
// and wires a Pipeline around the given provider. The caller owns the
// returned pool.
func buildDiscoveryPipeline(
	ctx context.Context,
	a *app,
	provider func(source.GitHubConfig) source.Provider,
) (*discovery.Pipeline, *pgxpool.Pool, error) {
	pool, err := store.NewPool(ctx, a.cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}

	links, err := store.NewURLStore(pool, a.cfg.DB.LinksTable)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	badLinks, err := store.NewURLStore(pool, a.cfg.DB.BadTable)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	prefixes, err := store.NewPrefixStore(pool, a.cfg.DB.PrefixTable)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	for _, ensure := range []func(context.Context) error{
		links.EnsureSchema, badLinks.EnsureSchema, prefixes.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	ghCfg, err := githubConfig(a)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	p := discovery.New(
		provider(ghCfg),
		prefixes,
		links,
		badLinks,
		a.cfg.Discovery.QueueDepth,
		a.logger,
	)
	return p, pool, nil
}
