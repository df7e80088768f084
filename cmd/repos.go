package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/shortlink"
	"github.com/saveweb/googlrot/internal/source"
)

// sweepAlphabet enumerates the character set of short-link paths. The
// repository sweep issues one query per character because the search API
// caps every query at a thousand results.
const sweepAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newReposCmd creates the 'repos' subcommand, the second discovery corpus:
// repository descriptions instead of file contents.
func newReposCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "Sweep repository descriptions for short links",
		Long: `Searches repository metadata for short links, one query per path
character. Descriptions are small but dense with project links, so the sweep
is cheap relative to the code-search crawl and catches links that never
appear in committed files.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepoSweep(cmd.Context())
		},
	}
}

func runRepoSweep(ctx context.Context) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}

	pipeline, pool, err := buildDiscoveryPipeline(ctx, a, func(cfg source.GitHubConfig) source.Provider {
		return source.NewRepoSearch(cfg)
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, c := range sweepAlphabet {
		query := fmt.Sprintf("%s%c", shortlink.Marker, c)
		if err := pipeline.RunQuery(ctx, query); err != nil {
			if errors.Is(err, context.Canceled) {
				a.logger.Info("repository sweep interrupted")
				return nil
			}
			return fmt.Errorf("repo sweep %q: %w", query, err)
		}
	}

	a.logger.Info("repository sweep finished", zap.Int("queries", len(sweepAlphabet)))
	return nil
}
