package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/store"
)

const seedBatchSize = 1000

// newSeedCmd creates the 'seed' subcommand, which populates the partition
// table with every three-character prefix.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the partition table with all three-character prefixes",
		Long: `Inserts one TODO row per three-character prefix over the path
alphabet. Prefixes already present keep their status, so re-running the
seeder never resets finished work.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context())
		},
	}
}

func runSeed(ctx context.Context) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}

	pool, err := store.NewPool(ctx, a.cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	prefixes, err := store.NewPrefixStore(pool, a.cfg.DB.PrefixTable)
	if err != nil {
		return err
	}
	if err := prefixes.EnsureSchema(ctx); err != nil {
		return err
	}

	units := generatePrefixes()
	inserted, err := prefixes.Seed(ctx, units, seedBatchSize)
	if err != nil {
		return fmt.Errorf("seed partition table: %w", err)
	}

	a.logger.Info("partition table seeded",
		zap.Int("total", len(units)),
		zap.Int64("inserted", inserted),
	)
	return nil
}

// generatePrefixes enumerates the full three-character prefix space over
// the path alphabet.
func generatePrefixes() []string {
	out := make([]string, 0, len(sweepAlphabet)*len(sweepAlphabet)*len(sweepAlphabet))
	for i := 0; i < len(sweepAlphabet); i++ {
		for j := 0; j < len(sweepAlphabet); j++ {
			for k := 0; k < len(sweepAlphabet); k++ {
				out = append(out, string([]byte{sweepAlphabet[i], sweepAlphabet[j], sweepAlphabet[k]}))
			}
		}
	}
	return out
}
