// Package cmd defines and implements the CLI commands for the googlrot
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/api"
	"github.com/saveweb/googlrot/internal/config"
	"github.com/saveweb/googlrot/internal/logging"
	"github.com/saveweb/googlrot/internal/metrics"
	"github.com/saveweb/googlrot/internal/source"
)

var cfgFile string

// appKeyType is the key for storing the app in the context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs. It is built once in the
// root command's PersistentPreRunE and handed down through the context.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	ops    *api.Server
}

func (a *app) close() {
	if a.ops != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.ops.Shutdown(ctx); err != nil {
			a.logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newApp is the application factory. It is a variable so tests can replace
// it with a factory returning fakes.
var newApp = func(_ context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	a := &app{cfg: cfg, logger: logger}
	if cfg.Server.Enabled {
		a.ops = api.NewServer(cfg.Server.Port, logger)
		a.ops.Start()
	}
	return a, nil
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// githubConfig translates loaded configuration into the provider's config,
// resolving the API token from its file when no inline value is set.
func githubConfig(a *app) (source.GitHubConfig, error) {
	token, err := a.cfg.GitHubToken()
	if err != nil {
		return source.GitHubConfig{}, err
	}
	gh := a.cfg.GitHub
	return source.GitHubConfig{
		BaseURL: gh.BaseURL,
		Token:   token,
		PerPage: gh.PerPage,
		Timeout: gh.RequestTimeout,
		Retry:   source.NewRetryPolicy(gh.MaxRetries, gh.BackoffInitial, gh.BackoffMax),
		Logger:  a.logger,
	}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "googlrot",
		Short: "Archive goo.gl short links before they rot away.",
		Long: `googlrot discovers goo.gl short links across public code and
repository metadata, stores them durably, and resolves each one against the
live service to capture its redirect target before the shutdown.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application services once config is available and hand
		// them to subcommands through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with prefix GOOGLROT also apply)")

	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newReposCmd())
	cmd.AddCommand(newResolveCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so long runs stop at the next safe point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
