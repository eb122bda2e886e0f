// Package cmd defines and implements the CLI commands for the scraper
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/multisource-scraper/internal/config"
	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. Tests inject a
// fake through the factory passed to newRootCmd.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Manager() *manager.Manager
}

// appFactory builds the App from a config file path.
type appFactory func(ctx context.Context, cfgPath string) (App, error)

func buildApp(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := server.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd(newApp appFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Scrapes jobs, markets, listings, odds and feeds on demand or on a schedule.",
		Long: `scraper collects records from job boards, financial endpoints, property
portals, bookmakers, team listings, public APIs and RSS feeds. Records are
normalized and fanned out to the configured sinks. Runs are triggered from
this CLI, the HTTP API or the built-in scheduler.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed but before RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				return appInstance.Close(context.WithoutCancel(cmd.Context()))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); SCRAPER_* env vars override it")

	cmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newSearchCmd(),
		newCategoriesCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd(buildApp)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
