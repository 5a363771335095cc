// Package cmd defines the CLI commands for the wikichron executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chronicleworks/wikichron/internal/app"
	"github.com/chronicleworks/wikichron/internal/config"
)

var cfgFile string

// appKeyType is the context key for the dependency container.
type appKeyType struct{}

// newApp is a variable so tests can inject a prebuilt container.
var newApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikichron",
		Short: "Resumable wiki ingestion and timeline analysis",
		Long: `wikichron crawls a MediaWiki site, scrapes its content pages,
downloads their media, and distills the corpus into a chronological
timeline and a narrative summary via AI batch analysis. Every phase
checkpoints its progress, so an interrupted run picks up where it
stopped.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKeyType{}).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches wikichron.yaml)")

	cmd.AddCommand(
		newDiscoverCmd(),
		newScrapeCmd(),
		newMediaCmd(),
		newAnalyzeCmd(),
		newRunCmd(),
		newServeCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}
