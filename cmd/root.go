package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/ca-srg/searchguard/internal/config"
	"github.com/ca-srg/searchguard/internal/observability"
	"github.com/ca-srg/searchguard/internal/opensearch"
)

var rootCmd = &cobra.Command{
	Use:   "searchguard",
	Short: "searchguard - verified OpenSearch access and error log",
	Long: `searchguard talks to an OpenSearch cluster and verifies every response
before using it. Failed calls are reported with the status code and the request
that caused them. It also keeps an application error log in an OpenSearch index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(traceCmd)
}

// runtime bundles what commands that reach the cluster need.
type runtime struct {
	cfg      *appconfig.Config
	client   *opensearch.Client
	shutdown observability.ShutdownFunc
}

func newRuntime() (*runtime, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdown, err := observability.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	osConfig, err := opensearch.NewConfigFromAppConfig(cfg)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to create OpenSearch config: %w", err)
	}

	client, err := opensearch.NewClient(osConfig)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &runtime{cfg: cfg, client: client, shutdown: shutdown}, nil
}

func (r *runtime) close() {
	r.client.LogMetrics()
	if err := r.shutdown(context.Background()); err != nil {
		log.Printf("Warning: telemetry shutdown failed: %v", err)
	}
}
