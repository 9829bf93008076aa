// Package cli provides the kbsync command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbsync/internal/app"
	"github.com/custodia-labs/kbsync/internal/config"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// version is overridden at build time.
var version = "dev"

// Global flags.
var (
	verbose    bool
	configPath string
	envFile    string
	logFormat  string
)

// sourceValidator checks source credentials without fetching.
type sourceValidator interface {
	Validate(ctx context.Context) map[string]error
}

// Services used by commands. setupServices fills them from configuration;
// tests replace them with mocks.
var (
	appConfig      *config.Config
	configStore    driven.ConfigStore
	fetchService   driving.FetchService
	publishService driving.PublishService
	taskScheduler  driving.Scheduler
	taskStore      driven.SchedulerStore
	validator      sourceValidator
	closeServices  func() error
)

// servicesAnnotation marks commands that need the wired pipeline.
var servicesAnnotation = map[string]string{"services": "true"}

var rootCmd = &cobra.Command{
	Use:   "kbsync",
	Short: "Sync tracker and wiki content into a knowledge base",
	Long: `kbsync pulls issues and pages from Jira, Confluence and GitHub,
extracts text from their image and PDF attachments, and stores the raw
records. A separate publish stage flattens rich-text content and writes
the normalised records to the knowledge base store.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.kbsync/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logger.FormatText, "log format: text or json")
}

// Execute runs the root command. v replaces the reported version when set.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if err := logger.SetFormat(logFormat); err != nil {
		return err
	}
	if cmd.Annotations["services"] == "" || fetchService != nil {
		return nil
	}
	return setupServices(cmd.Context())
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	appConfig, configStore = nil, nil
	fetchService, publishService = nil, nil
	taskScheduler, taskStore, validator = nil, nil, nil
	closeServices = nil
	return err
}

// loadConfig reads .env, the config file and the environment.
func loadConfig() (*config.Config, *file.Store, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}

	path := configPath
	if path == "" {
		var err error
		if path, err = file.DefaultPath(); err != nil {
			return nil, nil, err
		}
	}
	store, err := file.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return config.Load(store, nil), store, nil
}

func setupServices(ctx context.Context) error {
	cfg, store, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	appConfig = cfg
	configStore = store
	fetchService = a.Fetch
	publishService = a.Publish
	taskScheduler = a.Scheduler
	taskStore = a.Tasks
	validator = a.Fetch
	closeServices = a.Close
	return nil
}
