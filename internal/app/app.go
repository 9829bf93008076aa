// Package app builds the pipeline from configuration. It is the only place
// where concrete adapters are chosen and handed to the core services.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/docintel"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/download"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/vision"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/metrics"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kbsync/internal/config"
	"github.com/custodia-labs/kbsync/internal/connectors/confluence"
	"github.com/custodia-labs/kbsync/internal/connectors/github"
	"github.com/custodia-labs/kbsync/internal/connectors/jira"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/services"
	"github.com/custodia-labs/kbsync/internal/logger"
	"github.com/custodia-labs/kbsync/internal/normalisers"
)

// App holds the wired services and everything that must be closed.
type App struct {
	Config    *config.Config
	Source    driven.RecordStore
	Target    driven.RecordStore
	Fetch     *services.FetchOrchestrator
	Publish   *services.PublishOrchestrator
	Scheduler *services.Scheduler
	Tasks     driven.SchedulerStore
	Metrics   *metrics.Prometheus

	closers []func() error
}

type options struct {
	registerer prometheus.Registerer
	tasks      driven.SchedulerStore
}

// Option customises New.
type Option func(*options)

// WithRegisterer registers pipeline metrics on reg instead of the
// default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSchedulerStore uses tasks for scheduler state instead of the
// SQLite state database.
func WithSchedulerStore(tasks driven.SchedulerStore) Option {
	return func(o *options) { o.tasks = tasks }
}

// New validates cfg and wires the pipeline. On error everything opened so
// far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	source, err := storage.Open(ctx, cfg.SourceStore)
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	a.closers = append(a.closers, source.Close)
	a.Source = source

	target, err := storage.Open(ctx, cfg.TargetStore)
	if err != nil {
		return nil, fmt.Errorf("open target store: %w", err)
	}
	a.closers = append(a.closers, target.Close)
	a.Target = target

	bindings := Sources(cfg)
	for _, b := range bindings {
		a.closers = append(a.closers, b.Connector.Close)
	}
	if len(bindings) == 0 {
		logger.Warn("No sources configured; fetch cycles will write nothing")
	}

	analyzers, err := enrich.Build(EnrichConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("build analyzers: %w", err)
	}

	a.Metrics = metrics.New(o.registerer)
	enricher := services.NewEnricher(analyzers.Images, analyzers.Documents,
		services.WithWorkers(cfg.Enrich.Workers),
		services.WithEnrichmentMetrics(a.Metrics),
	)
	a.Fetch = services.NewFetchOrchestrator(bindings, source, enricher, a.Metrics)
	a.Publish = services.NewPublishOrchestrator(source, target, normalisers.Default(), a.Metrics)

	a.Tasks = o.tasks
	if a.Tasks == nil {
		state, err := sqlite.NewStore(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("open state database: %w", err)
		}
		a.closers = append(a.closers, state.Close)
		a.Tasks = state.SchedulerStore()
	}
	a.Scheduler = services.NewScheduler(cfg.SchedulerConfig(), a.Tasks, a.Fetch, a.Publish)

	return a, nil
}

// Close releases stores and connectors in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Sources builds a binding for every configured source.
func Sources(cfg *config.Config) []services.SourceBinding {
	var out []services.SourceBinding

	if cfg.Jira.Configured() {
		out = append(out, services.SourceBinding{
			Connector: jira.New(jira.Config{
				BaseURL:  cfg.Jira.URL,
				Username: cfg.Jira.Username,
				Token:    cfg.Jira.Token,
				PageSize: cfg.Jira.PageSize,
				Timeout:  cfg.HTTPTimeout,
			}),
			Incremental: cfg.Jira.Incremental,
		})
	}

	if cfg.Confluence.Configured() {
		out = append(out, services.SourceBinding{
			Connector: confluence.New(confluence.Config{
				BaseURL:  cfg.Confluence.URL,
				Username: cfg.Confluence.Username,
				Token:    cfg.Confluence.Token,
				SpaceKey: cfg.Confluence.SpaceKey,
				PageSize: cfg.Confluence.PageSize,
				Timeout:  cfg.HTTPTimeout,
			}),
			Incremental: cfg.Confluence.Incremental,
		})
	}

	if cfg.GitHub.Configured() {
		out = append(out, services.SourceBinding{
			Connector: github.New(github.Config{
				Token:           cfg.GitHub.Token,
				Repos:           cfg.GitHub.Repos,
				IncludeArchived: cfg.GitHub.IncludeArchived,
				IncludeForks:    cfg.GitHub.IncludeForks,
				BaseURL:         cfg.GitHub.BaseURL,
				Timeout:         cfg.HTTPTimeout,
			}, nil),
			Incremental: cfg.GitHub.Incremental,
		})
	}

	return out
}

// EnrichConfig maps the application config onto the analyzer factory.
// Attachment downloads reuse the basic-auth credentials of the source
// whose base URL covers the link, so Jira and Confluence may share a host.
func EnrichConfig(cfg *config.Config) enrich.Config {
	creds := make(map[string]download.Credentials)
	for _, s := range []config.SourceConfig{cfg.Jira, cfg.Confluence} {
		if s.URL != "" && s.Token != "" {
			creds[s.URL] = download.Credentials{Username: s.Username, Token: s.Token}
		}
	}

	return enrich.Config{
		Vision: vision.Config{
			Endpoint:      cfg.Vision.Endpoint,
			Key:           cfg.Vision.Key,
			MinConfidence: cfg.Enrich.VisionMinConfidence,
			IncludeText:   cfg.Enrich.VisionIncludeText,
			Timeout:       cfg.HTTPTimeout,
		},
		DocIntel: docintel.Config{
			Endpoint:     cfg.DocIntel.Endpoint,
			Key:          cfg.DocIntel.Key,
			Model:        cfg.Enrich.DocIntelModel,
			Timeout:      cfg.HTTPTimeout,
			PollInterval: cfg.Enrich.DocIntelPoll,
			MaxWait:      cfg.Enrich.DocIntelMaxWait,
		},
		LocalPDF:         cfg.Enrich.LocalPDF,
		Upload:           cfg.Enrich.Upload,
		Credentials:      creds,
		DownloadTimeout:  cfg.HTTPTimeout,
		DownloadMaxBytes: cfg.Enrich.DownloadMaxBytes,
		DownloadRate:     cfg.Enrich.DownloadRate,
		CacheTTL:         cfg.Enrich.CacheTTL,
	}
}
