// Package config assembles the typed configuration from the TOML file,
// a .env file and environment variables. Environment variables win over
// the file. Credentials and endpoints are never defaulted.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Environment variables read by Load.
const (
	EnvJiraURL            = "JIRA_API_URL"
	EnvJiraUsername       = "JIRA_API_USERNAME"
	EnvJiraToken          = "JIRA_API_TOKEN"
	EnvConfluenceURL      = "CONFLUENCE_API_URL"
	EnvConfluenceUsername = "CONFLUENCE_API_USERNAME"
	EnvConfluenceToken    = "CONFLUENCE_API_TOKEN"
	EnvGitHubToken        = "GITHUB_TOKEN"
	EnvGitHubRepos        = "GITHUB_REPOS"
	EnvSourceStore        = "SOURCE_STORE_URL"
	EnvTargetStore        = "TARGET_STORE_URL"
	EnvVisionEndpoint     = "AZURE_VISION_ENDPOINT"
	EnvVisionKey          = "AZURE_VISION_KEY"
	EnvDocIntelEndpoint   = "AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT"
	EnvDocIntelKey        = "AZURE_DOCUMENT_INTELLIGENCE_KEY"
)

// Operational defaults.
const (
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultCacheTTL        = 24 * time.Hour
	DefaultWorkers         = 1
	DefaultServerAddr      = ":8080"
	DefaultFetchSchedule   = "0 * * * *"
	DefaultPublishSchedule = "30 * * * *"
)

// SourceConfig configures one Atlassian source.
type SourceConfig struct {
	URL      string
	Username string
	Token    string

	// Incremental lets the source honour incremental windows.
	Incremental bool

	PageSize int

	// SpaceKey restricts Confluence to one space.
	SpaceKey string
}

// Configured reports whether any field identifying the source is set.
func (s SourceConfig) Configured() bool {
	return s.URL != "" || s.Token != ""
}

// GitHubConfig configures the GitHub issues source.
type GitHubConfig struct {
	Token           string
	Repos           []string
	Incremental     bool
	IncludeArchived bool
	IncludeForks    bool
	BaseURL         string
}

// Configured reports whether the source is enabled.
func (g GitHubConfig) Configured() bool {
	return g.Token != ""
}

// ServiceConfig configures a remote analysis service.
type ServiceConfig struct {
	Endpoint string
	Key      string
}

// Configured reports whether the service is enabled.
func (s ServiceConfig) Configured() bool {
	return s.Endpoint != "" || s.Key != ""
}

// EnrichConfig tunes attachment analysis.
type EnrichConfig struct {
	Workers int

	// LocalPDF adds local PDF text extraction.
	LocalPDF bool

	// Upload downloads attachments with source credentials first.
	Upload bool

	CacheTTL         time.Duration
	DownloadMaxBytes int64
	DownloadRate     float64

	VisionMinConfidence float64
	VisionIncludeText   bool
	DocIntelModel       string
	DocIntelPoll        time.Duration
	DocIntelMaxWait     time.Duration
}

// SchedulerSettings mirrors domain.SchedulerConfig in file form.
type SchedulerSettings struct {
	Enabled         bool
	RunOnStart      bool
	FetchEnabled    bool
	FetchSchedule   string
	PublishEnabled  bool
	PublishSchedule string
}

// Config is the complete application configuration.
type Config struct {
	Jira       SourceConfig
	Confluence SourceConfig
	GitHub     GitHubConfig

	SourceStore string
	TargetStore string

	Vision   ServiceConfig
	DocIntel ServiceConfig
	Enrich   EnrichConfig

	HTTPTimeout time.Duration
	ServerAddr  string
	Scheduler   SchedulerSettings

	// StatePath is the SQLite file holding scheduler state.
	// Empty selects the default location under the home directory.
	StatePath string
}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from store, overridden by env.
// A nil env uses os.LookupEnv.
func Load(store driven.ConfigStore, env LookupEnv) *Config {
	if env == nil {
		env = os.LookupEnv
	}
	r := reader{store: store, env: env}

	cfg := &Config{
		Jira: SourceConfig{
			URL:         r.str("jira.url", EnvJiraURL),
			Username:    r.str("jira.username", EnvJiraUsername),
			Token:       r.str("jira.token", EnvJiraToken),
			Incremental: r.boolOr("jira.incremental", true),
			PageSize:    store.GetInt("jira.page_size"),
		},
		Confluence: SourceConfig{
			URL:         r.str("confluence.url", EnvConfluenceURL),
			Username:    r.str("confluence.username", EnvConfluenceUsername),
			Token:       r.str("confluence.token", EnvConfluenceToken),
			Incremental: r.boolOr("confluence.incremental", false),
			PageSize:    store.GetInt("confluence.page_size"),
			SpaceKey:    store.GetString("confluence.space_key"),
		},
		GitHub: GitHubConfig{
			Token:           r.str("github.token", EnvGitHubToken),
			Repos:           r.list("github.repos", EnvGitHubRepos),
			Incremental:     r.boolOr("github.incremental", true),
			IncludeArchived: store.GetBool("github.include_archived"),
			IncludeForks:    store.GetBool("github.include_forks"),
			BaseURL:         store.GetString("github.base_url"),
		},
		SourceStore: r.str("stores.source", EnvSourceStore),
		TargetStore: r.str("stores.target", EnvTargetStore),
		Vision: ServiceConfig{
			Endpoint: r.str("vision.endpoint", EnvVisionEndpoint),
			Key:      r.str("vision.key", EnvVisionKey),
		},
		DocIntel: ServiceConfig{
			Endpoint: r.str("docintel.endpoint", EnvDocIntelEndpoint),
			Key:      r.str("docintel.key", EnvDocIntelKey),
		},
		Enrich: EnrichConfig{
			Workers:             r.intOr("enrich.workers", DefaultWorkers),
			LocalPDF:            store.GetBool("enrich.local_pdf"),
			Upload:              r.boolOr("enrich.upload", true),
			CacheTTL:            r.durationOr("enrich.cache_ttl", DefaultCacheTTL),
			DownloadMaxBytes:    int64(store.GetInt("enrich.download_max_bytes")),
			DownloadRate:        store.GetFloat("enrich.download_rate"),
			VisionMinConfidence: store.GetFloat("vision.min_confidence"),
			VisionIncludeText:   store.GetBool("vision.include_text"),
			DocIntelModel:       store.GetString("docintel.model"),
			DocIntelPoll:        store.GetDuration("docintel.poll_interval"),
			DocIntelMaxWait:     store.GetDuration("docintel.max_wait"),
		},
		HTTPTimeout: r.durationOr("http.timeout", DefaultHTTPTimeout),
		ServerAddr:  r.strOr("server.addr", DefaultServerAddr),
		Scheduler: SchedulerSettings{
			Enabled:         r.boolOr("scheduler.enabled", true),
			RunOnStart:      r.boolOr("scheduler.run_on_start", true),
			FetchEnabled:    r.boolOr("scheduler.fetch.enabled", true),
			FetchSchedule:   r.strOr("scheduler.fetch.schedule", DefaultFetchSchedule),
			PublishEnabled:  r.boolOr("scheduler.publish.enabled", true),
			PublishSchedule: r.strOr("scheduler.publish.schedule", DefaultPublishSchedule),
		},
		StatePath: store.GetString("scheduler.state_path"),
	}
	return cfg
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	req := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
		}
	}

	req(c.SourceStore != "", "source store URL is required (%s)", EnvSourceStore)
	req(c.TargetStore != "", "target store URL is required (%s)", EnvTargetStore)

	for name, s := range map[string]SourceConfig{"jira": c.Jira, "confluence": c.Confluence} {
		if s.Configured() {
			req(s.URL != "", "%s URL is required when its token is set", name)
			req(s.Token != "", "%s token is required when its URL is set", name)
		}
	}
	for name, s := range map[string]ServiceConfig{"vision": c.Vision, "document intelligence": c.DocIntel} {
		if s.Configured() {
			req(s.Endpoint != "" && s.Key != "", "%s needs both endpoint and key", name)
		}
	}
	for _, r := range c.GitHub.Repos {
		req(strings.Count(r, "/") == 1, "github repository %q is not owner/name", r)
	}
	req(c.Enrich.Workers >= 1, "enrich.workers must be at least 1")
	req(c.HTTPTimeout > 0, "http.timeout must be positive")

	return errors.Join(errs...)
}

// HasSources reports whether at least one source is configured.
func (c *Config) HasSources() bool {
	return c.Jira.Configured() || c.Confluence.Configured() || c.GitHub.Configured()
}

// SchedulerConfig converts the scheduler settings to the domain form.
func (c *Config) SchedulerConfig() domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Enabled:    c.Scheduler.Enabled,
		RunOnStart: c.Scheduler.RunOnStart,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDFetch: {
				Enabled:  c.Scheduler.FetchEnabled,
				Schedule: c.Scheduler.FetchSchedule,
			},
			domain.TaskIDPublish: {
				Enabled:  c.Scheduler.PublishEnabled,
				Schedule: c.Scheduler.PublishSchedule,
			},
		},
	}
}

// reader resolves a key from env first, then the store.
type reader struct {
	store driven.ConfigStore
	env   LookupEnv
}

func (r reader) str(key, envKey string) string {
	if v, ok := r.env(envKey); ok && v != "" {
		return v
	}
	return r.store.GetString(key)
}

func (r reader) strOr(key, def string) string {
	if v := r.store.GetString(key); v != "" {
		return v
	}
	return def
}

func (r reader) list(key, envKey string) []string {
	if v, ok := r.env(envKey); ok && v != "" {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return r.store.GetStringSlice(key)
}

func (r reader) boolOr(key string, def bool) bool {
	if _, ok := r.store.Get(key); !ok {
		return def
	}
	return r.store.GetBool(key)
}

func (r reader) intOr(key string, def int) int {
	if _, ok := r.store.Get(key); !ok {
		return def
	}
	return r.store.GetInt(key)
}

func (r reader) durationOr(key string, def time.Duration) time.Duration {
	if _, ok := r.store.Get(key); !ok {
		return def
	}
	return r.store.GetDuration(key)
}
