package driven

import "time"

// ConfigStore provides read access to the configuration file.
// Nested tables are exposed with dot-notation keys ("jira.url").
// Typed getters return the zero value when a key is missing or has an
// incompatible type.
type ConfigStore interface {
	// Get retrieves a raw configuration value by key.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetStringSlice accepts a TOML array or a comma-separated string.
	GetStringSlice(key string) []string

	// GetDuration accepts a Go duration string ("30s") or whole seconds.
	GetDuration(key string) time.Duration

	// Load re-reads the file. A missing file yields an empty configuration.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
