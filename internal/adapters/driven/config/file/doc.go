// Package file provides the TOML configuration file adapter.
package file
