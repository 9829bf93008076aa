// Package memory provides in-memory implementations of the store ports.
// Used for tests, dry runs and the memory:// store URL.
package memory
