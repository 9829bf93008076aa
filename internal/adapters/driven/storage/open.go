// Package storage selects a record store implementation from a URL.
//
//	memory://                           in-process, lost on exit
//	sqlite:///var/lib/kbsync/kb.db      SQLite file, collection "records"
//	sqlite:///var/lib/kbsync/kb.db?collection=normalised
//	mongodb://host:27017/kb?collection=raw
package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/mongo"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// URL schemes understood by Open.
const (
	SchemeMemory   = "memory"
	SchemeSQLite   = "sqlite"
	SchemeMongo    = "mongodb"
	SchemeMongoSRV = "mongodb+srv"
)

// Open returns the record store addressed by rawURL.
func Open(ctx context.Context, rawURL string) (driven.RecordStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: store url: %w", domain.ErrInvalidInput, err)
	}

	switch u.Scheme {
	case SchemeMemory:
		return memory.NewRecordStore(), nil
	case SchemeSQLite:
		path := u.Path
		if u.Host != "" {
			// sqlite://relative/path.db
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("%w: sqlite url needs a file path", domain.ErrInvalidInput)
		}
		return sqlite.OpenRecordStore(path, u.Query().Get("collection"))
	case SchemeMongo, SchemeMongoSRV:
		return mongo.Open(ctx, rawURL)
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme %q", domain.ErrUnsupportedType, u.Scheme)
	}
}
