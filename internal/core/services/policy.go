package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// ChangePolicy decides between a full and an incremental fetch from the
// state of the source store.
type ChangePolicy struct {
	store driven.RecordStore
	now   func() time.Time
}

// NewChangePolicy creates a policy over the source store.
func NewChangePolicy(store driven.RecordStore) *ChangePolicy {
	return &ChangePolicy{store: store, now: time.Now}
}

// ShouldFullSync reports true iff the store holds no records.
// A store that cannot be counted is a cycle-level failure.
func (p *ChangePolicy) ShouldFullSync(ctx context.Context) (bool, error) {
	n, err := p.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: count records: %w", domain.ErrStoreUnavailable, err)
	}
	return n == 0, nil
}

// Window returns the base window for a cycle and whether it is full.
// force skips the emptiness check but the store is still counted so an
// unreachable store fails the cycle before any source is fetched.
func (p *ChangePolicy) Window(ctx context.Context, force bool) (domain.FetchWindow, bool, error) {
	empty, err := p.ShouldFullSync(ctx)
	if err != nil {
		return domain.FetchWindow{}, false, err
	}
	if force || empty {
		return domain.FullWindow(), true, nil
	}
	return domain.IncrementalWindow(p.now()), false, nil
}
