package normalisers

import (
	"sort"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/normalisers/tracker"
	"github.com/custodia-labs/kbsync/internal/normalisers/wiki"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry applies normalisers to records by source kind.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates a registry holding the given normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	r := &Registry{}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Default returns a registry with the built-in tracker and wiki normalisers.
func Default() *Registry {
	return NewRegistry(tracker.New(), wiki.New())
}

// Register adds a normaliser, keeping the list ordered by priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise returns a normalised deep copy of rec; rec itself is not
// modified. A record of known kind goes through the normalisers that
// support that kind. A record without a kind goes through all of them,
// each skipping shapes it does not find.
func (r *Registry) Normalise(rec domain.Record) domain.Record {
	out := rec.Clone()
	if out == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	kind := out.Kind()
	for _, n := range r.normalisers {
		if kind == domain.KindUnknown || supports(n, kind) {
			n.Normalise(out)
		}
	}
	return out
}

// Names returns the registered normaliser names in application order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.normalisers))
	for i, n := range r.normalisers {
		names[i] = n.Name()
	}
	return names
}

func supports(n driven.Normaliser, kind domain.SourceKind) bool {
	for _, k := range n.SupportedKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
