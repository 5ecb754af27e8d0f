package reconcile

import (
	"fmt"
	"sort"

	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
)

// Registry holds one Engine per channel kind.
type Registry struct {
	engines map[string]*Engine
}

// NewRegistry creates an engine for each role pair. All engines share
// opts, including the Locker, so pairs are serialized across channels.
func NewRegistry(db *gorm.DB, pairs []RolePair, opts Options) (*Registry, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("reconcile: at least one role pair is required")
	}
	if opts.Locker == nil {
		opts.Locker = NewKeyedMutex()
	}
	r := &Registry{engines: make(map[string]*Engine, len(pairs))}
	for _, p := range pairs {
		if _, dup := r.engines[p.Kind]; dup {
			return nil, fmt.Errorf("reconcile: duplicate kind %q", p.Kind)
		}
		e, err := New(db, p, opts)
		if err != nil {
			return nil, err
		}
		r.engines[p.Kind] = e
	}
	return r, nil
}

// Engine returns the engine for kind.
func (r *Registry) Engine(kind string) (*Engine, error) {
	e, ok := r.engines[kind]
	if !ok {
		return nil, fmt.Errorf("reconcile: unknown kind %q: %w", kind, models.ErrNotFound)
	}
	return e, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.engines))
	for k := range r.engines {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
