package binding

import (
	"context"
	"reflect"
	"sync"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// Resource runs a fixed call once when mounted and again whenever its
// dependencies change.
type Resource[T any] struct {
	query *Query[T]
	call  Call[T]

	mu      sync.Mutex
	mounted bool
	deps    []any
}

func NewResource[T any](call Call[T], onChange func(QueryState[T])) *Resource[T] {
	return &Resource[T]{query: NewQuery(onChange), call: call}
}

// Mount performs the initial fetch. Later calls are no-ops returning nil, nil.
func (r *Resource[T]) Mount(ctx context.Context, deps ...any) (*model.Envelope[T], error) {
	r.mu.Lock()
	if r.mounted {
		r.mu.Unlock()
		return nil, nil
	}
	r.mounted = true
	r.deps = deps
	r.mu.Unlock()
	return r.query.Execute(ctx, r.call)
}

// SetDeps refetches when deps differ from the last recorded ones.
// It reports whether a fetch ran.
func (r *Resource[T]) SetDeps(ctx context.Context, deps ...any) (bool, error) {
	r.mu.Lock()
	if r.mounted && reflect.DeepEqual(r.deps, deps) {
		r.mu.Unlock()
		return false, nil
	}
	r.mounted = true
	r.deps = deps
	r.mu.Unlock()
	_, err := r.query.Execute(ctx, r.call)
	return true, err
}

func (r *Resource[T]) Refetch(ctx context.Context) (*model.Envelope[T], error) {
	return r.query.Execute(ctx, r.call)
}

func (r *Resource[T]) State() QueryState[T] {
	return r.query.State()
}
