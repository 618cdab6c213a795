package binding

import (
	"context"
	"sync"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// QueryState is the observable state of a Query.
type QueryState[T any] struct {
	Data    T
	Loading bool
	Error   string
}

// Query runs façade calls on demand and tracks their outcome.
type Query[T any] struct {
	mu       sync.Mutex
	state    QueryState[T]
	gen      uint64
	onChange func(QueryState[T])
}

// NewQuery creates an idle Query. onChange may be nil.
func NewQuery[T any](onChange func(QueryState[T])) *Query[T] {
	return &Query[T]{onChange: onChange}
}

func (q *Query[T]) State() QueryState[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Execute runs call and records its result. The envelope and error are
// returned unchanged; on failure the previous data is kept.
func (q *Query[T]) Execute(ctx context.Context, call Call[T]) (*model.Envelope[T], error) {
	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.state.Loading = true
	q.state.Error = ""
	started := q.state
	q.mu.Unlock()
	notify(q.onChange, started)

	env, err := call(ctx)

	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return env, err
	}
	q.state.Loading = false
	if err != nil {
		q.state.Error = errorMessage(err, MsgUnexpected)
	} else if env != nil {
		q.state.Data = env.Data
	}
	settled := q.state
	q.mu.Unlock()
	notify(q.onChange, settled)
	return env, err
}

// Reset clears the state and discards any call still in flight.
func (q *Query[T]) Reset() {
	q.mu.Lock()
	q.gen++
	q.state = QueryState[T]{}
	q.mu.Unlock()
	notify(q.onChange, QueryState[T]{})
}

// abandon drops any call in flight while keeping the settled data and error.
func (q *Query[T]) abandon() {
	q.mu.Lock()
	q.gen++
	changed := q.state.Loading
	q.state.Loading = false
	state := q.state
	q.mu.Unlock()
	if changed {
		notify(q.onChange, state)
	}
}
