package binding

import (
	"context"
	"sync"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// DefaultPageLimit is the page size used when NewPaginator gets a non-positive limit.
const DefaultPageLimit = 10

// PageCall fetches one page. Pages are 1-based.
type PageCall[T any] func(ctx context.Context, page, limit int) (*model.Envelope[model.Page[T]], error)

// PageState is the observable state of a Paginator.
type PageState[T any] struct {
	Items       []T
	TotalCount  int
	CurrentPage int
	TotalPages  int
	Loading     bool
	Error       string
}

// Paginator walks a paginated listing.
type Paginator[T any] struct {
	call  PageCall[T]
	limit int

	mu       sync.Mutex
	state    PageState[T]
	gen      uint64
	onChange func(PageState[T])
}

func NewPaginator[T any](call PageCall[T], limit int, onChange func(PageState[T])) *Paginator[T] {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Paginator[T]{
		call:     call,
		limit:    limit,
		state:    PageState[T]{Items: []T{}, CurrentPage: 1},
		onChange: onChange,
	}
}

func (p *Paginator[T]) Limit() int {
	return p.limit
}

func (p *Paginator[T]) State() PageState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load fetches the first page.
func (p *Paginator[T]) Load(ctx context.Context) (*model.Envelope[model.Page[T]], error) {
	return p.fetch(ctx, 1)
}

// Next fetches the following page, or returns nil, nil on the last page.
func (p *Paginator[T]) Next(ctx context.Context) (*model.Envelope[model.Page[T]], error) {
	s := p.State()
	if s.CurrentPage >= s.TotalPages {
		return nil, nil
	}
	return p.fetch(ctx, s.CurrentPage+1)
}

// Prev fetches the preceding page, or returns nil, nil on the first page.
func (p *Paginator[T]) Prev(ctx context.Context) (*model.Envelope[model.Page[T]], error) {
	s := p.State()
	if s.CurrentPage <= 1 {
		return nil, nil
	}
	return p.fetch(ctx, s.CurrentPage-1)
}

// GoTo fetches page when it lies within 1..TotalPages; otherwise it returns nil, nil.
func (p *Paginator[T]) GoTo(ctx context.Context, page int) (*model.Envelope[model.Page[T]], error) {
	if page < 1 || page > p.State().TotalPages {
		return nil, nil
	}
	return p.fetch(ctx, page)
}

func (p *Paginator[T]) Refetch(ctx context.Context) (*model.Envelope[model.Page[T]], error) {
	return p.fetch(ctx, p.State().CurrentPage)
}

func (p *Paginator[T]) fetch(ctx context.Context, page int) (*model.Envelope[model.Page[T]], error) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.state.Loading = true
	p.state.Error = ""
	started := p.state
	p.mu.Unlock()
	notify(p.onChange, started)

	env, err := p.call(ctx, page, p.limit)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return env, err
	}
	p.state.Loading = false
	switch {
	case err != nil:
		p.state.Error = errorMessage(err, MsgFetchFailed)
	case env != nil:
		items := env.Data.Items
		if items == nil {
			items = []T{}
		}
		p.state.Items = items
		p.state.CurrentPage = env.Data.CurrentPage
		p.state.TotalPages = env.Data.TotalPages
		p.state.TotalCount = env.Data.TotalCount
	}
	settled := p.state
	p.mu.Unlock()
	notify(p.onChange, settled)
	return env, err
}
