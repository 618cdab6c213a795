package binding

import (
	"context"
	"sync"
	"time"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// DefaultPollInterval is used when NewPoller gets a non-positive interval.
const DefaultPollInterval = 30 * time.Second

// Poller repeats a call on a fixed interval until stopped.
type Poller[T any] struct {
	query    *Query[T]
	call     Call[T]
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller[T any](call Call[T], interval time.Duration, onChange func(QueryState[T])) *Poller[T] {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller[T]{query: NewQuery(onChange), call: call, interval: interval}
}

// Start fetches immediately and then once per interval until Stop is called
// or ctx is done. Starting a running Poller has no effect.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

func (p *Poller[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	_, _ = p.query.Execute(ctx, p.call)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.query.Execute(ctx, p.call)
		}
	}
}

// Stop halts polling and waits for the loop to exit. In-flight results are discarded.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	p.query.abandon()
	cancel()
	<-done
}

// Running reports whether Start was called without a matching Stop.
func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller[T]) Refetch(ctx context.Context) (*model.Envelope[T], error) {
	return p.query.Execute(ctx, p.call)
}

func (p *Poller[T]) State() QueryState[T] {
	return p.query.State()
}
