package binding

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

type recorder[S any] struct {
	mu     sync.Mutex
	states []S
}

func (r *recorder[S]) record(s S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder[S]) all() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]S(nil), r.states...)
}

func ok[T any](data T) Call[T] {
	return func(ctx context.Context) (*model.Envelope[T], error) {
		return &model.Envelope[T]{Data: data, Success: true, Status: http.StatusOK}, nil
	}
}

func fail[T any](err error) Call[T] {
	return func(ctx context.Context) (*model.Envelope[T], error) {
		return nil, err
	}
}

func TestQuery_Execute(t *testing.T) {
	rec := &recorder[QueryState[string]]{}
	q := NewQuery(rec.record)

	env, err := q.Execute(context.Background(), ok("Jumuah at 1:30"))
	require.NoError(t, err)
	assert.Equal(t, "Jumuah at 1:30", env.Data)

	states := rec.all()
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.Equal(t, QueryState[string]{Data: "Jumuah at 1:30"}, states[1])
	assert.Equal(t, states[1], q.State())
}

func TestQuery_ErrorMessages(t *testing.T) {
	q := NewQuery[string](nil)
	_, _ = q.Execute(context.Background(), ok("kept"))

	apiErr := &httpclient.APIError{Message: "Request timeout", Status: httpclient.StatusTimeout, Code: httpclient.CodeTimeout}
	_, err := q.Execute(context.Background(), fail[string](apiErr))
	assert.Same(t, apiErr, err)
	assert.Equal(t, "Request timeout", q.State().Error)
	assert.Equal(t, "kept", q.State().Data)
	assert.False(t, q.State().Loading)

	_, err = q.Execute(context.Background(), fail[string](errors.New("boom")))
	assert.Error(t, err)
	assert.Equal(t, MsgUnexpected, q.State().Error)

	_, err = q.Execute(context.Background(), ok("fresh"))
	require.NoError(t, err)
	assert.Empty(t, q.State().Error)
}

func TestQuery_SupersededResultIsDiscarded(t *testing.T) {
	q := NewQuery[string](nil)
	started := make(chan struct{})
	release := make(chan struct{})
	slowDone := make(chan struct{})

	go func() {
		defer close(slowDone)
		_, _ = q.Execute(context.Background(), func(ctx context.Context) (*model.Envelope[string], error) {
			close(started)
			<-release
			return &model.Envelope[string]{Data: "slow", Success: true}, nil
		})
	}()
	<-started

	_, err := q.Execute(context.Background(), ok("fast"))
	require.NoError(t, err)
	close(release)
	<-slowDone

	assert.Equal(t, "fast", q.State().Data)
	assert.False(t, q.State().Loading)
}

func TestQuery_Reset(t *testing.T) {
	rec := &recorder[QueryState[int]]{}
	q := NewQuery(rec.record)
	_, _ = q.Execute(context.Background(), ok(42))
	_, _ = q.Execute(context.Background(), fail[int](errors.New("x")))

	q.Reset()
	assert.Equal(t, QueryState[int]{}, q.State())
	states := rec.all()
	assert.Equal(t, QueryState[int]{}, states[len(states)-1])
}

func TestResource_MountAndDeps(t *testing.T) {
	calls := 0
	r := NewResource(func(ctx context.Context) (*model.Envelope[int], error) {
		calls++
		return &model.Envelope[int]{Data: calls, Success: true}, nil
	}, nil)
	ctx := context.Background()

	env, err := r.Mount(ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 1, env.Data)

	env, err = r.Mount(ctx, "2024-03")
	require.NoError(t, err)
	assert.Nil(t, env)

	fetched, err := r.SetDeps(ctx, "2024-03")
	require.NoError(t, err)
	assert.False(t, fetched)

	fetched, err = r.SetDeps(ctx, "2024-04")
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, 2, r.State().Data)

	_, err = r.Refetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, r.State().Data)
	assert.Equal(t, 3, calls)
}
