package binding

import (
	"context"
	"sync"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// FormState is the observable state of a Form.
type FormState struct {
	Submitting bool
	Success    bool
	Error      string
}

// Form tracks a single mutation such as a contact message or a subscription.
type Form[Req, Resp any] struct {
	mu       sync.Mutex
	state    FormState
	gen      uint64
	onChange func(FormState)
}

func NewForm[Req, Resp any](onChange func(FormState)) *Form[Req, Resp] {
	return &Form[Req, Resp]{onChange: onChange}
}

func (f *Form[Req, Resp]) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit sends req through call. Success is set only when call returns no error.
func (f *Form[Req, Resp]) Submit(ctx context.Context, call func(context.Context, Req) (*model.Envelope[Resp], error), req Req) (*model.Envelope[Resp], error) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.state = FormState{Submitting: true}
	started := f.state
	f.mu.Unlock()
	notify(f.onChange, started)

	env, err := call(ctx, req)

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return env, err
	}
	f.state.Submitting = false
	if err != nil {
		f.state.Error = errorMessage(err, MsgSubmissionFailed)
	} else {
		f.state.Success = true
	}
	settled := f.state
	f.mu.Unlock()
	notify(f.onChange, settled)
	return env, err
}

func (f *Form[Req, Resp]) Reset() {
	f.mu.Lock()
	f.gen++
	f.state = FormState{}
	f.mu.Unlock()
	notify(f.onChange, FormState{})
}
