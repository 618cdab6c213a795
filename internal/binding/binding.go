// Package binding adapts façade calls to observable UI state. Each binding
// keeps a loading flag, the last data and an error message, and reports every
// transition to an optional listener.
//
// A binding tags each invocation with a generation number. When a newer
// invocation starts before an older one settles, the older result is dropped
// and never overwrites the newer state.
package binding

import (
	"context"
	"errors"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// Fallback messages used when a failure is not an *httpclient.APIError.
const (
	MsgUnexpected       = "An unexpected error occurred"
	MsgSubmissionFailed = "Submission failed. Please try again."
	MsgFetchFailed      = "Failed to fetch data"
)

// Call is a façade call returning one envelope.
type Call[T any] func(ctx context.Context) (*model.Envelope[T], error)

// errorMessage returns the normalized message of err, or fallback.
func errorMessage(err error, fallback string) string {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func notify[S any](listener func(S), state S) {
	if listener != nil {
		listener(state)
	}
}
