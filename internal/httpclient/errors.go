package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Error codes assigned by Normalize.
const (
	CodeNetwork = "NETWORK_ERROR"
	CodeTimeout = "TIMEOUT_ERROR"
	CodeUnknown = "UNKNOWN_ERROR"
)

const (
	StatusNetwork = 0
	StatusTimeout = http.StatusRequestTimeout
	StatusUnknown = http.StatusInternalServerError
)

// APIError is the single failure shape surfaced by the data-access layer.
// Status is always populated: 0 for network failures, 408 for deadline or
// cancellation, the upstream HTTP status for error responses and 500 otherwise.
type APIError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// IsClientError reports whether the status is in the 4xx range. Client errors are never retried.
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// statusError is produced by an attempt that reached the upstream but got a non-2xx reply.
type statusError struct {
	Status     int
	StatusText string
	Body       []byte
}

func (e *statusError) Error() string {
	return "upstream responded " + e.StatusText
}

// Normalize collapses any failure into an *APIError. Already-normalized
// errors are returned unchanged.
func Normalize(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var se *statusError
	switch {
	case isNetworkError(err):
		return &APIError{
			Message: "Network error. Please check your internet connection.",
			Status:  StatusNetwork,
			Code:    CodeNetwork,
			cause:   err,
		}
	case isCancellation(err):
		return &APIError{
			Message: "Request timeout. Please try again.",
			Status:  StatusTimeout,
			Code:    CodeTimeout,
			cause:   err,
		}
	case errors.As(err, &se):
		return fromStatus(se)
	default:
		msg := err.Error()
		if msg == "" {
			msg = "An unexpected error occurred"
		}
		return &APIError{
			Message: msg,
			Status:  StatusUnknown,
			Code:    CodeUnknown,
			Details: err.Error(),
			cause:   err,
		}
	}
}

// isNetworkError matches transport failures that were not caused by a deadline or cancellation.
func isNetworkError(err error) bool {
	if isCancellation(err) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isCancellation(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func fromStatus(se *statusError) *APIError {
	apiErr := &APIError{
		Message: "An error occurred",
		Status:  se.Status,
		cause:   se,
	}
	if se.StatusText != "" {
		apiErr.Message = se.StatusText
	}
	if !gjson.ValidBytes(se.Body) {
		return apiErr
	}

	body := gjson.ParseBytes(se.Body)
	for _, field := range []string{"message", "error", "msg"} {
		if v := body.Get(field); v.Exists() && v.Type == gjson.String && v.String() != "" {
			apiErr.Message = v.String()
			break
		}
	}
	if v := body.Get("code"); v.Exists() && v.Type != gjson.Null {
		apiErr.Code = v.String()
	}
	if v := body.Get("details"); v.Exists() && v.Type != gjson.Null {
		apiErr.Details = v.Value()
	}
	return apiErr
}

// logError writes a best-effort diagnostic record for a failed call.
func logError(logger *zap.SugaredLogger, apiErr *APIError, context, requestID string) {
	if logger == nil {
		return
	}
	logger.Errorw("api request failed",
		"message", apiErr.Message,
		"status", apiErr.Status,
		"code", apiErr.Code,
		"context", context,
		"request_id", requestID,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
		"details", apiErr.Details,
	)
}
