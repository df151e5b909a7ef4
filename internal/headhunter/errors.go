package headhunter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// hh reports an exhausted daily negotiations quota with this error value.
const limitExceededValue = "limit_exceeded"

// ErrLimitExceeded is matched by errors.Is when the API refuses a negotiation
// because the résumé ran out of its submission quota.
var ErrLimitExceeded = errors.New("negotiations limit exceeded")

// APIError is a non-successful API response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	// Types and Values come from the "errors" array of the response body.
	Types     []string
	Values    []string
	RequestID string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: bad status %d", e.Method, e.Path, e.StatusCode)
	if len(e.Values) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Values, ", "))
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	return b.String()
}

func (e *APIError) Is(target error) bool {
	return target == ErrLimitExceeded && e.LimitExceeded()
}

func (e *APIError) LimitExceeded() bool {
	return slices.Contains(e.Values, limitExceededValue)
}

// BadResponseError is returned when a response body can not be decoded.
type BadResponseError struct {
	Path string
	Err  error
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("bad response from %s: %v", e.Path, e.Err)
}

func (e *BadResponseError) Unwrap() error { return e.Err }
