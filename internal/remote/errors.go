package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
)

// Reason classifies a remote failure
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonServer      Reason = "server-error"
	ReasonRateLimited Reason = "rate-limited"
	ReasonValidation  Reason = "validation"
	ReasonNotFound    Reason = "not-found"
	ReasonAuth        Reason = "auth"
	ReasonConflict    Reason = "conflict"
)

// Transient reports whether failures with this reason may succeed when
// retried.
func (r Reason) Transient() bool {
	switch r {
	case ReasonTimeout, ReasonServer, ReasonRateLimited:
		return true
	default:
		return false
	}
}

// Error is a classified failure from the remote planning service
type Error struct {
	Op         string
	Reason     Reason
	StatusCode int
	Message    string

	// RetryAfter is the server-provided wait for rate-limited responses;
	// zero when absent.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "remote %s: %s", e.Op, e.Reason)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the error is worth retrying
func (e *Error) Transient() bool {
	return e.Reason.Transient()
}

// ReasonOf extracts the classification of err. Unclassified context
// deadlines and network timeouts count as ReasonTimeout.
func ReasonOf(err error) (Reason, bool) {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Reason, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout, true
	}
	return "", false
}

// IsTransient is the default transient-error predicate
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	reason, ok := ReasonOf(err)
	return ok && reason.Transient()
}

// IsNotFound reports whether err is a remote not-found failure
func IsNotFound(err error) bool {
	reason, ok := ReasonOf(err)
	return ok && reason == ReasonNotFound
}

// RetryAfterOf returns the server-provided retry delay carried by err
func RetryAfterOf(err error) (time.Duration, bool) {
	var remoteErr *Error
	if errors.As(err, &remoteErr) && remoteErr.RetryAfter > 0 {
		return remoteErr.RetryAfter, true
	}
	return 0, false
}

// RetryExhaustedError is returned when a call kept failing transiently
// past the retry limit. Last is the final underlying error.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts in %s: %v", e.Op, e.Attempts, e.Elapsed, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// BatchError reports a failed ApplyBatch. Operations applied before the
// failure have been compensated; RollbackErrors lists compensations
// that did not succeed. Reassigned maps the ids of deleted items that
// compensation recreated to the ids the service gave them.
type BatchError struct {
	Index          int
	Failed         Operation
	Err            error
	RolledBack     int
	RollbackErrors []error
	Reassigned     map[string]string
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("batch operation %d (%s %s) failed: %v; rolled back %d",
		e.Index+1, e.Failed.Kind, e.Failed.ItemKey, e.Err, e.RolledBack)
	if len(e.RollbackErrors) > 0 {
		msg += fmt.Sprintf(", %d compensations failed: %v", len(e.RollbackErrors), errors.Join(e.RollbackErrors...))
	}
	if len(e.Reassigned) > 0 {
		olds := make([]string, 0, len(e.Reassigned))
		for old := range e.Reassigned {
			olds = append(olds, old)
		}
		sort.Strings(olds)
		pairs := make([]string, 0, len(olds))
		for _, old := range olds {
			pairs = append(pairs, old+" -> "+e.Reassigned[old])
		}
		msg += "; restored under new ids: " + strings.Join(pairs, ", ")
	}
	return msg
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Consistent reports whether every applied operation was compensated
func (e *BatchError) Consistent() bool {
	return len(e.RollbackErrors) == 0
}
