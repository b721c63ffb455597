package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error is a failed provider call, carrying enough detail to decide
// whether a retry could succeed.
type Error struct {
	Provider string
	Status   int    // HTTP status when the backend reported one, 0 otherwise
	Code     string // backend error code, when present
	Message  string
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Code != "":
		return fmt.Sprintf("%s: %s (status %d, code %s)", e.Provider, e.Message, e.Status, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

// IsTransient reports whether err is worth retrying: rate limiting, a
// server-side failure, or a timed-out call. Cancellation and client-side
// errors are permanent.
func IsTransient(err error, retryableStatus []int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perr *Error
	if errors.As(err, &perr) {
		for _, status := range retryableStatus {
			if perr.Status == status {
				return true
			}
		}
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}
