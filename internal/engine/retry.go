package engine

import (
	"context"
	"errors"
	"net"
	"time"
)

// isRetryable returns true for transient transport errors worth retrying.
// Deadline expiry of the caller's context is never retried.
func isRetryable(err error) bool {
	if isDeadline(err) || errors.Is(err, context.Canceled) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// withDeadline runs fn under a child context bounded by d. d <= 0 means no extra bound.
func withDeadline[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
