package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// ReconnectPolicy is a fixed schedule: after each connect attempt, wait
// Interval before checking the outcome, and give up after MaxAttempts checks.
type ReconnectPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Interval:    10 * time.Second,
		MaxAttempts: 5,
	}
}

// Allow reports whether another attempt may be made after attempts failed
// checks. A non-positive MaxAttempts never gives up.
func (p ReconnectPolicy) Allow(attempts int) bool {
	return p.MaxAttempts <= 0 || attempts < p.MaxAttempts
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// IsNotFound indicates a definitive NXDOMAIN, which shouldn't be retried
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
		if errors.Is(opErr.Err, syscall.ECONNRESET) {
			return true
		}
		if errors.Is(opErr.Err, syscall.EPIPE) {
			return true
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return true
		}
	}

	return false
}

// Classify returns a metric label for a connect error.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRetryableError(err):
		return "transient"
	default:
		return "error"
	}
}
