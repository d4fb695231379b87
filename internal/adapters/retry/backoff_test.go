package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "context canceled",
			err:      context.Canceled,
			expected: false,
		},
		{
			name:     "context deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: false,
		},
		{
			name:     "connection refused",
			err:      &net.OpError{Err: syscall.ECONNREFUSED},
			expected: true,
		},
		{
			name:     "connection reset",
			err:      &net.OpError{Err: syscall.ECONNRESET},
			expected: true,
		},
		{
			name:     "network unreachable",
			err:      &net.OpError{Err: syscall.ENETUNREACH},
			expected: true,
		},
		{
			name:     "dns not found",
			err:      &net.DNSError{IsNotFound: true},
			expected: false,
		},
		{
			name:     "dns temporary",
			err:      &net.DNSError{IsTemporary: true},
			expected: true,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(nil); got != "ok" {
		t.Errorf("expected ok, got %s", got)
	}
	if got := Classify(&net.OpError{Err: syscall.ECONNREFUSED}); got != "transient" {
		t.Errorf("expected transient, got %s", got)
	}
	if got := Classify(errors.New("bad handshake")); got != "error" {
		t.Errorf("expected error, got %s", got)
	}
}

func TestReconnectPolicy_Allow(t *testing.T) {
	p := DefaultReconnectPolicy()
	if p.Interval != 10*time.Second || p.MaxAttempts != 5 {
		t.Fatalf("unexpected default policy: %+v", p)
	}

	for attempts := 0; attempts < 5; attempts++ {
		if !p.Allow(attempts) {
			t.Errorf("expected attempt after %d failures to be allowed", attempts)
		}
	}
	if p.Allow(5) {
		t.Error("expected policy to give up after 5 failures")
	}

	unbounded := ReconnectPolicy{Interval: time.Second}
	if !unbounded.Allow(1000) {
		t.Error("expected unbounded policy to always allow")
	}
}
