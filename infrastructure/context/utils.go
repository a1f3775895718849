// Package context holds the shared timeout helpers used at process and
// request boundaries.
package context

import (
	"context"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultPingTimeout     = 5 * time.Second
)

// WithPingTimeout bounds a connectivity check.
func WithPingTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultPingTimeout)
}

// WithShutdownTimeout returns a fresh context for shutdown work; it ignores
// cancellation of whatever triggered the shutdown.
func WithShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultShutdownTimeout)
}

// WithTimeoutOrDefault applies d, or DefaultTimeout when d is not positive.
func WithTimeoutOrDefault(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(parent, d)
}

// Detached keeps ctx's values but not its cancellation, bounded by d. Work
// started after a response is written uses it so the request ending does not
// abort it.
func Detached(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return WithTimeoutOrDefault(context.WithoutCancel(ctx), d)
}
