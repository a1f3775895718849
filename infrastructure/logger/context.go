package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

type ctxKey struct{}

// holder lets atomic.Pointer carry any Logger implementation.
type holder struct{ l Logger }

var (
	defaultLog  atomic.Pointer[holder]
	defaultOnce sync.Once
)

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or Default when ctx
// carries none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Default()
}

// SetDefault replaces the process-wide logger returned by Default. nil is
// ignored.
func SetDefault(l Logger) {
	if l != nil {
		defaultLog.Store(&holder{l: l})
	}
}

// Default returns the logger installed by SetDefault. Until one is set it
// is a warn-level stderr logger.
func Default() Logger {
	if h := defaultLog.Load(); h != nil {
		return h.l
	}
	defaultOnce.Do(func() {
		l, err := New(Config{Level: "warn", OutputPaths: []string{"stderr"}})
		if err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: failed to create fallback logger: %v\n", err)
			l = NewNop()
		}
		defaultLog.CompareAndSwap(nil, &holder{l: l})
	})
	return defaultLog.Load().l
}
