// Package async runs post-response work in goroutines detached from the
// request lifecycle, with panic recovery and request-ID propagation. Driver
// dispatch and best-effort side effects go through here so a slow or failing
// task can never delay or abort the caller's response.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/quickride/quickride/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds values propagated from the request into an async task.
type TaskContext struct {
	RequestID string
	StartTime time.Time
	TaskName  string
}

// CaptureContext snapshots the current context values for async propagation.
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		RequestID: logger.RequestIDFromContext(ctx),
		StartTime: time.Now(),
		TaskName:  taskName,
	}
}

// NewContext builds a fresh context carrying the captured values. The parent
// request context is deliberately not reused: it is cancelled as soon as the
// response is written.
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.RequestID != "" {
		ctx = logger.ContextWithRequestID(ctx, tc.RequestID)
	}
	return ctx
}

// Go runs fn in a goroutine with panic recovery and request-ID propagation.
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx := tc.NewContext()
		fn(newCtx)

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// GoWithTimeout runs fn in a goroutine with a deadline.
func GoWithTimeout(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx, cancel := context.WithTimeout(tc.NewContext(), timeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(newCtx)
		}()

		select {
		case <-done:
		case <-newCtx.Done():
			logger.WarnContext(newCtx, "async task timed out",
				zap.String("task", tc.TaskName),
				zap.Duration("timeout", timeout),
			)
		}
	}()
}

func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
