package starlark

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.starlark.net/starlark"
)

const loggerKey = "alchemy.logger"

// threadLogger returns the logger stored on thread, or a discard logger.
func threadLogger(thread *starlark.Thread) *slog.Logger {
	if thread != nil {
		if l, ok := thread.Local(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// newThread creates a thread that prints to out and logs to logger. A
// maxSteps of zero leaves execution unbounded.
func newThread(name string, out io.Writer, logger *slog.Logger, maxSteps uint64) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			_, _ = fmt.Fprintln(out, msg)
		},
	}
	thread.SetLocal(loggerKey, logger)
	if maxSteps > 0 {
		thread.SetMaxExecutionSteps(maxSteps)
	}
	return thread
}

// cancelOnDone cancels thread when ctx ends. The returned func releases the
// watcher and must be called once execution is over.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	return func() { close(done) }
}
