// Package sysutil collects the small generic helpers shared across the
// monitoring core's subsystems, generalized from desertwitch-sesmon's
// util.go into a reusable package.
package sysutil

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"
)

// ErrInvalidArgument is the shared sentinel for constructor/argument
// validation failures across the monitoring core's subsystems.
var ErrInvalidArgument = errors.New("invalid argument")

// Ptr converts a value of type T to a pointer of type *T.
func Ptr[T any](v T) *T {
	return &v
}

// RecoverGoPanic recovers a panic and logs it to logger, or stderr if
// logger is nil. Deferred at the top of every supervised goroutine.
func RecoverGoPanic(desc string, logger *log.Logger) {
	r := recover()
	if r == nil {
		return
	}
	buf := debug.Stack()
	if logger != nil {
		logger.Printf("(%s) panic recovered: %v: %s", desc, r, buf)
	} else {
		fmt.Fprintf(os.Stderr, "(%s) panic recovered: %v: %s\n", desc, r, buf)
	}
}

// WithRetries runs fn up to attempts times, waiting interval between
// attempts and invoking onAttemptErr after each failure, aborting early if
// ctx is done.
func WithRetries(ctx context.Context, fn func() error, onAttemptErr func(attempt int, err error), attempts int, interval time.Duration) (int, error) {
	var e error
	var attempt int

	if fn == nil {
		return attempt, fmt.Errorf("%w: function cannot be nil", ErrInvalidArgument)
	}

	for range attempts {
		if err := ctx.Err(); err != nil {
			return attempt, fmt.Errorf("context error: %w", err)
		}

		e = fn()
		attempt++

		if e == nil {
			return attempt, nil
		}

		if onAttemptErr != nil {
			onAttemptErr(attempt, e)
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return attempt, fmt.Errorf("context error: %w", ctx.Err())
			case <-time.After(interval):
			}
		}
	}

	return attempt, e
}
