package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrBusy = errors.New("database busy")

const (
	baseBackoff = 25 * time.Millisecond
	maxBackoff  = time.Second
)

// backoff returns the wait before retry attempt n, doubling up to maxBackoff.
func backoff(attempt int) time.Duration {
	if attempt > 10 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// their extended codes.
func isBusy(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	code := serr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// withBusyRetry runs op until it succeeds, fails with a non-busy error, or
// the busy budget is spent.
func withBusyRetry(ctx context.Context, budget time.Duration, op func() error) error {
	deadline := time.Now().Add(budget)
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || !isBusy(err) {
			return err
		}

		wait := backoff(attempt)
		if time.Now().Add(wait).After(deadline) {
			return fmt.Errorf("%w after %d attempts: %v", ErrBusy, attempt+1, err)
		}

		slog.WarnContext(ctx, "SQLite busy, retrying",
			"attempt", attempt+1,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
