// Package util holds small cross-cutting helpers shared by the service
// packages that do not belong to any single domain area.
package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pingcap/errors"
)

// ReconnectBackoff builds the exponential backoff policy used when a
// service reconnects to an upstream it depends on (dbutil.Open uses it,
// through Retry, to ping its database pool): start at one second, grow by
// the library's default factor of 1.5 with its default ±50% jitter, cap
// each wait at thirty seconds, and retry forever until the context is
// cancelled. The cap is fixed; it is not configurable.
func ReconnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Retry runs op with ReconnectBackoff until it succeeds or ctx is done,
// calling notify (if non-nil) before each retry sleep.
func Retry(ctx context.Context, op func() error, notify func(err error, wait time.Duration)) error {
	b := backoff.WithContext(ReconnectBackoff(), ctx)
	wrapped := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}
	var n backoff.Notify
	if notify != nil {
		n = notify
	}
	if err := backoff.RetryNotify(wrapped, b, n); err != nil {
		return errors.Trace(err)
	}
	return nil
}
