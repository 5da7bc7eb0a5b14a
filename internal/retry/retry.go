// Package retry provides the shared retry policy for outbound calls.
// A Policy parameterizes max attempts, base delay, and multiplier so the
// weather and gateway clients use one implementation instead of duplicating
// backoff loops per call site.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes an exponential backoff schedule.
type Policy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the upstream-call contract: three attempts starting
// at one second, doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
}

// Do runs op under the policy, sleeping between failed attempts. The last
// error is returned once attempts are exhausted or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	if p.MaxAttempts == 0 {
		p = DefaultPolicy()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
	)
}
