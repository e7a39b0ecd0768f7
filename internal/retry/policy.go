// Package retry applies backoff policies to transient failures.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Policy encapsulates retry/backoff settings. It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy returns linear backoff from 200ms, capped at 5s, with 3 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: 200 * time.Millisecond, Max: 5 * time.Second, MaxRetries: 3}
}

// NewPolicy builds a policy; zero or unknown values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds a policy from validated configuration.
func FromConfig(c config.RetryConfig) Policy {
	return NewPolicy(c.Backoff, c.InitialDuration(), c.MaxDuration(), c.MaxRetries)
}

// Delay returns the wait before retry number retryCount (1-based).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial << (retryCount - 1)
		if d <= 0 {
			return p.Max
		}
	default:
		d = time.Duration(retryCount) * p.Initial
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Do runs fn until it succeeds, retries are exhausted or ctx ends. Classified
// errors that do not allow retries are returned immediately.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ce, ok := ferrors.AsClassified(err); ok && !ce.CanRetry() {
			return err
		}
		if attempt >= p.MaxRetries {
			return err
		}

		timer := time.NewTimer(p.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "retry canceled").
				WithContext("last_error", err.Error()).
				Build()
		case <-timer.C:
		}
	}
}
