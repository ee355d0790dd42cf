package transport

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultRetryDelay = 10 * time.Second

// RetryPolicy builds a fresh schedule for one supervisor run.
type RetryPolicy func() backoff.BackOff

// FixedRetry waits d between every failed connect attempt, forever.
func FixedRetry(d time.Duration) RetryPolicy {
	if d <= 0 {
		d = DefaultRetryDelay
	}

	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// ExponentialRetry grows the delay from initial up to maxDelay and never gives up.
func ExponentialRetry(initial, maxDelay time.Duration) RetryPolicy {
	if initial <= 0 {
		initial = DefaultRetryDelay
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = maxDelay
		b.MaxElapsedTime = 0
		b.Reset()

		return b
	}
}

// nextDelay returns the next wait, restarting schedules that report backoff.Stop.
func nextDelay(b backoff.BackOff) time.Duration {
	d := b.NextBackOff()
	if d != backoff.Stop {
		return d
	}
	b.Reset()
	if d = b.NextBackOff(); d != backoff.Stop {
		return d
	}

	return DefaultRetryDelay
}
