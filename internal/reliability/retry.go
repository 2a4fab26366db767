package reliability

import (
	"context"
	"time"
)

// Policy bounds how often and how fast a failed call is retried.
type Policy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// Retry runs fn until it succeeds, reports the error as permanent, or the
// attempts run out. fn returns retry=false for errors not worth repeating.
func Retry(ctx context.Context, p Policy, fn func(attempt int) (retry bool, err error)) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		var retry bool
		retry, err = fn(attempt)
		if err == nil || !retry || attempt == p.Attempts-1 {
			return err
		}
		timer := time.NewTimer(ExponentialBackoff(attempt, p.Base, p.Cap))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
