// Package poll provides the bounded poll-until-settled helper used at every
// wait site against the external editing and publishing surfaces.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the predicate never succeeds within the budget.
var ErrTimeout = errors.New("poll: timed out")

// Until invokes predicate every interval until it returns true, the timeout
// elapses, or ctx is cancelled. A predicate error aborts polling immediately;
// returning (false, nil) keeps waiting. The predicate is invoked once before
// the first interval.
func Until(ctx context.Context, interval, timeout time.Duration, predicate func(context.Context) (bool, error)) error {
	if interval <= 0 {
		return fmt.Errorf("poll: interval must be positive, got %v", interval)
	}
	if timeout <= 0 {
		return fmt.Errorf("poll: timeout must be positive, got %v", timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := predicate(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
