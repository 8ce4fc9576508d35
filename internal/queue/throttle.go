package queue

import (
	"context"
	"sync"
	"time"
)

// Throttle wraps a JobHandler so that jobs after the first wait out the
// configured delay before running. The consumer delivers one job at a time,
// so this spaces the external calls the same way a synchronous batch does.
func Throttle(h JobHandler, delay time.Duration) JobHandler {
	if delay <= 0 {
		return h
	}

	var mu sync.Mutex
	first := true

	return func(ctx context.Context, job *TranscribeJob) error {
		mu.Lock()
		skip := first
		first = false
		mu.Unlock()

		if !skip {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}

		return h(ctx, job)
	}
}
