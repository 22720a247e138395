package engine

import "context"

// semaphore is a channel-based counting semaphore; tokens are pre-filled up
// to limit.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(limit int) *semaphore {
	if limit <= 0 {
		limit = 1
	}
	s := &semaphore{ch: make(chan struct{}, limit)}
	for i := 0; i < limit; i++ {
		s.ch <- struct{}{}
	}
	return s
}

// acquire blocks for a token. A context that is already done never acquires.
func (s *semaphore) acquire(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-s.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *semaphore) release() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}
