package feeder

import (
	"fmt"
	"sync/atomic"
)

// ErrBreakerOpen means the breaker tripped and submissions must stop until
// an operator resumes it.
var ErrBreakerOpen = fmt.Errorf("feeder: breaker open")

// Breaker halts rate submissions after too many consecutive failures, or on
// manual operator intervention. The fast path is atomic; threshold <= 0
// disables the error limit.
type Breaker struct {
	halted atomic.Bool

	consecutiveErrors    atomic.Int64
	maxConsecutiveErrors atomic.Int64
}

func NewBreaker(maxConsecutiveErrors int64) *Breaker {
	b := &Breaker{}
	b.maxConsecutiveErrors.Store(maxConsecutiveErrors)
	return b
}

// Halt trips the breaker manually.
func (b *Breaker) Halt() {
	if b == nil {
		return
	}
	b.halted.Store(true)
}

// Resume clears the breaker and the consecutive-error count.
func (b *Breaker) Resume() {
	if b == nil {
		return
	}
	b.halted.Store(false)
	b.consecutiveErrors.Store(0)
}

// Halted reports whether the breaker is currently open.
func (b *Breaker) Halted() bool {
	return b != nil && b.halted.Load()
}

// Allow is the fast-path check before a submission.
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	if b.halted.Load() {
		return ErrBreakerOpen
	}
	maxErr := b.maxConsecutiveErrors.Load()
	if maxErr > 0 && b.consecutiveErrors.Load() >= maxErr {
		b.halted.Store(true)
		return ErrBreakerOpen
	}
	return nil
}

// OnSuccess clears the consecutive-error count after a submission lands.
func (b *Breaker) OnSuccess() {
	if b == nil {
		return
	}
	b.consecutiveErrors.Store(0)
}

// OnError records one failed submission.
func (b *Breaker) OnError() {
	if b == nil {
		return
	}
	b.consecutiveErrors.Add(1)
}
