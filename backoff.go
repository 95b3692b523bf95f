package retlock

import (
	"runtime"
	"time"
)

// Backoff is the rule a waiter follows between failed acquisition attempts.
// The policy is chosen at lock construction so the retry loop carries no
// per-iteration selection.
//
// Wait receives the zero-based attempt index and a depth hint: the last
// observed recursion metric (SplitLock) or holder counter (SameLineLock).
// The hint is relaxed and advisory; correctness never depends on it.
type Backoff interface {
	Wait(attempt int, depth uint32)
}

// DefaultBackoff is used when a constructor receives a nil policy.
var DefaultBackoff Backoff = Exponential{}

// NoSleep busy-spins. Cheapest under short critical sections and low
// goroutine oversubscription; pathological otherwise.
type NoSleep struct{}

func (NoSleep) Wait(int, uint32) {}

// Yield hands the processor to the scheduler on every failed attempt.
type Yield struct{}

func (Yield) Wait(int, uint32) { runtime.Gosched() }

// Exponential sleeps 2^(attempt/10) nanoseconds, capped, and yields every
// 10 attempts.
type Exponential struct{}

const maxBackoffShift = 20 // caps a single sleep at ~1ms

func (Exponential) Wait(attempt int, _ uint32) {
	if attempt%10 == 0 {
		runtime.Gosched()
	}
	shift := attempt / 10
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	time.Sleep(time.Duration(1<<shift) * time.Nanosecond)
}

// Adaptive spins while the holder looks shallow and sleeps in proportion to
// the holder's observed nesting depth once it is >= 2: a deeply nested
// holder is unlikely to release soon, so burning the processor buys
// nothing.
type Adaptive struct{}

func (Adaptive) Wait(attempt int, depth uint32) {
	if depth < 2 {
		return
	}
	shift := attempt / 10
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := time.Duration(uint64(depth)<<shift) * time.Nanosecond
	if d > time.Millisecond {
		d = time.Millisecond
	}
	time.Sleep(d)
}
