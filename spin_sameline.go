package retlock

import (
	"sync/atomic"

	"github.com/nyan233/retlock/internal/gid"
)

// Same-line lock word layout:
//
//	|63          32|31           0|
//	 \   owner    / \   counter  /
//
// A non-zero counter doubles as the held flag; there is no metric field and
// no separate per-goroutine slot.
func packSame(owner, counter uint32) uint64 {
	return uint64(owner)<<32 | uint64(counter)
}

func sameOwner(word uint64) uint32   { return uint32(word >> 32) }
func sameCounter(word uint64) uint32 { return uint32(word) }

// SameLineLock is a reentrant spin lock that keeps owner and recursion
// counter fused in a single packed word. Reentry and release write the
// repacked word with a plain store, not a read-modify-write: between the
// acquisition CAS and the final release only the unique owner writes the
// word, so the store cannot lose a concurrent update. That invariant is
// load-bearing; do not replace the stores with fetch-add.
//
// Suits workloads where the split variant's extra cache-line traffic costs
// more than atomic stores on the reentry path. Unfair, like SplitLock.
type SameLineLock struct {
	noCopy  noCopy
	state   uint64 // packed; accessed only through sync/atomic
	backoff Backoff
}

// NewSameLineLock builds a SameLineLock with the given backoff policy; nil
// means DefaultBackoff.
func NewSameLineLock(b Backoff) *SameLineLock {
	if b == nil {
		b = DefaultBackoff
	}
	return &SameLineLock{backoff: b}
}

// Lock acquires the lock, waiting per the configured backoff policy. The
// Adaptive policy reads the holder's counter straight out of the observed
// word.
func (l *SameLineLock) Lock() {
	for i := 0; ; i++ {
		ok, observed := l.tryLock()
		if ok {
			return
		}
		l.backoff.Wait(i, sameCounter(observed))
	}
}

// TryLock attempts to acquire the lock without waiting. A false return
// leaves the lock word untouched.
func (l *SameLineLock) TryLock() bool {
	ok, _ := l.tryLock()
	return ok
}

func (l *SameLineLock) tryLock() (bool, uint64) {
	self := gid.ID()
	current := atomic.LoadUint64(&l.state)
	if sameOwner(current) == self {
		atomic.StoreUint64(&l.state, current+1)
		return true, current
	}
	if sameCounter(current) != 0 {
		return false, current
	}
	if atomic.CompareAndSwapUint64(&l.state, current, packSame(self, 1)) {
		return true, current
	}
	return false, current
}

// Unlock releases one level of nesting, clearing the owner when the fused
// counter reaches zero.
func (l *SameLineLock) Unlock() {
	self := gid.ID()
	current := atomic.LoadUint64(&l.state)
	if sameOwner(current) != self {
		panic("retlock: unlock of SameLineLock not held by this goroutine")
	}
	if sameCounter(current) == 0 {
		panic("retlock: SameLineLock counter underflow")
	}
	desired := current - 1
	if sameCounter(desired) == 0 {
		desired = 0 // clear the owner with the same store
	}
	atomic.StoreUint64(&l.state, desired)
}
