// Package retlock provides reentrant mutual-exclusion locks for goroutines,
// shaped to minimize contention cost on multicore hardware: a packed 64-bit
// atomic lock word, per-goroutine recursion counters, a write-free reentry
// fast path, pluggable contention backoff, and an MCS-style queue variant
// with adaptive waiting.
//
// All variants are interchangeable behind Locker:
//
//	l := retlock.NewSplitLock(nil)
//	l.Lock()
//	l.Lock() // reentrant
//	l.Unlock()
//	l.Unlock()
//
// Waiting never blocks on an OS primitive; it is spinning, cooperative
// yields, or nanosecond-scale sleeps. The spinning variants are unfair;
// QueueLock is FIFO among distinct goroutines.
package retlock

import "sync"

// Version is stamped into the benchmark CSV output.
const Version = "1.0.0"

// Locker is the surface every lock variant exposes. It extends sync.Locker
// with a non-blocking attempt. All methods are reentrant: the holding
// goroutine always succeeds, and must release once per acquisition.
//
// Unlock without a matching acquisition, or by a non-holder, is a contract
// violation and panics.
type Locker interface {
	Lock()
	TryLock() bool
	Unlock()
}

func init() {
	_ = Locker(new(SplitLock))
	_ = Locker(new(SameLineLock))
	_ = Locker(new(QueueLock))
	_ = sync.Locker(new(SplitLock))
	_ = sync.Locker(new(SameLineLock))
	_ = sync.Locker(new(QueueLock))
	_ = Locker(new(sync.Mutex))
}

// noCopy triggers go vet's copylocks check. Locks must not be copied after
// first use.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
