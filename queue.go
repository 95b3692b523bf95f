package retlock

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/nyan233/retlock/internal/container"
	"github.com/nyan233/retlock/internal/gid"
)

// queueNode is one goroutine's queue entry for one QueueLock, reused across
// acquisitions. The fields a neighbor touches (next, waiting) sit on a
// different cache line from the owner-only counter, so a waiter spinning on
// its own waiting flag never bounces the holder's reentry path.
type queueNode struct {
	next    atomic.Pointer[queueNode]
	waiting uint32                   // 0 = may proceed; >=1 = wait; >=2 also encodes the holder's depth (adaptive)
	_       [cacheLineSize - 12]byte // 8 (next) + 4 (waiting)
	counter uint64                   // held depth, written only by the owning goroutine
	_       [cacheLineSize - unsafe.Sizeof(uint64(0))]byte
}

const _ uintptr = -(unsafe.Sizeof(queueNode{}) % cacheLineSize)

// QueueLock is a reentrant MCS-style queue lock. Goroutines enqueue
// per-goroutine nodes on a single atomic tail pointer and each waiter spins
// on its own node's flag, so contention never bounces a shared line; the
// releasing goroutine hands the lock to its successor directly. Acquisition
// order among distinct goroutines is FIFO in tail-swap order; reentry by
// the holder is purely local and does not touch the queue.
//
// The adaptive flavor (NewAdaptiveQueueLock) additionally broadcasts the
// holder's current recursion depth into the successor's wait flag: a waiter
// that reads a depth >= 2 yields instead of spinning, since a deeply nested
// holder will not release soon.
//
// The zero value is not usable; construct with NewQueueLock or
// NewAdaptiveQueueLock.
type QueueLock struct {
	noCopy   noCopy
	tail     atomic.Pointer[queueNode]
	adaptive bool
	slots    *container.SlotArray[queueNode]
}

// NewQueueLock builds a FIFO reentrant queue lock.
func NewQueueLock() *QueueLock {
	return &QueueLock{slots: container.NewSlotArray[queueNode]()}
}

// NewAdaptiveQueueLock builds a queue lock that broadcasts the holder's
// nesting depth to its successor.
func NewAdaptiveQueueLock() *QueueLock {
	l := NewQueueLock()
	l.adaptive = true
	return l
}

// Lock acquires the lock, enqueueing behind any current waiters.
func (l *QueueLock) Lock() {
	node := l.slots.Get(gid.ID())
	if node.counter > 0 { // reentry: only the holder's counter is non-zero
		node.counter++
		l.publishDepth(node)
		return
	}

	node.counter = 1
	node.next.Store(nil)
	atomic.StoreUint32(&node.waiting, 1)

	pred := l.tail.Swap(node)
	if pred == nil {
		atomic.StoreUint32(&node.waiting, 0)
		return
	}
	pred.next.Store(node)

	for i := 0; ; i++ {
		w := atomic.LoadUint32(&node.waiting)
		if w == 0 {
			return
		}
		if l.adaptive && w >= 2 {
			// holder is w deep in nested sections; spinning buys nothing
			runtime.Gosched()
			continue
		}
		if i%10 == 0 {
			runtime.Gosched()
		}
		if i%100 == 0 {
			time.Sleep(time.Duration(1+i/100) * time.Nanosecond)
		}
	}
}

// TryLock acquires the lock only if no goroutine holds it or waits for it.
// A false return leaves the queue untouched.
func (l *QueueLock) TryLock() bool {
	node := l.slots.Get(gid.ID())
	if node.counter > 0 {
		node.counter++
		l.publishDepth(node)
		return true
	}

	node.counter = 1
	node.next.Store(nil)
	atomic.StoreUint32(&node.waiting, 1)

	if l.tail.Load() != nil || !l.tail.CompareAndSwap(nil, node) {
		node.counter = 0
		return false
	}
	atomic.StoreUint32(&node.waiting, 0)
	return true
}

// Unlock releases one level of nesting. The release that drops the counter
// to zero hands the lock to the oldest waiter, if any.
func (l *QueueLock) Unlock() {
	node := l.slots.Get(gid.ID())
	if node.counter == 0 {
		panic("retlock: unlock of QueueLock not held by this goroutine")
	}
	node.counter--

	if l.adaptive {
		if succ := node.next.Load(); succ != nil {
			// a zero here IS the handoff; >=1 keeps the successor
			// waiting and tells it how deep we still are
			atomic.StoreUint32(&succ.waiting, uint32(node.counter))
			if node.counter == 0 {
				return
			}
		}
	}
	if node.counter > 0 {
		return
	}

	succ := node.next.Load()
	if succ == nil {
		if l.tail.CompareAndSwap(node, nil) {
			return // queue drained
		}
		// a successor is mid-enqueue; its link is imminent
		for succ = node.next.Load(); succ == nil; succ = node.next.Load() {
			runtime.Gosched()
		}
	}
	atomic.StoreUint32(&succ.waiting, 0)
}

func (l *QueueLock) publishDepth(node *queueNode) {
	if !l.adaptive {
		return
	}
	if succ := node.next.Load(); succ != nil {
		atomic.StoreUint32(&succ.waiting, uint32(node.counter))
	}
}
