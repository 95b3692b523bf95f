package retlock

import (
	"sync/atomic"
	"unsafe"

	"github.com/nyan233/retlock/internal/container"
	"github.com/nyan233/retlock/internal/gid"
)

// cacheLineSize is the contractual layout unit for the packed lock words
// and the per-goroutine slots.
const cacheLineSize = 64

// Split-line lock word layout:
//
//	|63          32|31    |30             0|
//	 \   owner    / locked \    metric    /
const (
	splitOwnerShift = 32
	splitLockedBit  = uint64(1) << 31
	splitMetricMask = splitLockedBit - 1
)

func packSplit(owner uint32, metric uint64) uint64 {
	return uint64(owner)<<splitOwnerShift | splitLockedBit | metric
}

func splitOwner(word uint64) uint32  { return uint32(word >> splitOwnerShift) }
func splitMetric(word uint64) uint64 { return word & splitMetricMask }

// splitSlot is one goroutine's recursion state for one SplitLock. Only the
// holder touches it, on a cache line of its own, away from the contended
// lock word.
type splitSlot struct {
	counter    uint64
	counterMax uint64
	_          [cacheLineSize - 16]byte
}

const _ uintptr = -(unsafe.Sizeof(splitSlot{}) % cacheLineSize)
const _ uintptr = -(unsafe.Sizeof(uint64(0)) - 8) // packed word must be one atomic machine word

// SplitLock is a reentrant spin lock whose packed word
// {owner, lockbit, recursion metric} lives on its own cache line while the
// holder's recursion counter lives in a per-goroutine slot on a separate
// line. Reentry therefore costs one atomic load and a local increment, no
// read-modify-write. On the final release the holder folds half of its
// maximum nesting depth into the metric, which waiters feed to the Adaptive
// backoff policy.
//
// SplitLock is unfair. The zero value is not usable; construct with
// NewSplitLock.
type SplitLock struct {
	noCopy  noCopy
	_       [cacheLineSize - unsafe.Sizeof(uint64(0))]byte
	state   uint64 // packed; accessed only through sync/atomic
	_       [cacheLineSize - unsafe.Sizeof(uint64(0))]byte
	slots   *container.SlotArray[splitSlot]
	backoff Backoff
}

// NewSplitLock builds a SplitLock with the given backoff policy; nil means
// DefaultBackoff.
func NewSplitLock(b Backoff) *SplitLock {
	if b == nil {
		b = DefaultBackoff
	}
	return &SplitLock{
		slots:   container.NewSlotArray[splitSlot](),
		backoff: b,
	}
}

// Lock acquires the lock, waiting per the configured backoff policy.
func (l *SplitLock) Lock() {
	for i := 0; ; i++ {
		ok, observed := l.tryLock()
		if ok {
			return
		}
		l.backoff.Wait(i, uint32(splitMetric(observed)))
	}
}

// TryLock attempts to acquire the lock without waiting. A false return
// leaves the lock word untouched.
func (l *SplitLock) TryLock() bool {
	ok, _ := l.tryLock()
	return ok
}

func (l *SplitLock) tryLock() (bool, uint64) {
	self := gid.ID()
	current := atomic.LoadUint64(&l.state)
	if splitOwner(current) == self {
		slot := l.slots.Get(self)
		slot.counter++
		if slot.counter > slot.counterMax {
			slot.counterMax = slot.counter
		}
		return true, current
	}
	if current&splitLockedBit != 0 {
		return false, current
	}
	desired := packSplit(self, splitMetric(current))
	if atomic.CompareAndSwapUint64(&l.state, current, desired) {
		slot := l.slots.Get(self)
		slot.counter = 1
		slot.counterMax = 1
		return true, desired
	}
	return false, current
}

// Unlock releases one level of nesting. The release that drops the counter
// to zero frees the lock and publishes the updated recursion metric.
func (l *SplitLock) Unlock() {
	self := gid.ID()
	current := atomic.LoadUint64(&l.state)
	if splitOwner(current) != self {
		panic("retlock: unlock of SplitLock not held by this goroutine")
	}
	slot := l.slots.Get(self)
	if slot.counter == 0 {
		panic("retlock: SplitLock counter underflow")
	}
	slot.counter--
	if slot.counter > 0 {
		return
	}
	metric := splitMetric(current) + slot.counterMax/2
	if metric > splitMetricMask {
		metric = splitMetricMask
	}
	atomic.StoreUint64(&l.state, metric) // owner = 0, unlocked
}
