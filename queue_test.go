package retlock

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nyan233/retlock/internal/gid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// awaitTailChange spins until the lock's tail moves off prev, i.e. the next
// waiter's enqueue swap has linearized.
func awaitTailChange(t *testing.T, l *QueueLock, prev *queueNode) *queueNode {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		cur := l.tail.Load()
		if cur != prev {
			return cur
		}
		if time.Now().After(deadline) {
			t.Fatal("waiter never enqueued")
		}
		runtime.Gosched()
	}
}

func TestQueueFIFO(t *testing.T) {
	l := NewQueueLock()
	l.Lock() // T0 holds; all waiters must queue behind it

	order := make(chan string, 3)
	released := make(chan struct{}, 3)
	spawn := func(name string) {
		prev := l.tail.Load()
		go func() {
			l.Lock()
			order <- name
			l.Unlock()
			released <- struct{}{}
		}()
		awaitTailChange(t, l, prev)
	}
	spawn("A")
	spawn("B")
	spawn("C")

	l.Unlock()
	assert.Equal(t, "A", <-order)
	assert.Equal(t, "B", <-order)
	assert.Equal(t, "C", <-order)
	for i := 0; i < 3; i++ {
		<-released
	}
	assert.True(t, tryLockElsewhere(l))
}

func TestQueueTryLockWhileHeld(t *testing.T) {
	l := NewQueueLock()
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		l.Lock()
		close(held)
		<-release
		l.Unlock()
		close(done)
	}()
	<-held
	before := l.tail.Load()
	assert.False(t, l.TryLock())
	assert.Same(t, before, l.tail.Load(), "a failed TryLock leaves the queue untouched")
	close(release)
	<-done
	assert.True(t, l.TryLock())
	l.Unlock()
}

func TestQueueReentryIsLocal(t *testing.T) {
	l := NewQueueLock()
	l.Lock()
	head := l.tail.Load()
	l.Lock()
	l.Lock()
	assert.Same(t, head, l.tail.Load(), "reentry must not touch the queue")
	l.Unlock()
	l.Unlock()
	l.Unlock()
	assert.Nil(t, l.tail.Load())
}

func TestQueueAdaptiveDepthBroadcast(t *testing.T) {
	l := NewAdaptiveQueueLock()
	self := gid.ID()
	l.Lock()
	myNode := l.slots.Get(self)

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
		l.Unlock()
		close(released)
	}()

	// wait for the successor to link in behind us
	deadline := time.Now().Add(5 * time.Second)
	var succ *queueNode
	for succ = myNode.next.Load(); succ == nil; succ = myNode.next.Load() {
		require.False(t, time.Now().After(deadline), "successor never linked")
		runtime.Gosched()
	}
	assert.EqualValues(t, 1, atomic.LoadUint32(&succ.waiting))

	l.Lock() // depth 2: broadcast so the successor can sleep
	assert.EqualValues(t, 2, atomic.LoadUint32(&succ.waiting))
	l.Lock()
	assert.EqualValues(t, 3, atomic.LoadUint32(&succ.waiting))

	l.Unlock()
	assert.EqualValues(t, 2, atomic.LoadUint32(&succ.waiting))
	l.Unlock()
	assert.EqualValues(t, 1, atomic.LoadUint32(&succ.waiting))

	l.Unlock() // final release hands off: waiting drops to 0
	<-acquired
	<-released
	assert.True(t, tryLockElsewhere(l))
}

func TestQueueHandoffRace(t *testing.T) {
	// Hammer the release path where the holder sees next == nil, fails the
	// tail CAS, and must wait out a mid-enqueue successor.
	if testing.Short() {
		t.Skip("stress test")
	}
	l := NewQueueLock()
	const workers = 8
	const iters = 5000
	var shared int64
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < iters; j++ {
				l.Lock()
				shared++
				l.Unlock()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
	assert.EqualValues(t, workers*iters, shared)
	assert.Nil(t, l.tail.Load())
}
