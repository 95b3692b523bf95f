// Package gid hands out stable, dense, non-zero uint32 identities to
// goroutines. The runtime goroutine id is 64-bit and monotonically
// increasing; packing an owner into half of a 64-bit lock word needs a
// 32-bit id, so the first lock operation of each goroutine allocates the
// next value from a process-wide counter and records it in an RCU registry.
// Identities are never reclaimed: programs that churn goroutines should pin
// lock users to long-lived workers.
package gid

import (
	"sync/atomic"

	"github.com/nyan233/retlock/internal/container"
	"github.com/petermattis/goid"
)

var (
	allocator uint32 // next-1; 0 is reserved to mean "no owner"
	registry  = container.NewRCUMap[int64, uint32]()
)

// ID returns this goroutine's identity, assigning one on first call.
// The result is never 0. Wraparound past 2^32-1 distinct goroutines is
// outside the operating envelope.
func ID() uint32 {
	g := goid.Get()
	if id, ok := registry.LoadOk(g); ok {
		return id
	}
	id, _ := registry.LoadOrStore(g, atomic.AddUint32(&allocator, 1))
	return id
}

// Registered reports how many goroutines have been assigned an identity.
func Registered() int {
	return registry.Len()
}
