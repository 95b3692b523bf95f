package retlock

import (
	"sync"
	"testing"
)

func BenchmarkUncontended(b *testing.B) {
	b.Run("SplitLock", func(b *testing.B) {
		b.ReportAllocs()
		mu := NewSplitLock(NoSleep{})
		for i := 0; i < b.N; i++ {
			mu.Lock()
			mu.Unlock()
		}
	})
	b.Run("SameLineLock", func(b *testing.B) {
		b.ReportAllocs()
		mu := NewSameLineLock(NoSleep{})
		for i := 0; i < b.N; i++ {
			mu.Lock()
			mu.Unlock()
		}
	})
	b.Run("QueueLock", func(b *testing.B) {
		b.ReportAllocs()
		mu := NewQueueLock()
		for i := 0; i < b.N; i++ {
			mu.Lock()
			mu.Unlock()
		}
	})
	b.Run("Mutex", func(b *testing.B) {
		b.ReportAllocs()
		mu := sync.Mutex{}
		for i := 0; i < b.N; i++ {
			mu.Lock()
			mu.Unlock()
		}
	})
}

func BenchmarkReentry(b *testing.B) {
	const depth = 8
	b.Run("SplitLock", func(b *testing.B) {
		b.ReportAllocs()
		mu := NewSplitLock(NoSleep{})
		mu.Lock()
		for i := 0; i < b.N; i++ {
			for j := 0; j < depth; j++ {
				mu.Lock()
			}
			for j := 0; j < depth; j++ {
				mu.Unlock()
			}
		}
		mu.Unlock()
	})
	b.Run("SameLineLock", func(b *testing.B) {
		b.ReportAllocs()
		mu := NewSameLineLock(NoSleep{})
		mu.Lock()
		for i := 0; i < b.N; i++ {
			for j := 0; j < depth; j++ {
				mu.Lock()
			}
			for j := 0; j < depth; j++ {
				mu.Unlock()
			}
		}
		mu.Unlock()
	})
	b.Run("QueueLock", func(b *testing.B) {
		b.ReportAllocs()
		mu := NewQueueLock()
		mu.Lock()
		for i := 0; i < b.N; i++ {
			for j := 0; j < depth; j++ {
				mu.Lock()
			}
			for j := 0; j < depth; j++ {
				mu.Unlock()
			}
		}
		mu.Unlock()
	})
}

func BenchmarkContended(b *testing.B) {
	b.Run("SplitLock/Yield", func(b *testing.B) {
		mu := NewSplitLock(Yield{})
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				mu.Lock()
				mu.Unlock()
			}
		})
	})
	b.Run("SameLineLock/Yield", func(b *testing.B) {
		mu := NewSameLineLock(Yield{})
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				mu.Lock()
				mu.Unlock()
			}
		})
	})
	b.Run("QueueLock", func(b *testing.B) {
		mu := NewQueueLock()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				mu.Lock()
				mu.Unlock()
			}
		})
	})
	b.Run("Mutex", func(b *testing.B) {
		mu := sync.Mutex{}
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				mu.Lock()
				mu.Unlock()
			}
		})
	})
}
