package main

import (
	"encoding/csv"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyan233/retlock"
	"github.com/nyan233/retlock/pkg/logger"
)

// sharedVar is the data every critical section touches. foo and bar sit on
// separate cache lines so the measurement captures lock traffic, not their
// false sharing.
type sharedVar struct {
	foo int64
	_   [56]byte
	bar int64
	_   [56]byte
}

type Config struct {
	Filename     string
	NumThreads   int
	Iteration    int // nested acquisitions per worker iteration
	Duration     time.Duration
	BackAndForth bool
}

type lockCase struct {
	name      string
	reentrant bool
	factory   func() retlock.Locker
}

// allCases lists every benchmarked variant. "+Padding" names the
// split-cache-line core, matching the CSV vocabulary consumed downstream.
func allCases() []lockCase {
	return []lockCase{
		{"sync.Mutex", false, func() retlock.Locker { return new(sync.Mutex) }},
		{"MCS", true, func() retlock.Locker { return retlock.NewQueueLock() }},
		{"MCS+Adap", true, func() retlock.Locker { return retlock.NewAdaptiveQueueLock() }},
		{"Exponential", true, func() retlock.Locker { return retlock.NewSameLineLock(retlock.Exponential{}) }},
		{"NoSleep", true, func() retlock.Locker { return retlock.NewSameLineLock(retlock.NoSleep{}) }},
		{"Yield", true, func() retlock.Locker { return retlock.NewSameLineLock(retlock.Yield{}) }},
		{"Adaptive", true, func() retlock.Locker { return retlock.NewSameLineLock(retlock.Adaptive{}) }},
		{"Exp+Padding", true, func() retlock.Locker { return retlock.NewSplitLock(retlock.Exponential{}) }},
		{"NoSl+Padding", true, func() retlock.Locker { return retlock.NewSplitLock(retlock.NoSleep{}) }},
		{"Yie+Padding", true, func() retlock.Locker { return retlock.NewSplitLock(retlock.Yield{}) }},
		{"Adap+Padding", true, func() retlock.Locker { return retlock.NewSplitLock(retlock.Adaptive{}) }},
	}
}

type benchResult struct {
	counters []int64
	elapsed  time.Duration
	shared   *sharedVar
}

// worker runs iterations until stop flips. A non-reentrant baseline takes
// the lock once per nested step; reentrant variants run either
// back-and-forth (hold the lock, re-enter per step) or flat nesting
// (acquire to full depth, touch once, release symmetrically).
func worker(l retlock.Locker, c Config, reentrant bool, start, stop *uint32, shared *sharedVar, count *int64) {
	for atomic.LoadUint32(start) == 0 {
		runtime.Gosched()
	}
	for atomic.LoadUint32(stop) == 0 {
		switch {
		case !reentrant:
			for i := 0; i < c.Iteration; i++ {
				l.Lock()
				shared.foo++
				shared.bar++
				l.Unlock()
			}
		case c.BackAndForth:
			l.Lock()
			for i := 1; i < c.Iteration; i++ {
				l.Lock()
				shared.foo++
				shared.bar++
				l.Unlock()
			}
			l.Unlock()
		default:
			for i := 0; i < c.Iteration; i++ {
				l.Lock()
			}
			shared.foo++
			shared.bar++
			for i := 0; i < c.Iteration; i++ {
				l.Unlock()
			}
		}
		*count++
	}
}

func runBenchmark(c Config, lc lockCase) benchResult {
	l := lc.factory()
	shared := new(sharedVar)
	counters := make([]int64, c.NumThreads)
	var start, stop uint32
	var wg sync.WaitGroup

	startTime := time.Now()
	for i := 0; i < c.NumThreads; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(l, c, lc.reentrant, &start, &stop, shared, &counters[i])
		}()
	}
	atomic.StoreUint32(&start, 1)
	time.Sleep(c.Duration)
	atomic.StoreUint32(&stop, 1)
	wg.Wait()

	return benchResult{counters: counters, elapsed: time.Since(startTime), shared: shared}
}

const csvHeader = "Version,LockType,Type,BackAndForth,ThreadCount,ThreadID,Iteration,LockAcquisitionCount,ElapsedTime,OPS"

// appendCSV appends one Sum row and one ForEachThread row per worker,
// writing the header only when the file is new. ElapsedTime is
// milliseconds; OPS is completed iterations per second across all workers.
func appendCSV(c Config, name string, r benchResult) error {
	_, statErr := os.Stat(c.Filename)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(c.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(strings.Split(csvHeader, ",")); err != nil {
			return err
		}
	}

	var sum int64
	for _, v := range r.counters {
		sum += v
	}
	elapsedMs := r.elapsed.Milliseconds()
	ops := int64(math.Round(float64(sum) / (float64(elapsedMs) / 1000.0)))

	row := func(rowType string, threadID int, count int64) []string {
		return []string{
			retlock.Version,
			name,
			rowType,
			strconv.FormatBool(c.BackAndForth),
			strconv.Itoa(c.NumThreads),
			strconv.Itoa(threadID),
			strconv.Itoa(c.Iteration),
			strconv.FormatInt(count, 10),
			strconv.FormatInt(elapsedMs, 10),
			strconv.FormatInt(ops, 10),
		}
	}

	if err := w.Write(row("Sum", 0, sum)); err != nil {
		return err
	}
	for i, cnt := range r.counters {
		if err := w.Write(row("ForEachThread", i+1, cnt)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// run benchmarks every case under both nesting modes and appends the
// results to the configured CSV.
func run(c Config) error {
	for _, backAndForth := range []bool{false, true} {
		c.BackAndForth = backAndForth
		for _, lc := range allCases() {
			logger.Default.Info("benchmarking lock=%s backAndForth=%v threads=%d iteration=%d",
				lc.name, c.BackAndForth, c.NumThreads, c.Iteration)
			r := runBenchmark(c, lc)
			var sum int64
			for _, v := range r.counters {
				sum += v
			}
			logger.Default.Info("lock=%s iterations=%d elapsed=%dms",
				lc.name, sum, r.elapsed.Milliseconds())
			if err := appendCSV(c, lc.name, r); err != nil {
				return err
			}
		}
	}
	return nil
}
