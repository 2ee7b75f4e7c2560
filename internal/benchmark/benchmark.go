// Package benchmark times repeated retrieval runs and compares the cost of
// the object and logo routes for the same query.
package benchmark

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"time"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the result of a benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the cumulative allocation during the run in KiB.
func (r Result) AllocatedKB() int64 {
	if r.MemoryAfter.TotalAllocBytes < r.MemoryBefore.TotalAllocBytes {
		return 0
	}
	diff := r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes
	if diff > math.MaxInt64 {
		return math.MaxInt64 / 1024
	}
	return int64(diff) / 1024
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

// Benchmark is a named function run once per iteration.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty benchmark suite.
func NewSuite() *Suite {
	return &Suite{
		benchmarks: make([]Benchmark, 0),
		results:    make([]Result, 0),
	}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	var found *Benchmark
	for i := range s.benchmarks {
		if s.benchmarks[i].Name == name {
			found = &s.benchmarks[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
	}
	return runBenchmark(*found, iterations)
}

// RunAll runs all benchmarks in the suite in insertion order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes one line per result.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
	_, _ = fmt.Fprintln(w)
}

// runBenchmark executes fn iterations times, stopping at the first error.
func runBenchmark(b Benchmark, iterations int) Result {
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(b.Name)
	var err error
	done := 0
	for range iterations {
		if e := b.Func(); e != nil {
			err = e
			break
		}
		done++
	}
	duration := timer.Stop()

	return Result{
		Name:         b.Name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   done,
		Error:        err,
	}
}
