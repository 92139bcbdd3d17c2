package taskscaling

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/Swind/go-task-scaling/core"
)

// Report is the outcome of one harness run.
type Report struct {
	RunID    string
	Strategy string
	Tasks    int

	Submitted   int // accepted by the executor
	Completed   int // slept the full simulated work
	Interrupted int
	Panicked    int
	Rejected    int // refused at submission, e.g. ErrResourceExhausted

	TimedOut bool

	// Elapsed runs from just before the first submission until the barrier
	// released, or until the wait deadline fired.
	Elapsed time.Duration

	PeakConcurrency int

	// Latency is submission-to-finish time of tasks that finished.
	Latency LatencySummary

	// Recent holds the last few finished tasks, newest first.
	Recent []core.TaskExecutionRecord
}

// Failed counts tasks that did not complete normally.
func (r Report) Failed() int {
	return r.Interrupted + r.Panicked + r.Rejected
}

// Throughput is completed tasks per second of elapsed time.
func (r Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Completed) / r.Elapsed.Seconds()
}

func (r Report) String() string {
	s := fmt.Sprintf("%s: %d tasks, %d completed, %d failed in %v (peak %d concurrent)",
		r.Strategy, r.Tasks, r.Completed, r.Failed(), r.Elapsed.Round(time.Millisecond), r.PeakConcurrency)
	if r.TimedOut {
		s += " [timed out]"
	}
	return s
}

// LatencySummary is a percentile digest of task latencies.
type LatencySummary struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
}

const (
	latencyMaxMicros = int64(time.Hour / time.Microsecond)
	latencySigFigs   = 3
)

// latencyRecorder guards an HDR histogram; the histogram itself is not
// safe for concurrent use.
type latencyRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{
		hist: hdrhistogram.New(1, latencyMaxMicros, latencySigFigs),
	}
}

// Record adds one sample. Values outside [1µs, 1h] are clamped.
func (l *latencyRecorder) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > latencyMaxMicros {
		us = latencyMaxMicros
	}
	l.mu.Lock()
	_ = l.hist.RecordValue(us)
	l.mu.Unlock()
}

func (l *latencyRecorder) Summary() LatencySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hist.TotalCount() == 0 {
		return LatencySummary{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencySummary{
		Count: l.hist.TotalCount(),
		Mean:  time.Duration(l.hist.Mean() * float64(time.Microsecond)),
		P50:   us(l.hist.ValueAtQuantile(50)),
		P90:   us(l.hist.ValueAtQuantile(90)),
		P99:   us(l.hist.ValueAtQuantile(99)),
		Max:   us(l.hist.Max()),
	}
}
