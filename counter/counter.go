// Package counter demonstrates shared-state correctness under concurrent
// increments: three guarded counters that never lose an update, and one
// unguarded counter that does.
package counter

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-task-scaling/core"
)

// Counter is an integer shared by concurrent incrementers.
type Counter interface {
	// Increment adds one and returns the value it produced.
	Increment() int64

	// Value returns the current value.
	Value() int64
}

// Mode names a Counter implementation.
type Mode string

const (
	ModeSync   Mode = "sync"
	ModeAtomic Mode = "atomic"
	ModeActor  Mode = "actor"
	ModeRacy   Mode = "racy"
)

// Modes lists every mode, guarded ones first.
var Modes = []Mode{ModeSync, ModeAtomic, ModeActor, ModeRacy}

// NewCounter builds the counter for mode. An ActorCounter must be closed by
// the caller; use Close for any Counter.
func NewCounter(mode string) (Counter, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case ModeSync, "mutex":
		return &SyncCounter{}, nil
	case ModeAtomic:
		return &AtomicCounter{}, nil
	case ModeActor, "channel":
		return NewActorCounter(), nil
	case ModeRacy, "unsafe":
		return &RacyCounter{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown counter mode %q", core.ErrInvalidArgument, mode)
	}
}

// Close releases c if it owns a goroutine.
func Close(c Counter) {
	if a, ok := c.(*ActorCounter); ok {
		a.Close()
	}
}

// SyncCounter serializes increments with a mutex.
type SyncCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *SyncCounter) Increment() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func (c *SyncCounter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// AtomicCounter increments with a single atomic add.
type AtomicCounter struct {
	n atomic.Int64
}

func (c *AtomicCounter) Increment() int64 { return c.n.Add(1) }
func (c *AtomicCounter) Value() int64     { return c.n.Load() }

// ActorCounter keeps its value inside one goroutine. Callers reach it only
// through a request channel, so the value itself is never shared.
type ActorCounter struct {
	reqs chan actorRequest
	done chan struct{}
	once sync.Once
}

type actorRequest struct {
	delta int64
	reply chan int64
}

func NewActorCounter() *ActorCounter {
	a := &ActorCounter{
		reqs: make(chan actorRequest),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *ActorCounter) loop() {
	var n int64
	for {
		select {
		case req := <-a.reqs:
			n += req.delta
			req.reply <- n
		case <-a.done:
			return
		}
	}
}

func (a *ActorCounter) send(delta int64) int64 {
	reply := make(chan int64, 1)
	select {
	case a.reqs <- actorRequest{delta: delta, reply: reply}:
		return <-reply
	case <-a.done:
		panic("counter: use of closed ActorCounter")
	}
}

func (a *ActorCounter) Increment() int64 { return a.send(1) }
func (a *ActorCounter) Value() int64     { return a.send(0) }

// Close stops the owning goroutine. Further calls on a panic.
func (a *ActorCounter) Close() {
	a.once.Do(func() { close(a.done) })
}

// RacyCounter performs an unguarded read-modify-write. Concurrent
// increments that interleave between the read and the write are lost.
// It exists only as the contrast case and trips the race detector.
type RacyCounter struct {
	n int64
}

func (c *RacyCounter) Increment() int64 {
	v := c.n
	runtime.Gosched() // widen the read-write window
	v++
	c.n = v
	return v
}

func (c *RacyCounter) Value() int64 { return c.n }

// Hammer starts n goroutines that each increment c once, waits for all of
// them, and returns the final value.
func Hammer(c Counter, n int) int64 {
	return HammerLogged(c, n, nil)
}

// HammerLogged is Hammer with one report line per increment.
func HammerLogged(c Counter, n int, logger core.Logger) int64 {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			v := c.Increment()
			if logger != nil {
				logger.Debug("counter incremented", core.F("worker", i), core.F("value", v))
			}
		}()
	}
	wg.Wait()
	return c.Value()
}

// Trial is the outcome of one Hammer round.
type Trial struct {
	Mode  Mode
	N     int
	Final int64
}

// Lost is the number of increments that did not land.
func (t Trial) Lost() int64 { return int64(t.N) - t.Final }

// RunTrials hammers a fresh counter of mode n times per trial.
func RunTrials(mode Mode, n, trials int, logger core.Logger) ([]Trial, error) {
	if n < 0 || trials < 1 {
		return nil, fmt.Errorf("%w: need n >= 0 and trials >= 1, got n=%d trials=%d", core.ErrInvalidArgument, n, trials)
	}
	out := make([]Trial, 0, trials)
	for range trials {
		c, err := NewCounter(string(mode))
		if err != nil {
			return nil, err
		}
		final := HammerLogged(c, n, logger)
		Close(c)
		out = append(out, Trial{Mode: mode, N: n, Final: final})
	}
	return out, nil
}
