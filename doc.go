// Package taskscaling measures how execution media cope with many short,
// blocking tasks.
//
// The harness submits N identical tasks (report the worker, sleep for the
// simulated work, return) to one execution strategy, waits for every task on
// a full barrier and reports the elapsed wall-clock time.
//
// # Strategies
//
// BoundedPool(size): a GoroutineThreadPool with size workers pulling from a
// FIFO scheduler. Tasks queue while all workers are busy; 5 one-second tasks
// on 2 workers take about 3 seconds.
//
// OnePerTask(): every task runs on a goroutine locked to a fresh OS thread.
// A thread budget below the runtime's thread limit turns exhaustion into
// ErrResourceExhausted for the affected tasks instead of a process abort.
//
// Lightweight(): one goroutine per task. Sleeping goroutines are parked by
// the runtime, so 100,000 one-second tasks finish in about one second.
//
// # Example
//
//	report, err := taskscaling.Run(ctx, 1000, taskscaling.Lightweight(), time.Second,
//		taskscaling.WithTimeout(10*time.Second))
//	if errors.Is(err, taskscaling.ErrTimeout) {
//		// report still carries the elapsed time up to the deadline
//	}
//	fmt.Println(report)
//
// # Errors
//
// Per-task failures (ErrInterrupted, ErrResourceExhausted, panics) are
// logged and counted in the Report; they never stop sibling tasks. Only a
// barrier timeout or invalid arguments are returned from Run.
//
// See the counter package for the synchronized vs unsynchronized counter
// contrast, and cmd/taskscale for the command-line front end.
package taskscaling
