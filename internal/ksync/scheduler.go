// Package ksync implements the kernel-level synchronization primitives a
// cooperatively-scheduled task set shares: a spinning mutex, a
// blocking mutex with a FIFO wait queue, a counting semaphore, and a
// condition variable. Each primitive's wait queue is self-contained
// (one channel per waiter, closed to wake it); the external collaborator is
// Scheduler, which gives MutexSpin's busy loop a cooperative yield
// point and gives sys_sleep's timer-wheel suspension point (§4.5,
// §5) somewhere to park and be woken.
package ksync

import (
	"runtime"
	"time"
)

// TaskHandle is the opaque token a Scheduler hands back from
// CurrentTask and later consumes in BlockCurrentAndRunNext, Wakeup, and
// AddTimer. Callers never inspect it; they only ever pass it back.
type TaskHandle struct {
	wake chan struct{}
}

// Scheduler is the minimal collaborator the synchronization primitives
// need from whatever is running the cooperative task set: a yield point
// for MutexSpin's busy loop, and a suspend/resume/timer triple backing
// sys_sleep's "add_timer then block_current_and_run_next" pattern.
type Scheduler interface {
	// Yield gives up the current goroutine's timeslice so another
	// runnable goroutine gets a chance to make progress.
	Yield()

	// CurrentTask returns a handle identifying the calling goroutine,
	// for use with BlockCurrentAndRunNext, Wakeup, and AddTimer.
	CurrentTask() TaskHandle

	// BlockCurrentAndRunNext suspends the calling goroutine until
	// task is woken, either by Wakeup or by a timer registered with
	// AddTimer.
	BlockCurrentAndRunNext(task TaskHandle)

	// Wakeup resumes a goroutine previously suspended via
	// BlockCurrentAndRunNext. Waking a task with no one blocked on it
	// yet is not an error; the wakeup is simply latched.
	Wakeup(task TaskHandle)

	// AddTimer arranges for task to be woken after d elapses, the way
	// a timer-wheel entry fires a deferred Wakeup.
	AddTimer(d time.Duration, task TaskHandle)
}

// GoroutineScheduler is the Scheduler used when tasks are plain
// goroutines: Yield is runtime.Gosched, sufficient to keep a spin-mutex
// busy loop from starving the runnable set on a GOMAXPROCS=1 build, and
// suspend/resume/timer are backed by a one-slot buffered channel plus
// time.AfterFunc rather than a real trap/scheduler subsystem (out of
// scope per §1).
type GoroutineScheduler struct{}

func (GoroutineScheduler) Yield() { runtime.Gosched() }

func (GoroutineScheduler) CurrentTask() TaskHandle {
	return TaskHandle{wake: make(chan struct{}, 1)}
}

func (GoroutineScheduler) BlockCurrentAndRunNext(task TaskHandle) {
	<-task.wake
}

func (GoroutineScheduler) Wakeup(task TaskHandle) {
	select {
	case task.wake <- struct{}{}:
	default:
	}
}

func (s GoroutineScheduler) AddTimer(d time.Duration, task TaskHandle) {
	time.AfterFunc(d, func() { s.Wakeup(task) })
}

// DefaultScheduler is the package-wide Scheduler used by primitives
// constructed without an explicit one.
var DefaultScheduler Scheduler = GoroutineScheduler{}
