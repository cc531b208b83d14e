// Package ksyscall dispatches the synchronization syscalls a process's
// tasks issue against its own mutex/semaphore/condvar tables, wiring the
// Banker's-algorithm detector (internal/banker) into sys_semaphore_down
// the same way the source does: only when deadlock detection has been
// turned on for the process, and only as a pre-check that never mutates
// state on an unsafe grant.
package ksyscall

import (
	"sync"
	"time"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/banker"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/ksync"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
)

// ErrUnsafe is returned by SysSemaphoreDown (and, in principle,
// SysMutexLock) when granting the request would leave the process in an
// unsafe state. It deliberately is not a Go error value: the source
// returns it as a plain isize sentinel indistinguishable from any other
// return code at the syscall ABI boundary, and callers are expected to
// compare against it directly.
const ErrUnsafe = -0xDEAD

// TaskID identifies one task within a process for resource-accounting
// purposes. Because Go has no goroutine-local storage, every Sys* call
// that needs "the calling task" takes one explicitly instead of
// consulting a current-task collaborator.
type TaskID int

type taskAccount struct {
	allocation map[int]int
	need       map[int]int
}

// Process owns one process's mutex/semaphore/condvar tables plus the
// per-task allocation/need bookkeeping the Banker detector reads. All
// three tables use the source's "first free hole, else append" slot
// reuse so ids stay stable across create/destroy churn.
type Process struct {
	mu sync.Mutex

	mutexList     []ksync.Mutex
	semaphoreList []*ksync.Semaphore
	condvarList   []*ksync.Condvar

	needDeadlockDetect bool
	tasks              map[TaskID]*taskAccount

	scheduler ksync.Scheduler
}

// NewProcess constructs a process with empty resource tables and
// deadlock detection off, matching a freshly forked process in the
// source.
func NewProcess() *Process {
	return &Process{tasks: make(map[TaskID]*taskAccount), scheduler: ksync.DefaultScheduler}
}

func (p *Process) account(task TaskID) *taskAccount {
	a, ok := p.tasks[task]
	if !ok {
		a = &taskAccount{allocation: make(map[int]int), need: make(map[int]int)}
		p.tasks[task] = a
	}
	return a
}

// RegisterTask ensures task is visible to the deadlock detector's
// thread_count even before it has touched any semaphore.
func (p *Process) RegisterTask(task TaskID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account(task)
}

// UnregisterTask drops task from the detector's accounting, mirroring a
// thread's slot going to None on exit.
func (p *Process) UnregisterTask(task TaskID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tasks, task)
}

// SysSleep suspends task for ms milliseconds, mirroring sys_sleep's
// add_timer-then-block_current_and_run_next pattern: it registers a
// timer with the process's Scheduler and blocks the caller until that
// timer fires, rather than sleeping the calling goroutine directly, so
// it shares the same suspension machinery as the other blocking
// syscalls.
func (p *Process) SysSleep(ms int, task TaskID) int {
	handle := p.scheduler.CurrentTask()
	p.scheduler.AddTimer(time.Duration(ms)*time.Millisecond, handle)
	p.scheduler.BlockCurrentAndRunNext(handle)
	return 0
}

// SysMutexCreate allocates a new mutex (spinning if blocking is false,
// blocking otherwise) and returns its id.
func (p *Process) SysMutexCreate(blocking bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var m ksync.Mutex
	if blocking {
		m = ksync.NewMutexBlocking()
	} else {
		m = ksync.NewMutexSpin(nil)
	}
	for i, existing := range p.mutexList {
		if existing == nil {
			p.mutexList[i] = m
			return i
		}
	}
	p.mutexList = append(p.mutexList, m)
	return len(p.mutexList) - 1
}

// SysMutexLock blocks until mutexID is acquired. The source's mutexes
// always succeed, so this never returns ErrUnsafe; it returns -1 only
// for an invalid id.
func (p *Process) SysMutexLock(mutexID int) int {
	p.mu.Lock()
	if mutexID < 0 || mutexID >= len(p.mutexList) || p.mutexList[mutexID] == nil {
		p.mu.Unlock()
		return -1
	}
	m := p.mutexList[mutexID]
	p.mu.Unlock()

	if m.Lock() {
		return 0
	}
	return ErrUnsafe
}

// SysMutexUnlock releases mutexID.
func (p *Process) SysMutexUnlock(mutexID int) int {
	p.mu.Lock()
	if mutexID < 0 || mutexID >= len(p.mutexList) || p.mutexList[mutexID] == nil {
		p.mu.Unlock()
		return -1
	}
	m := p.mutexList[mutexID]
	p.mu.Unlock()

	m.Unlock()
	return 0
}

// SysSemaphoreCreate allocates a new counting semaphore and returns its
// id.
func (p *Process) SysSemaphoreCreate(count int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem := ksync.NewSemaphore(count)
	for i, existing := range p.semaphoreList {
		if existing == nil {
			p.semaphoreList[i] = sem
			return i
		}
	}
	p.semaphoreList = append(p.semaphoreList, sem)
	return len(p.semaphoreList) - 1
}

// SysSemaphoreUp releases one unit of semID back, crediting it from
// task's allocation bookkeeping before waking a waiter.
func (p *Process) SysSemaphoreUp(semID int, task TaskID) int {
	p.mu.Lock()
	if semID < 0 || semID >= len(p.semaphoreList) || p.semaphoreList[semID] == nil {
		p.mu.Unlock()
		return -1
	}
	sem := p.semaphoreList[semID]
	acc := p.account(task)
	if count, ok := acc.allocation[semID]; ok {
		if count <= 1 {
			delete(acc.allocation, semID)
		} else {
			acc.allocation[semID] = count - 1
		}
	}
	p.mu.Unlock()

	sem.Up()
	return 0
}

// SysSemaphoreDown acquires one unit of semID for task. If the process
// has deadlock detection enabled, it first materializes a banker.State
// over every registered task (with task's own need for semID bumped by
// one, as if the request were already granted) and refuses the request
// with ErrUnsafe if that state is not safe, touching no bookkeeping.
//
// Known gap carried from the source: a task's "need" entry recorded here
// is never moved into "allocation" once the blocked Down eventually
// returns — only a fresh Down/Up pair updates the tables — so the
// detector can over-count a long-blocked task's need in later calls.
func (p *Process) SysSemaphoreDown(semID int, task TaskID) int {
	p.mu.Lock()
	if semID < 0 || semID >= len(p.semaphoreList) || p.semaphoreList[semID] == nil {
		p.mu.Unlock()
		return -1
	}
	sem := p.semaphoreList[semID]

	if p.needDeadlockDetect {
		if !p.isSafeToAcquireLocked(semID, task) {
			p.mu.Unlock()
			logger.Warnf("ksyscall: refusing semaphore %d down for task %d, would be unsafe", semID, task)
			return ErrUnsafe
		}
	}

	acc := p.account(task)
	if sem.Count() <= 0 {
		acc.need[semID]++
	} else {
		acc.allocation[semID]++
	}
	p.mu.Unlock()

	sem.Down()
	return 0
}

// isSafeToAcquireLocked must be called with p.mu held.
func (p *Process) isSafeToAcquireLocked(semID int, requester TaskID) bool {
	resourceCount := len(p.semaphoreList)
	taskIDs := make([]TaskID, 0, len(p.tasks))
	for t := range p.tasks {
		taskIDs = append(taskIDs, t)
	}
	if _, ok := p.tasks[requester]; !ok {
		taskIDs = append(taskIDs, requester)
	}

	allocation := make([][]int, len(taskIDs))
	need := make([][]int, len(taskIDs))
	for i, t := range taskIDs {
		allocation[i] = make([]int, resourceCount)
		need[i] = make([]int, resourceCount)
		if acc, ok := p.tasks[t]; ok {
			for r, c := range acc.allocation {
				allocation[i][r] = c
			}
			for r, c := range acc.need {
				need[i][r] = c
			}
		}
		if t == requester {
			need[i][semID]++
		}
	}

	work := make([]int, resourceCount)
	for r, sem := range p.semaphoreList {
		if sem == nil {
			continue
		}
		if c := sem.Count(); c > 0 {
			work[r] = c
		}
	}

	return banker.IsSafe(banker.State{Allocation: allocation, Need: need, Work: work})
}

// SysCondvarCreate allocates a new condition variable and returns its
// id.
func (p *Process) SysCondvarCreate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cv := ksync.NewCondvar()
	for i, existing := range p.condvarList {
		if existing == nil {
			p.condvarList[i] = cv
			return i
		}
	}
	p.condvarList = append(p.condvarList, cv)
	return len(p.condvarList) - 1
}

// SysCondvarSignal wakes one waiter on condvarID, if any.
func (p *Process) SysCondvarSignal(condvarID int) int {
	p.mu.Lock()
	if condvarID < 0 || condvarID >= len(p.condvarList) || p.condvarList[condvarID] == nil {
		p.mu.Unlock()
		return -1
	}
	cv := p.condvarList[condvarID]
	p.mu.Unlock()

	cv.Signal()
	return 0
}

// SysCondvarWait blocks the caller on condvarID, releasing and later
// re-acquiring mutexID exactly as ksync.Condvar.Wait specifies.
func (p *Process) SysCondvarWait(condvarID, mutexID int) int {
	p.mu.Lock()
	if condvarID < 0 || condvarID >= len(p.condvarList) || p.condvarList[condvarID] == nil ||
		mutexID < 0 || mutexID >= len(p.mutexList) || p.mutexList[mutexID] == nil {
		p.mu.Unlock()
		return -1
	}
	cv := p.condvarList[condvarID]
	m := p.mutexList[mutexID]
	p.mu.Unlock()

	cv.Wait(m)
	return 0
}

// SysEnableDeadlockDetect turns the process's Banker pre-check on or
// off.
func (p *Process) SysEnableDeadlockDetect(enabled bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needDeadlockDetect = enabled
	return 0
}
