package ksync

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Mutex is the shared contract both mutex flavors expose to the
// syscall-dispatch layer. Lock's bool result is a success flag: it is
// always true today, a hook for the same "could fail" shape the source
// reserves for its blocking primitives generally.
type Mutex interface {
	Lock() bool
	Unlock()
}

// MutexSpin busy-waits on an atomic flag, yielding to the scheduler
// between attempts instead of hammering the CPU.
type MutexSpin struct {
	locked    int32
	scheduler Scheduler
}

// NewMutexSpin constructs a spin mutex using sched for its yield point;
// sched may be nil, in which case DefaultScheduler is used.
func NewMutexSpin(sched Scheduler) *MutexSpin {
	if sched == nil {
		sched = DefaultScheduler
	}
	return &MutexSpin{scheduler: sched}
}

// Lock busy-waits until the flag is clear, then sets it.
func (m *MutexSpin) Lock() bool {
	for !atomic.CompareAndSwapInt32(&m.locked, 0, 1) {
		m.scheduler.Yield()
	}
	return true
}

// Unlock clears the flag.
func (m *MutexSpin) Unlock() {
	atomic.StoreInt32(&m.locked, 0)
}

// MutexBlocking holds an owned/free flag and a FIFO queue of waiters.
// Unlock wakes exactly the head waiter and hands it ownership directly —
// the flag stays set, so a waiter woken from Lock never has to re-race
// for it.
type MutexBlocking struct {
	mu      sync.Mutex
	locked  bool
	waiters *list.List // of chan struct{}
}

// NewMutexBlocking constructs an unlocked blocking mutex.
func NewMutexBlocking() *MutexBlocking {
	return &MutexBlocking{waiters: list.New()}
}

// Lock blocks the calling goroutine until it owns the mutex.
func (m *MutexBlocking) Lock() bool {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return true
	}
	gate := make(chan struct{})
	m.waiters.PushBack(gate)
	m.mu.Unlock()
	<-gate
	return true
}

// Unlock releases the mutex, transferring ownership to the head waiter
// if one is queued, or clearing the flag if the queue is empty.
func (m *MutexBlocking) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if front := m.waiters.Front(); front != nil {
		m.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	m.locked = false
}
