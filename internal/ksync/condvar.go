package ksync

import (
	"container/list"
	"sync"
)

// Condvar is a condition variable with its own FIFO wait queue. Wait
// atomically (from the caller's perspective) releases mutex and blocks;
// on wake it re-acquires mutex before returning, so the caller never
// observes the gap between "queued" and "blocked".
type Condvar struct {
	mu      sync.Mutex
	waiters *list.List // of chan struct{}
}

// NewCondvar constructs an empty condition variable.
func NewCondvar() *Condvar {
	return &Condvar{waiters: list.New()}
}

// Wait queues the caller, releases mutex, blocks until Signal wakes it,
// then re-acquires mutex.
func (c *Condvar) Wait(mutex Mutex) {
	c.mu.Lock()
	gate := make(chan struct{})
	c.waiters.PushBack(gate)
	c.mu.Unlock()

	mutex.Unlock()
	<-gate
	mutex.Lock()
}

// Signal wakes the longest-waiting blocked task, if any.
func (c *Condvar) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if front := c.waiters.Front(); front != nil {
		c.waiters.Remove(front)
		close(front.Value.(chan struct{}))
	}
}
