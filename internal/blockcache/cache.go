// Package blockcache is a bounded write-back cache of fixed-size blocks
// over a blockdev.Device. It is the sole path by which every other layer
// touches the device: direct inode indexing, directory data, bitmaps and
// superblock all flow through here so a single sync-all barrier can make
// every mutation durable.
package blockcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
)

// entry is one resident block. Its lock is held only while a Read/Modify
// closure runs, never across a device I/O to another block.
type entry struct {
	mu      syncutil.InvariantMutex
	blockID uint64
	data    [blockdev.BlockSize]byte
	dirty   bool
}

// Read applies f to the bytes starting at offset within this entry's
// block, without marking it dirty.
func (e *entry) Read(offset int, f func(buf []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(e.data[offset:])
}

// Modify applies f to the bytes starting at offset and marks the entry
// dirty; the write-back happens later, at the next eviction or SyncAll.
func (e *entry) Modify(offset int, f func(buf []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(e.data[offset:])
	e.dirty = true
}

// Cache is a bounded, write-back block cache. Eviction picks the
// least-recently-inserted clean-or-flushed block on a miss at capacity.
type Cache struct {
	mu       sync.Mutex
	device   blockdev.Device
	capacity int
	order    *list.List // of *entry, front = oldest inserted
	byID     map[uint64]*list.Element
}

// New wraps device with a cache holding at most capacity resident blocks.
func New(device blockdev.Device, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		device:   device,
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[uint64]*list.Element),
	}
}

// Device returns the underlying block device.
func (c *Cache) Device() blockdev.Device { return c.device }

func (c *Cache) get(blockID uint64) (*entry, error) {
	c.mu.Lock()
	if el, ok := c.byID[blockID]; ok {
		c.mu.Unlock()
		return el.Value.(*entry), nil
	}
	c.mu.Unlock()

	// Load outside the cache lock: device I/O must not block unrelated
	// lookups, matching the per-entry granularity the spec calls for.
	e := &entry{blockID: blockID}
	if err := c.device.ReadBlock(blockID, e.data[:]); err != nil {
		return nil, fmt.Errorf("blockcache: load block %d: %w", blockID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byID[blockID]; ok {
		// Lost a race with a concurrent loader; use the winner's entry.
		return el.Value.(*entry), nil
	}
	if c.order.Len() >= c.capacity {
		if err := c.evictOldestLocked(); err != nil {
			return nil, err
		}
	}
	el := c.order.PushBack(e)
	c.byID[blockID] = el
	return e, nil
}

// evictOldestLocked must be called with c.mu held.
func (c *Cache) evictOldestLocked() error {
	front := c.order.Front()
	if front == nil {
		return nil
	}
	victim := front.Value.(*entry)
	if victim.dirty {
		victim.mu.Lock()
		data := victim.data
		victim.dirty = false
		victim.mu.Unlock()
		if err := c.device.WriteBlock(victim.blockID, data[:]); err != nil {
			return fmt.Errorf("blockcache: flush evicted block %d: %w", victim.blockID, err)
		}
	}
	logger.Tracef("blockcache: evict block %d", victim.blockID)
	c.order.Remove(front)
	delete(c.byID, victim.blockID)
	return nil
}

// Read applies f to a read-only view of blockID's content starting at
// offset.
func (c *Cache) Read(blockID uint64, offset int, f func(buf []byte)) error {
	e, err := c.get(blockID)
	if err != nil {
		return err
	}
	e.Read(offset, f)
	return nil
}

// Modify applies f to a mutable view of blockID's content starting at
// offset and marks the block dirty for the next sync.
func (c *Cache) Modify(blockID uint64, offset int, f func(buf []byte)) error {
	e, err := c.get(blockID)
	if err != nil {
		return err
	}
	e.Modify(offset, f)
	return nil
}

// SyncAll writes every dirty resident block back to the device and clears
// their dirty bits. This is the sole durability barrier: every mutating
// filesystem operation calls it before returning to the caller.
func (c *Cache) SyncAll() error {
	c.mu.Lock()
	entries := make([]*entry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(*entry))
	}
	c.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		dirty := e.dirty
		data := e.data
		e.dirty = false
		e.mu.Unlock()
		if !dirty {
			continue
		}
		if err := c.device.WriteBlock(e.blockID, data[:]); err != nil {
			return fmt.Errorf("blockcache: sync block %d: %w", e.blockID, err)
		}
	}
	logger.Tracef("blockcache: sync_all flushed %d resident blocks", len(entries))
	return nil
}
