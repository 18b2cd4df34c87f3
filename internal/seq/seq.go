// Package seq issues the numeric sequence numbers that public and removal
// ids are derived from. Numbers are never reused and strictly increase,
// even when multiple requests land on the same clock millisecond.
package seq

import (
	"sync"
	"time"
)

// Allocator hands out a strictly increasing sequence of numbers anchored to
// the wall clock in milliseconds. Safe for concurrent use.
type Allocator struct {
	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

// NewAllocator returns an Allocator using the system clock.
func NewAllocator() *Allocator {
	return &Allocator{now: time.Now}
}

// NewAllocatorWithClock returns an Allocator using the given clock.
// Intended for tests.
func NewAllocatorWithClock(now func() time.Time) *Allocator {
	return &Allocator{now: now}
}

// Next returns the next sequence number. The value is the current Unix
// millisecond timestamp unless that would not advance past the previously
// issued value, in which case the previous value plus one is issued instead.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := uint64(a.now().UnixMilli())
	if n <= a.last {
		n = a.last + 1
	}
	a.last = n
	return n
}
