package hw

import (
	"sync/atomic"
)

// Handoff passes values from a goroutine to an interrupt handler on the same
// core without locking. There is one producer calling Put and one consumer
// calling Take, and the producer can't preempt Take.
type Handoff[T any] struct {
	slots [2]T
	next  uint32        // producer owned
	held  uint32        // consumer owned
	ready atomic.Uint32 // 1 + slot of an untaken value, 0 if none
}

// Put publishes v. A value the consumer hasn't taken yet is replaced.
func (h *Handoff[T]) Put(v T) {
	h.slots[h.next] = v
	h.ready.Store(h.next + 1)
	h.next ^= 1

	// drop the reference to the older value
	var zero T
	h.slots[h.next] = zero
}

// Latest returns the value of the last Put to the producer.
func (h *Handoff[T]) Latest() T {
	return h.slots[h.next^1]
}

// Take returns the newest value, and whether it was put since the last Take.
func (h *Handoff[T]) Take() (v T, fresh bool) {
	if r := h.ready.Swap(0); r != 0 {
		h.held = r - 1
		fresh = true
	}
	return h.slots[h.held], fresh
}

// Flag is a wake flag shared between an interrupt handler and the code it
// wakes. Exactly one side sets it and exactly one side clears it.
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Set()          { f.v.Store(true) }
func (f *Flag) Clear()        { f.v.Store(false) }
func (f *Flag) IsSet() bool   { return f.v.Load() }
func (f *Flag) TakeSet() bool { return f.v.Swap(false) }
