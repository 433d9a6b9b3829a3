package ring

import "fmt"

// Buffer is a fixed-capacity circular buffer holding the most recent
// values appended to it. It never allocates after construction.
type Buffer[T any] struct {
	data []T
	w    int  // next write position
	full bool // latched on first wraparound
}

// New creates a buffer with the given capacity.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be > 0, got %d", capacity)
	}
	return &Buffer[T]{data: make([]T, capacity)}, nil
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Len returns the number of values currently held.
func (b *Buffer[T]) Len() int {
	if b.full {
		return len(b.data)
	}
	return b.w
}

// Full reports whether the buffer has wrapped at least once.
func (b *Buffer[T]) Full() bool {
	return b.full
}

// Append copies batch into the buffer, overwriting the oldest values. If
// batch is larger than the capacity only its final Cap() elements survive,
// in order.
func (b *Buffer[T]) Append(batch []T) {
	c := len(b.data)
	if len(batch) >= c {
		// Whole buffer replaced; keep the tail of the batch.
		copy(b.data, batch[len(batch)-c:])
		b.w = 0
		b.full = true
		return
	}
	n := copy(b.data[b.w:], batch)
	if n < len(batch) {
		copy(b.data, batch[n:])
		b.full = true
	}
	b.w += len(batch)
	if b.w >= c {
		b.w -= c
		b.full = true
	}
}

// Snapshot returns the held values ordered oldest to newest. The buffer is
// not mutated; the returned slice is freshly allocated.
func (b *Buffer[T]) Snapshot() []T {
	if !b.full {
		out := make([]T, b.w)
		copy(out, b.data[:b.w])
		return out
	}
	out := make([]T, len(b.data))
	n := copy(out, b.data[b.w:])
	copy(out[n:], b.data[:b.w])
	return out
}

// Reset empties the buffer for a new session. Capacity is retained.
func (b *Buffer[T]) Reset() {
	b.w = 0
	b.full = false
}
