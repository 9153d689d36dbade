package detect

import "sync"

// DefaultBufferCapacity is used when a buffer is created with a
// non-positive capacity.
const DefaultBufferCapacity = 500

// Buffer is a bounded, insertion-ordered collection of records owned by a
// single detector.
//
// Insertion past capacity evicts the oldest record first (FIFO eviction),
// which provides natural backpressure without ever blocking a producer.
// The buffer is cleared wholesale at the start of a fresh full scan so
// stale results from a previous run never linger.
//
// All methods are safe for concurrent use. The owning detector is the only
// writer; the manager reads via Snapshot, which copies out, so ownership
// stays unambiguous.
type Buffer struct {
	mu       sync.Mutex
	records  []Record
	capacity int
}

// NewBuffer creates a buffer with the given capacity.
// A non-positive capacity falls back to DefaultBufferCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		records:  make([]Record, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a record, evicting the oldest record when full.
func (b *Buffer) Add(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) >= b.capacity {
		overflow := len(b.records) - b.capacity + 1
		b.records = append(b.records[:0], b.records[overflow:]...)
	}
	b.records = append(b.records, r)
}

// AddAll appends records in order, applying the same eviction policy.
func (b *Buffer) AddAll(records []Record) {
	for _, r := range records {
		b.Add(r)
	}
}

// Snapshot returns a copy of the buffered records in insertion order.
func (b *Buffer) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// RemoveMatching discards buffered records the predicate matches, keeping
// insertion order for the rest. It returns the number removed.
func (b *Buffer) RemoveMatching(pred func(Record) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.records[:0]
	removed := 0
	for _, r := range b.records {
		if pred(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	b.records = kept
	return removed
}

// Clear discards all buffered records. Capacity is retained.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = b.records[:0]
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Capacity returns the configured capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}
