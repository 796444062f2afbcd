package queue

import "sync"

// ringQueue implements the Queue interface with a fixed-size ring buffer.
//
// It is goroutine-safe.
type ringQueue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	size  int
}

// NewRingQueue creates a bounded queue holding up to capacity items.
// A capacity < 1 is treated as 1.
func NewRingQueue[T any](capacity int) Queue[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &ringQueue[T]{items: make([]T, capacity)}
}

// Enqueue adds an item to the tail of the queue, evicting the head when full.
func (q *ringQueue[T]) Enqueue(item T) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var old T
	evicted := false
	if q.size == len(q.items) {
		old = q.items[q.head]
		q.head = (q.head + 1) % len(q.items)
		q.size--
		evicted = true
	}

	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++

	return old, evicted
}

// Dequeue removes and returns the item at the head of the queue.
func (q *ringQueue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *ringQueue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		var zero T
		return zero, false
	}

	return q.items[q.head], true
}

// Reset resets the queue to an empty state.
func (q *ringQueue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.items)
	q.head = 0
	q.size = 0
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *ringQueue[T]) IsEmpty() bool {
	return q.Length() == 0
}

// Length returns the number of items in the queue.
func (q *ringQueue[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Capacity returns the maximum number of items in the queue.
func (q *ringQueue[T]) Capacity() int {
	return len(q.items)
}
