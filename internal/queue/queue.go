package queue

// Queue defines the interface for message queue.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue. When the queue is full
	// the head item is evicted and returned with evicted=true.
	Enqueue(item T) (old T, evicted bool)
	// Dequeue removes and returns the item at the head of the queue.
	Dequeue() (T, bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (T, bool)
	// Reset to an empty queue
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
	// Capacity returns the maximum number of items the queue holds.
	Capacity() int
}
