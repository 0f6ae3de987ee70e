package queue

import "context"

// Repository defines operations on a named, append-ordered work queue.
//
// Entries are appended at the tail. PeekNewest looks at the tail (the entry
// added last), while PopOldest drains from the head, so consumers observe
// FIFO order regardless of how the underlying rows are inspected.
type Repository interface {
	// Enqueue appends a serialized entry to the named queue.
	Enqueue(ctx context.Context, queueName string, payload []byte) error

	// PopOldest removes and returns the oldest entry (FIFO). Returns
	// (nil, nil) when the queue is empty. Concurrent consumers never
	// receive the same entry.
	PopOldest(ctx context.Context, queueName string) ([]byte, error)

	// PeekNewest returns the most recently enqueued entry without removing
	// it, or (nil, nil) when the queue is empty.
	PeekNewest(ctx context.Context, queueName string) ([]byte, error)

	// List returns all entries, newest first, without consuming them.
	List(ctx context.Context, queueName string) ([][]byte, error)

	// Length returns the number of pending entries.
	Length(ctx context.Context, queueName string) (int64, error)

	// Clear removes every pending entry and returns how many were dropped.
	// Destructive and irreversible: unprocessed work is lost.
	Clear(ctx context.Context, queueName string) (int64, error)
}
