// Package queue holds the in-memory processing queue for one batch run.
//
// Items are ordered by descending priority with FIFO ordering among equal
// priorities, enforced through a monotonically increasing sequence number.
// The queue is owned by the batch controller for the lifetime of a single
// run and is safe for concurrent reads while the worker dequeues.
package queue
