// Package tracker records the lifecycle of every item in a batch run.
//
// Each item owns exactly one Record that moves from pending through
// processing into a terminal state (completed, failed, or cancelled),
// except for bulk cancellation which moves still-pending items straight
// to cancelled. The tracker stamps start and finish times on transitions
// and derives aggregate batch summaries on demand.
//
// The tracker does not reject illegal successor states; the batch
// controller is the only writer and issues transitions in order. Reads
// are safe while the worker updates records.
package tracker
