// Package batch orchestrates colorization runs. The controller owns
// the queue, the status tracker, and the memory gate, drives items
// through the processor one at a time, and exposes pause, resume,
// cancel, and preview approval to callers.
package batch
