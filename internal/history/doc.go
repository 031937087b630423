// Package history implements the action history (a bounded undo stack) and
// the snapshot store shared by tracked state cells.
//
// Every state change that can be reversed registers its inverse with Record.
// GoBack pops the newest entry and runs its inverse while recording is
// suspended, so an undo never produces an undo of its own.
//
// INVARIANTS:
//   - len(entries) <= capacity (default 10); the oldest entry is evicted first
//   - entries are undone strictly newest-first
//   - entry IDs come from a logical sequence, never from wall-clock time
//   - the restoring flag is always cleared when GoBack returns or panics
//
// One Store is created per session and passed by reference to every consumer.
package history
