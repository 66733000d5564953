// Package event holds the tracer's record of observed attribute changes.
//
// A Record is one value-change notification as received from a notification
// source, stamped with a store sequence number and a reception time. The
// Store is the append-only, concurrency-safe log those records live in.
//
// # Concurrency model
//
// One logical writer (the subscription callback context) calls Append while
// any number of readers take snapshots. All shared state sits behind a single
// mutex:
//   - Append stamps seq and reception time under the lock, so both are
//     non-decreasing in store order
//   - Snapshot returns a History sharing the backing array; indices below its
//     length are never written again, so readers need no copy and no lock
//   - every Append (and Clear) closes the current update channel and installs
//     a fresh one, waking every waiter at once
//
// Watch returns a snapshot and the update channel taken under the same lock
// acquisition. A reader that finds nothing interesting in the snapshot and
// then blocks on the channel cannot miss an append that happened in between.
package event
