// Package index maintains the per-scope mapping from computation identity
// to cached result and historical log entries, persisted as a single file
// and mutated only under the scope's index lease.
//
// # Critical Patterns
//
// CP-1: Single Atomic Mutation Unit
//   - Fold (acquire, load, mutate, save, release) is the only write path
//   - Concurrent folds serialize through the lease; the index file always
//     reflects exactly the set of folds that completed
//
// CP-2: Latest Eligible Timestamp Wins
//   - An entry's cache artifact is always the log entry with the greatest
//     timestamp among entries marked cache-eligible
//   - Non-eligible entries never change the cache artifact, regardless of
//     timestamp
//
// CP-3: Corruption Is Cache-Cold, Not Fatal
//   - A missing or unreadable index file loads as a fresh empty index and
//     is immediately persisted (self-healing first touch)
//   - Rebuild skips unparsable or inconsistent artifacts and reports the
//     per-file outcome instead of aborting
//
// CP-4: Lease Is a Precondition, Not a Courtesy
//   - Load and Save assert the caller holds the lease and fail loudly when
//     it does not; unprotected index access is a programming error
package index
