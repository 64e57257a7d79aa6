// Package engine reconciles the local mirror with the remote.
//
// ARCHITECTURE:
//
// Classification is local-only. A record is Modified when the fingerprint of
// its current content differs from the LocalHash stamped at its last sync,
// and Synced otherwise. Nothing here ever contacts the remote to classify.
//
// Pull, per record:
//  1. Fetch the remote snapshot and fingerprint it.
//  2. No local copy: save it. (Created)
//  3. Local copy Modified and not forced: leave it alone. (Conflict)
//  4. Local copy Synced and its RemoteHash matches: nothing to do. (Unchanged)
//  5. Otherwise overwrite and reset both stamps. (Updated)
//
// Push, per database:
//  1. Fetch a fresh baseline. A remote change since the last pull is a
//     Conflict unless forced.
//  2. Diff local rows against the baseline by row id into create, update
//     and delete sets.
//  3. Resolve select names to option ids and apply the batch. Rows are
//     applied independently; rejected rows are reported, not rolled back.
//  4. Re-fetch and stamp both hashes with the post-write fingerprint. Rows
//     the remote rejected are kept in their local form, so the record stays
//     Modified and only those rows are retried.
//
// CONCURRENCY:
//
// A pass processes records one at a time. Each record's save is the last
// step of its reconciliation, so cancelling between records leaves every
// record either fully reconciled or untouched. The engine holds no state
// between calls beyond its collaborators.
package engine
