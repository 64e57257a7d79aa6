// Package model defines the documents mirrored between the remote service and
// the local directory.
//
// This package contains type definitions and small value helpers only. Every
// other internal package imports model; model imports nothing internal.
//
// Key constraints:
//   - Row property values are text or null. A nil *string is null, and an
//     empty string is treated as null for equality and hashing.
//   - Empty collections and empty config maps are nil, so that a document
//     read back from disk compares equal to the one that was written.
//   - LocalHash and RemoteHash are stamped by the sync engine, never by codecs.
package model
