// Package journal keeps a durable history of sync passes in SQLite.
//
// Every pull or push opens a run; every reconciled record appends an entry
// to it. The journal is append-only and ordered by seq, never by wall time,
// so listings are deterministic.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: entries must reference a run
package journal
