// Package tasks contains the background machinery around the two stores.
//
// # Mirrored Writes
//
// [Mirror] owns a bounded queue and a single worker goroutine. Callers
// enqueue best-effort jobs that copy a committed write to the secondary
// backend; a full queue drops the job with a log line and a failed job is
// logged and forgotten. Nothing the mirror does is ever visible to the
// caller that triggered it.
//
// # Migration
//
// [SyncEngine] copies the library tables between the local sqlite file and
// the remote row store:
//
//  1. [SyncEngine.Run] : batched upload of local rows, upserted on each
//     table's natural conflict key so reruns are idempotent
//  2. [SyncEngine.Verify] : row-count comparison per table
//  3. [SyncEngine.Claim] : assigns anonymous playback rows to an account,
//     locally and remotely
package tasks
