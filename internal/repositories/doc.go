// Package repositories implements the embedded sqlite store for all domain
// entities: users, auth sessions, favorite songs, playlist items and playback
// logs.
//
// The store opens through an ordered path chain (configured path, per-user
// home directory, temp directory) and keeps the first candidate that opens
// read-write. Schema creation runs through the versioned migrations in
// internal/shared and is idempotent. If the open handle later turns out to be
// read-only (filesystem remounted, for instance) the failing write reopens
// through the fallback chain and retries exactly once.
//
// Multi-row mutations (playlist add, remove with compaction, reorder) run in
// BEGIN IMMEDIATE transactions so concurrent writers serialize instead of
// interleaving compactions.
package repositories
