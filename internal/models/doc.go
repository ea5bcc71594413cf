// Package models defines the domain entities persisted by the library and
// telemetry stores.
//
// Entities map 1:1 onto rows in both backends (the embedded sqlite store and
// the REST-accessible remote store):
//   - [User] : account with salted password hash and role
//   - [AuthSession] : hashed session token with expiry
//   - [FavoriteSong] : unique (user, song) favorite
//   - [PlaylistItem] : densely positioned playlist membership
//   - [PlaybackLogEntry] : append-only playback telemetry event
//
// Timestamps are stored as ISO-8601 UTC strings with millisecond precision
// ([TimeLayout]) so the two backends stay byte-comparable.
package models
