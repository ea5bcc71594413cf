package models

import (
	"strings"
	"time"
)

// TimeLayout is the ISO-8601 UTC format used for all persisted timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DefaultPlaylistID is the well-known "listen later" playlist.
const DefaultPlaylistID = "later"

// QualifiedPlaySeconds is the minimum played duration for a listening span to
// count as a play in statistics.
const QualifiedPlaySeconds = 30

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Playback event names. A listening span starts with EventPlay and is closed
// by exactly one terminating event; played seconds are attributed to the
// terminating row.
const (
	EventPlay       = "play"
	EventPause      = "pause"
	EventEnded      = "ended"
	EventSongChange = "song_change"
	EventPageHide   = "page_hide"
)

// NowISO formats the current instant with [TimeLayout].
func NowISO() string {
	return FormatTime(time.Now())
}

// FormatTime formats t with [TimeLayout].
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NormalizeAccount lowercases and trims an account identifier so lookups are
// case-insensitive across both backends.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// NormalizeRole maps unknown roles to [RoleUser].
func NormalizeRole(role string) string {
	if role == RoleAdmin || role == RoleUser {
		return role
	}
	return RoleUser
}

// NormalizePlaylistID maps blank playlist ids to [DefaultPlaylistID].
func NormalizePlaylistID(playlistID string) string {
	trimmed := strings.TrimSpace(playlistID)
	if trimmed == "" {
		return DefaultPlaylistID
	}
	return trimmed
}

// IsPlaybackEvent reports whether name is a known playback event.
func IsPlaybackEvent(name string) bool {
	switch name {
	case EventPlay, EventPause, EventEnded, EventSongChange, EventPageHide:
		return true
	}
	return false
}

// IsTerminatingEvent reports whether name closes a listening span.
func IsTerminatingEvent(name string) bool {
	switch name {
	case EventPause, EventEnded, EventSongChange, EventPageHide:
		return true
	}
	return false
}

// User is a registered account. Users are soft-deactivated via IsActive and
// never hard-deleted.
type User struct {
	ID           int64  `json:"id"`
	Account      string `json:"account"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	IsActive     bool   `json:"isActive"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AuthSession stores the SHA-256 hash of a session token, never the raw token.
type AuthSession struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	TokenHash string `json:"-"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// SessionUser is a resolved session: the owning user plus the session expiry.
type SessionUser struct {
	User
	SessionExpiresAt string `json:"sessionExpiresAt"`
}

// FavoriteSong is a unique (user, song) favorite.
type FavoriteSong struct {
	ID        int64  `json:"-"`
	UserID    int64  `json:"-"`
	SongID    string `json:"songId"`
	SongTitle string `json:"songTitle"`
	AlbumName string `json:"albumName"`
	CreatedAt string `json:"createdAt"`
}

// PlaylistItem is a playlist membership row. For a fixed (user, playlist) the
// positions always form a dense zero-based permutation.
type PlaylistItem struct {
	ID         int64  `json:"-"`
	UserID     int64  `json:"-"`
	PlaylistID string `json:"playlistId"`
	SongID     string `json:"songId"`
	SongTitle  string `json:"songTitle"`
	AlbumName  string `json:"albumName"`
	Position   int    `json:"position"`
	CreatedAt  string `json:"createdAt"`
}

// PlaybackLogEntry is one append-only telemetry event. SessionID is a
// client-generated correlation id and is unrelated to [AuthSession]. UserID
// is nil for anonymous playback.
type PlaybackLogEntry struct {
	ID              int64    `json:"-"`
	SessionID       string   `json:"sessionId"`
	SongID          string   `json:"songId"`
	SongTitle       string   `json:"songTitle"`
	AlbumName       string   `json:"albumName"`
	Event           string   `json:"event"`
	PositionSeconds float64  `json:"positionSeconds"`
	PlayedSeconds   float64  `json:"playedSeconds"`
	DurationSeconds *float64 `json:"durationSeconds"`
	Pathname        string   `json:"pathname"`
	UserAgent       string   `json:"userAgent"`
	UserID          *int64   `json:"userId"`
	CreatedAt       string   `json:"createdAt"`
}

// StatsScope restricts playback statistics to one user, to all signed-in
// users (UserID nil, IncludeAnonymous false) or to everything (UserID nil,
// IncludeAnonymous true).
type StatsScope struct {
	UserID           *int64
	IncludeAnonymous bool
}

// StatsSummary aggregates terminating events across the selected scope.
type StatsSummary struct {
	TotalPlayedSeconds float64 `json:"totalPlayedSeconds"`
	Sessions           int     `json:"sessions"`
	PlayCount          int     `json:"playCount"`
	SongCount          int     `json:"songCount"`
	AlbumCount         int     `json:"albumCount"`
}

// SongStat is the per-song rollup.
type SongStat struct {
	SongID             string  `json:"songId"`
	SongTitle          string  `json:"songTitle"`
	AlbumName          string  `json:"albumName"`
	TotalPlayedSeconds float64 `json:"totalPlayedSeconds"`
	Sessions           int     `json:"sessions"`
	PlayCount          int     `json:"playCount"`
	AvgSessionSeconds  float64 `json:"avgSessionSeconds"`
	LastPlayedAt       string  `json:"lastPlayedAt,omitempty"`
}

// AlbumStat is the per-album rollup.
type AlbumStat struct {
	AlbumName          string  `json:"albumName"`
	TotalPlayedSeconds float64 `json:"totalPlayedSeconds"`
	Sessions           int     `json:"sessions"`
	PlayCount          int     `json:"playCount"`
	SongCount          int     `json:"songCount"`
	LastPlayedAt       string  `json:"lastPlayedAt,omitempty"`
}

// PlaybackStats is the full statistics payload. Songs and albums are sorted
// by total played time descending, tie-broken by play count, then by most
// recent activity.
type PlaybackStats struct {
	ThresholdSeconds int          `json:"thresholdSeconds"`
	Summary          StatsSummary `json:"summary"`
	Songs            []SongStat   `json:"songs"`
	Albums           []AlbumStat  `json:"albums"`
}
