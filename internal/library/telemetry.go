package library

import (
	"context"
	"fmt"
	"sort"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
)

// LogPlayback appends one telemetry event to the primary backend and mirrors
// it. The entry keeps whatever UserID the caller resolved; anonymous rows are
// first-class.
func (l *Library) LogPlayback(ctx context.Context, entry models.PlaybackLogEntry) (*models.PlaybackLogEntry, error) {
	if entry.SessionID == "" || entry.SongID == "" {
		return nil, fmt.Errorf("%w: sessionId and songId are required", shared.ErrInvalidInput)
	}
	if !models.IsPlaybackEvent(entry.Event) {
		return nil, fmt.Errorf("%w: unknown event %q", shared.ErrInvalidInput, entry.Event)
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = models.NowISO()
	}

	if l.remotePrimary() {
		stored, err := l.remoteInsertLog(ctx, entry)
		if err != nil {
			return nil, err
		}
		l.enqueueMirror("mirror playback log to local", func(ctx context.Context) error {
			_, err := l.local.InsertPlaybackLog(entry)
			return err
		})
		return stored, nil
	}

	stored, err := l.local.InsertPlaybackLog(entry)
	if err != nil {
		return nil, err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror playback log to remote", func(ctx context.Context) error {
			_, err := l.remoteInsertLog(ctx, entry)
			return err
		})
	}
	return stored, nil
}

// Stats computes the playback rollups for a scope from the primary backend.
func (l *Library) Stats(ctx context.Context, scope models.StatsScope) (*models.PlaybackStats, error) {
	if l.remotePrimary() {
		return l.remoteStats(ctx, scope)
	}
	return l.local.PlaybackStats(scope)
}

// remoteStats scans the remote terminating events for the scope and
// aggregates them in memory; the REST dialect has no GROUP BY.
func (l *Library) remoteStats(ctx context.Context, scope models.StatsScope) (*models.PlaybackStats, error) {
	filters := []services.Filter{
		{Column: "event", Operator: "in", Value: "(pause,ended,song_change,page_hide)"},
	}
	switch {
	case scope.UserID != nil:
		filters = append(filters, services.Eq("user_id", *scope.UserID))
	case !scope.IncludeAnonymous:
		filters = append(filters, services.Filter{Column: "user_id", Operator: "not.is", Value: "null"})
	}

	rows, err := l.remote.FetchAll(ctx, "playback_logs", services.FetchOptions{Filters: filters})
	if err != nil {
		return nil, err
	}

	entries := make([]models.PlaybackLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRow(row))
	}
	return buildStats(entries), nil
}

// buildStats aggregates terminating events into the stats payload, matching
// the sqlite rollups: totals per song and per album, qualified plays at the
// threshold, ordering by played time then play count then recency.
func buildStats(entries []models.PlaybackLogEntry) *models.PlaybackStats {
	stats := &models.PlaybackStats{
		ThresholdSeconds: models.QualifiedPlaySeconds,
		Songs:            []models.SongStat{},
		Albums:           []models.AlbumStat{},
	}

	songs := make(map[string]*models.SongStat)
	albums := make(map[string]*models.AlbumStat)
	albumSongs := make(map[string]map[string]bool)
	songSet := make(map[string]bool)

	for _, entry := range entries {
		if !models.IsTerminatingEvent(entry.Event) {
			continue
		}

		stats.Summary.TotalPlayedSeconds += entry.PlayedSeconds
		stats.Summary.Sessions++
		qualified := entry.PlayedSeconds >= float64(models.QualifiedPlaySeconds)
		if qualified {
			stats.Summary.PlayCount++
		}
		songSet[entry.SongID] = true

		songKey := entry.SongID + "\x00" + entry.SongTitle + "\x00" + entry.AlbumName
		song, ok := songs[songKey]
		if !ok {
			song = &models.SongStat{SongID: entry.SongID, SongTitle: entry.SongTitle, AlbumName: entry.AlbumName}
			songs[songKey] = song
		}
		song.TotalPlayedSeconds += entry.PlayedSeconds
		song.Sessions++
		if qualified {
			song.PlayCount++
		}
		if entry.CreatedAt > song.LastPlayedAt {
			song.LastPlayedAt = entry.CreatedAt
		}

		album, ok := albums[entry.AlbumName]
		if !ok {
			album = &models.AlbumStat{AlbumName: entry.AlbumName}
			albums[entry.AlbumName] = album
			albumSongs[entry.AlbumName] = make(map[string]bool)
		}
		album.TotalPlayedSeconds += entry.PlayedSeconds
		album.Sessions++
		if qualified {
			album.PlayCount++
		}
		albumSongs[entry.AlbumName][entry.SongID] = true
		if entry.CreatedAt > album.LastPlayedAt {
			album.LastPlayedAt = entry.CreatedAt
		}
	}

	stats.Summary.SongCount = len(songSet)
	stats.Summary.AlbumCount = len(albums)

	for _, song := range songs {
		if song.Sessions > 0 {
			song.AvgSessionSeconds = song.TotalPlayedSeconds / float64(song.Sessions)
		}
		stats.Songs = append(stats.Songs, *song)
	}
	for name, album := range albums {
		album.SongCount = len(albumSongs[name])
		stats.Albums = append(stats.Albums, *album)
	}

	sort.Slice(stats.Songs, func(i, j int) bool {
		a, b := stats.Songs[i], stats.Songs[j]
		if a.TotalPlayedSeconds != b.TotalPlayedSeconds {
			return a.TotalPlayedSeconds > b.TotalPlayedSeconds
		}
		if a.PlayCount != b.PlayCount {
			return a.PlayCount > b.PlayCount
		}
		return a.LastPlayedAt > b.LastPlayedAt
	})
	sort.Slice(stats.Albums, func(i, j int) bool {
		a, b := stats.Albums[i], stats.Albums[j]
		if a.TotalPlayedSeconds != b.TotalPlayedSeconds {
			return a.TotalPlayedSeconds > b.TotalPlayedSeconds
		}
		if a.PlayCount != b.PlayCount {
			return a.PlayCount > b.PlayCount
		}
		return a.LastPlayedAt > b.LastPlayedAt
	})

	return stats
}
