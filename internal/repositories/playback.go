package repositories

import (
	"database/sql"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// terminatingEvents is the IN tuple selecting rows that close a listening
// span. Statistics only ever read these rows; play events carry no played
// time of their own.
const terminatingEvents = "('pause', 'ended', 'song_change', 'page_hide')"

// InsertPlaybackLog appends one telemetry event. The stored row is returned
// with its id and created_at filled in.
func (s *Store) InsertPlaybackLog(entry models.PlaybackLogEntry) (*models.PlaybackLogEntry, error) {
	if entry.SessionID == "" || entry.SongID == "" {
		return nil, fmt.Errorf("%w: sessionId and songId are required", shared.ErrInvalidInput)
	}
	if !models.IsPlaybackEvent(entry.Event) {
		return nil, fmt.Errorf("%w: unknown event %q", shared.ErrInvalidInput, entry.Event)
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = models.NowISO()
	}

	err := s.write(func(db *sql.DB) error {
		result, err := db.Exec(`
			INSERT INTO playback_logs (
				session_id, song_id, song_title, album_name, event,
				position_seconds, played_seconds, duration_seconds,
				pathname, user_agent, user_id, created_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.SessionID, entry.SongID, entry.SongTitle, entry.AlbumName, entry.Event,
			entry.PositionSeconds, entry.PlayedSeconds, entry.DurationSeconds,
			entry.Pathname, entry.UserAgent, entry.UserID, entry.CreatedAt)
		if err != nil {
			return err
		}
		entry.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert playback log: %w", err)
	}
	return &entry, nil
}

// scopeClause translates a [models.StatsScope] into a WHERE fragment plus its
// bind arguments.
func scopeClause(scope models.StatsScope) (string, []any) {
	if scope.UserID != nil {
		return "user_id = ?", []any{*scope.UserID}
	}
	if !scope.IncludeAnonymous {
		return "user_id IS NOT NULL", nil
	}
	return "1 = 1", nil
}

// PlaybackStats aggregates terminating events into the summary, per-song and
// per-album rollups. A span counts as a play once its played time reaches
// [models.QualifiedPlaySeconds].
func (s *Store) PlaybackStats(scope models.StatsScope) (*models.PlaybackStats, error) {
	where, scopeArgs := scopeClause(scope)
	threshold := models.QualifiedPlaySeconds
	args := append([]any{threshold}, scopeArgs...)

	stats := &models.PlaybackStats{
		ThresholdSeconds: threshold,
		Songs:            []models.SongStat{},
		Albums:           []models.AlbumStat{},
	}

	summaryRow := s.database().QueryRow(fmt.Sprintf(`
		SELECT
			COALESCE(SUM(played_seconds), 0) AS total_played_seconds,
			COUNT(*) AS sessions,
			COALESCE(SUM(CASE WHEN played_seconds >= ? THEN 1 ELSE 0 END), 0) AS play_count,
			COUNT(DISTINCT song_id) AS song_count,
			COUNT(DISTINCT album_name) AS album_count
		FROM playback_logs
		WHERE event IN %s AND %s
	`, terminatingEvents, where), args...)
	if err := summaryRow.Scan(
		&stats.Summary.TotalPlayedSeconds,
		&stats.Summary.Sessions,
		&stats.Summary.PlayCount,
		&stats.Summary.SongCount,
		&stats.Summary.AlbumCount,
	); err != nil {
		return nil, fmt.Errorf("failed to query stats summary: %w", err)
	}

	songRows, err := s.database().Query(fmt.Sprintf(`
		SELECT
			song_id, song_title, album_name,
			COALESCE(SUM(played_seconds), 0) AS total_played_seconds,
			COUNT(*) AS sessions,
			COALESCE(SUM(CASE WHEN played_seconds >= ? THEN 1 ELSE 0 END), 0) AS play_count,
			MAX(created_at) AS last_played_at
		FROM playback_logs
		WHERE event IN %s AND %s
		GROUP BY song_id, song_title, album_name
		HAVING COUNT(*) > 0
		ORDER BY total_played_seconds DESC, play_count DESC, last_played_at DESC
	`, terminatingEvents, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query song stats: %w", err)
	}
	defer songRows.Close()

	for songRows.Next() {
		var (
			song         models.SongStat
			lastPlayedAt sql.NullString
		)
		if err := songRows.Scan(&song.SongID, &song.SongTitle, &song.AlbumName,
			&song.TotalPlayedSeconds, &song.Sessions, &song.PlayCount, &lastPlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan song stat: %w", err)
		}
		if song.Sessions > 0 {
			song.AvgSessionSeconds = song.TotalPlayedSeconds / float64(song.Sessions)
		}
		song.LastPlayedAt = lastPlayedAt.String
		stats.Songs = append(stats.Songs, song)
	}
	if err := songRows.Err(); err != nil {
		return nil, err
	}

	albumRows, err := s.database().Query(fmt.Sprintf(`
		SELECT
			album_name,
			COALESCE(SUM(played_seconds), 0) AS total_played_seconds,
			COUNT(*) AS sessions,
			COALESCE(SUM(CASE WHEN played_seconds >= ? THEN 1 ELSE 0 END), 0) AS play_count,
			COUNT(DISTINCT song_id) AS song_count,
			MAX(created_at) AS last_played_at
		FROM playback_logs
		WHERE event IN %s AND %s
		GROUP BY album_name
		HAVING COUNT(*) > 0
		ORDER BY total_played_seconds DESC, play_count DESC, last_played_at DESC
	`, terminatingEvents, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query album stats: %w", err)
	}
	defer albumRows.Close()

	for albumRows.Next() {
		var (
			album        models.AlbumStat
			lastPlayedAt sql.NullString
		)
		if err := albumRows.Scan(&album.AlbumName, &album.TotalPlayedSeconds,
			&album.Sessions, &album.PlayCount, &album.SongCount, &lastPlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan album stat: %w", err)
		}
		album.LastPlayedAt = lastPlayedAt.String
		stats.Albums = append(stats.Albums, album)
	}
	if err := albumRows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// AssignAnonymousLogs claims every anonymous playback row for the given user.
// Returns how many rows were claimed and how many anonymous rows remain.
func (s *Store) AssignAnonymousLogs(userID int64) (migrated, remaining int64, err error) {
	err = s.write(func(db *sql.DB) error {
		return inTx(db, func(tx *sql.Tx) error {
			var before int64
			if err := tx.QueryRow("SELECT COUNT(*) FROM playback_logs WHERE user_id IS NULL").Scan(&before); err != nil {
				return fmt.Errorf("failed to count anonymous logs: %w", err)
			}
			if _, err := tx.Exec("UPDATE playback_logs SET user_id = ? WHERE user_id IS NULL", userID); err != nil {
				return fmt.Errorf("failed to claim anonymous logs: %w", err)
			}
			if err := tx.QueryRow("SELECT COUNT(*) FROM playback_logs WHERE user_id IS NULL").Scan(&remaining); err != nil {
				return fmt.Errorf("failed to recount anonymous logs: %w", err)
			}
			migrated = before - remaining
			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}
	return migrated, remaining, nil
}
