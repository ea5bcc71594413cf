package repositories

import (
	"database/sql"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// ListPlaylist returns the playlist's items in position order.
func (s *Store) ListPlaylist(userID int64, playlistID string) ([]models.PlaylistItem, error) {
	normalized := models.NormalizePlaylistID(playlistID)
	rows, err := s.database().Query(`
		SELECT id, user_id, playlist_id, song_id, song_title, album_name, position, created_at
		FROM playlist_items
		WHERE user_id = ? AND playlist_id = ?
		ORDER BY position ASC, id ASC
	`, userID, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	defer rows.Close()

	var items []models.PlaylistItem
	for rows.Next() {
		var item models.PlaylistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.PlaylistID, &item.SongID, &item.SongTitle, &item.AlbumName, &item.Position, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddPlaylistItem appends a song at the end of the playlist. Returns false
// without writing when the song is already present.
func (s *Store) AddPlaylistItem(userID int64, playlistID, songID, songTitle, albumName string) (bool, error) {
	if songID == "" || songTitle == "" || albumName == "" {
		return false, fmt.Errorf("%w: missing playlist payload", shared.ErrInvalidInput)
	}
	normalized := models.NormalizePlaylistID(playlistID)

	added := false
	err := s.write(func(db *sql.DB) error {
		added = false
		return inTx(db, func(tx *sql.Tx) error {
			var exists int
			err := tx.QueryRow(`
				SELECT 1 FROM playlist_items
				WHERE user_id = ? AND playlist_id = ? AND song_id = ?
				LIMIT 1
			`, userID, normalized, songID).Scan(&exists)
			if err == nil {
				return nil
			}
			if err != sql.ErrNoRows {
				return fmt.Errorf("failed to check playlist item: %w", err)
			}

			var maxPosition int
			if err := tx.QueryRow(`
				SELECT COALESCE(MAX(position), -1) FROM playlist_items
				WHERE user_id = ? AND playlist_id = ?
			`, userID, normalized).Scan(&maxPosition); err != nil {
				return fmt.Errorf("failed to read max position: %w", err)
			}

			if _, err := tx.Exec(`
				INSERT INTO playlist_items (user_id, playlist_id, song_id, song_title, album_name, position, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, userID, normalized, songID, songTitle, albumName, maxPosition+1, models.NowISO()); err != nil {
				return fmt.Errorf("failed to insert playlist item: %w", err)
			}
			added = true
			return nil
		})
	})
	return added, err
}

// RemovePlaylistItem deletes a song from the playlist and compacts the
// remaining positions back to a dense zero-based sequence in the same
// transaction.
func (s *Store) RemovePlaylistItem(userID int64, playlistID, songID string) error {
	if songID == "" {
		return nil
	}
	normalized := models.NormalizePlaylistID(playlistID)

	return s.write(func(db *sql.DB) error {
		return inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				DELETE FROM playlist_items
				WHERE user_id = ? AND playlist_id = ? AND song_id = ?
			`, userID, normalized, songID); err != nil {
				return fmt.Errorf("failed to delete playlist item: %w", err)
			}
			return compactPositions(tx, userID, normalized)
		})
	})
}

// ReorderPlaylist rewrites every position from the supplied song-id order.
// The set must exactly match the stored playlist; otherwise the call returns
// false and nothing changes.
func (s *Store) ReorderPlaylist(userID int64, playlistID string, songIDs []string) (bool, error) {
	if len(songIDs) == 0 {
		return false, fmt.Errorf("%w: songIds is required", shared.ErrInvalidInput)
	}
	normalized := models.NormalizePlaylistID(playlistID)

	applied := false
	err := s.write(func(db *sql.DB) error {
		applied = false
		return inTx(db, func(tx *sql.Tx) error {
			rows, err := tx.Query(`
				SELECT song_id FROM playlist_items
				WHERE user_id = ? AND playlist_id = ?
			`, userID, normalized)
			if err != nil {
				return fmt.Errorf("failed to query playlist songs: %w", err)
			}
			existing := make(map[string]bool)
			for rows.Next() {
				var songID string
				if err := rows.Scan(&songID); err != nil {
					rows.Close()
					return fmt.Errorf("failed to scan song id: %w", err)
				}
				existing[songID] = true
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}
			rows.Close()

			if len(existing) != len(songIDs) {
				return nil
			}
			seen := make(map[string]bool, len(songIDs))
			for _, songID := range songIDs {
				if !existing[songID] || seen[songID] {
					return nil
				}
				seen[songID] = true
			}

			for index, songID := range songIDs {
				if _, err := tx.Exec(`
					UPDATE playlist_items
					SET position = ?
					WHERE user_id = ? AND playlist_id = ? AND song_id = ?
				`, index, userID, normalized, songID); err != nil {
					return fmt.Errorf("failed to update position: %w", err)
				}
			}
			applied = true
			return nil
		})
	})
	return applied, err
}

// compactPositions renumbers the playlist to a dense zero-based sequence
// ordered by current position then insertion id.
func compactPositions(tx *sql.Tx, userID int64, playlistID string) error {
	rows, err := tx.Query(`
		SELECT id FROM playlist_items
		WHERE user_id = ? AND playlist_id = ?
		ORDER BY position ASC, id ASC
	`, userID, playlistID)
	if err != nil {
		return fmt.Errorf("failed to query playlist for compaction: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan playlist id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for index, id := range ids {
		if _, err := tx.Exec("UPDATE playlist_items SET position = ? WHERE id = ?", index, id); err != nil {
			return fmt.Errorf("failed to compact position: %w", err)
		}
	}
	return nil
}
