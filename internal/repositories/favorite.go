package repositories

import (
	"database/sql"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// ListFavorites returns the user's favorites, most recent first.
func (s *Store) ListFavorites(userID int64) ([]models.FavoriteSong, error) {
	rows, err := s.database().Query(`
		SELECT id, user_id, song_id, song_title, album_name, created_at
		FROM favorite_songs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.FavoriteSong
	for rows.Next() {
		var favorite models.FavoriteSong
		if err := rows.Scan(&favorite.ID, &favorite.UserID, &favorite.SongID, &favorite.SongTitle, &favorite.AlbumName, &favorite.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, favorite)
	}
	return favorites, rows.Err()
}

// AddFavorite records a favorite. Re-adding an existing (user, song) pair is
// a no-op thanks to the unique constraint.
func (s *Store) AddFavorite(userID int64, songID, songTitle, albumName string) error {
	if songID == "" || songTitle == "" || albumName == "" {
		return fmt.Errorf("%w: missing song payload", shared.ErrInvalidInput)
	}
	return s.write(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT OR IGNORE INTO favorite_songs (user_id, song_id, song_title, album_name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, userID, songID, songTitle, albumName, models.NowISO())
		if err != nil {
			return fmt.Errorf("failed to insert favorite: %w", err)
		}
		return nil
	})
}

// RemoveFavorite deletes a favorite. Absent rows are a no-op.
func (s *Store) RemoveFavorite(userID int64, songID string) error {
	if songID == "" {
		return nil
	}
	return s.write(func(db *sql.DB) error {
		_, err := db.Exec("DELETE FROM favorite_songs WHERE user_id = ? AND song_id = ?", userID, songID)
		return err
	})
}
