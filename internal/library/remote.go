package library

import (
	"context"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
)

// Row decoding helpers. PostgREST rows arrive as map[string]any with every
// number as float64.

func rowString(row map[string]any, key string) string {
	if value, ok := row[key].(string); ok {
		return value
	}
	return ""
}

func rowInt64(row map[string]any, key string) int64 {
	switch value := row[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	}
	return 0
}

func rowFloat(row map[string]any, key string) float64 {
	switch value := row[key].(type) {
	case float64:
		return value
	case int64:
		return float64(value)
	}
	return 0
}

func rowBool(row map[string]any, key string) bool {
	switch value := row[key].(type) {
	case bool:
		return value
	case float64:
		return value == 1
	}
	return false
}

func userFromRow(row map[string]any) *models.User {
	if row == nil {
		return nil
	}
	return &models.User{
		ID:           rowInt64(row, "id"),
		Account:      rowString(row, "email"),
		PasswordHash: rowString(row, "password_hash"),
		Role:         models.NormalizeRole(rowString(row, "role")),
		IsActive:     rowBool(row, "is_active"),
		CreatedAt:    rowString(row, "created_at"),
		UpdatedAt:    rowString(row, "updated_at"),
	}
}

func favoriteFromRow(row map[string]any) models.FavoriteSong {
	return models.FavoriteSong{
		ID:        rowInt64(row, "id"),
		UserID:    rowInt64(row, "user_id"),
		SongID:    rowString(row, "song_id"),
		SongTitle: rowString(row, "song_title"),
		AlbumName: rowString(row, "album_name"),
		CreatedAt: rowString(row, "created_at"),
	}
}

func playlistItemFromRow(row map[string]any) models.PlaylistItem {
	return models.PlaylistItem{
		ID:         rowInt64(row, "id"),
		UserID:     rowInt64(row, "user_id"),
		PlaylistID: rowString(row, "playlist_id"),
		SongID:     rowString(row, "song_id"),
		SongTitle:  rowString(row, "song_title"),
		AlbumName:  rowString(row, "album_name"),
		Position:   int(rowInt64(row, "position")),
		CreatedAt:  rowString(row, "created_at"),
	}
}

func entryFromRow(row map[string]any) models.PlaybackLogEntry {
	entry := models.PlaybackLogEntry{
		ID:              rowInt64(row, "id"),
		SessionID:       rowString(row, "session_id"),
		SongID:          rowString(row, "song_id"),
		SongTitle:       rowString(row, "song_title"),
		AlbumName:       rowString(row, "album_name"),
		Event:           rowString(row, "event"),
		PositionSeconds: rowFloat(row, "position_seconds"),
		PlayedSeconds:   rowFloat(row, "played_seconds"),
		Pathname:        rowString(row, "pathname"),
		UserAgent:       rowString(row, "user_agent"),
		CreatedAt:       rowString(row, "created_at"),
	}
	if _, ok := row["duration_seconds"].(float64); ok {
		duration := rowFloat(row, "duration_seconds")
		entry.DurationSeconds = &duration
	}
	if _, ok := row["user_id"].(float64); ok {
		userID := rowInt64(row, "user_id")
		entry.UserID = &userID
	}
	return entry
}

func entryToRow(entry models.PlaybackLogEntry) map[string]any {
	row := map[string]any{
		"session_id":       entry.SessionID,
		"song_id":          entry.SongID,
		"song_title":       entry.SongTitle,
		"album_name":       entry.AlbumName,
		"event":            entry.Event,
		"position_seconds": entry.PositionSeconds,
		"played_seconds":   entry.PlayedSeconds,
		"pathname":         entry.Pathname,
		"user_agent":       entry.UserAgent,
		"created_at":       entry.CreatedAt,
	}
	if entry.DurationSeconds != nil {
		row["duration_seconds"] = *entry.DurationSeconds
	}
	if entry.UserID != nil {
		row["user_id"] = *entry.UserID
	}
	return row
}

// Remote operations. Each mirrors one repositories method onto the REST
// store.

func (l *Library) remoteUserByAccount(ctx context.Context, account string) (*models.User, error) {
	normalized := models.NormalizeAccount(account)
	if normalized == "" {
		return nil, nil
	}
	row, err := l.remote.FetchOne(ctx, "users", services.FetchOptions{
		Filters: []services.Filter{services.Eq("email", normalized)},
	})
	if err != nil {
		return nil, err
	}
	return userFromRow(row), nil
}

func (l *Library) remoteUserByID(ctx context.Context, id int64) (*models.User, error) {
	row, err := l.remote.FetchOne(ctx, "users", services.FetchOptions{
		Filters: []services.Filter{services.Eq("id", id)},
	})
	if err != nil {
		return nil, err
	}
	return userFromRow(row), nil
}

func (l *Library) remoteCreateUser(ctx context.Context, account, passwordHash, role string) (*models.User, error) {
	normalized := models.NormalizeAccount(account)
	existing, err := l.remoteUserByAccount(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrDuplicateAccount, normalized)
	}

	// The remote users table mirrors sqlite's integer ids rather than
	// relying on a serial column, so the id is assigned explicitly.
	maxID, err := l.remote.MaxID(ctx, "users")
	if err != nil {
		return nil, err
	}

	now := models.NowISO()
	rows, err := l.remote.Insert(ctx, "users", []map[string]any{{
		"id":            maxID + 1,
		"email":         normalized,
		"password_hash": passwordHash,
		"role":          models.NormalizeRole(role),
		"is_active":     true,
		"created_at":    now,
		"updated_at":    now,
	}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: insert returned no representation", shared.ErrRemoteRequest)
	}
	return userFromRow(rows[0]), nil
}

func (l *Library) remoteCreateSession(ctx context.Context, userID int64, tokenHash, expiresAt string) error {
	_, err := l.remote.Insert(ctx, "auth_sessions", []map[string]any{{
		"user_id":    userID,
		"token_hash": tokenHash,
		"created_at": models.NowISO(),
		"expires_at": expiresAt,
	}})
	return err
}

func (l *Library) remoteDeleteSession(ctx context.Context, tokenHash string) error {
	return l.remote.Delete(ctx, "auth_sessions", []services.Filter{
		services.Eq("token_hash", tokenHash),
	})
}

func (l *Library) remoteResolveSession(ctx context.Context, tokenHash, now string) (*models.SessionUser, error) {
	// Lazy expiry, same as the sqlite path: purge, then look up.
	if err := l.remote.Delete(ctx, "auth_sessions", []services.Filter{
		{Column: "expires_at", Operator: "lte", Value: now},
	}); err != nil {
		return nil, err
	}

	session, err := l.remote.FetchOne(ctx, "auth_sessions", services.FetchOptions{
		Filters: []services.Filter{services.Eq("token_hash", tokenHash)},
	})
	if err != nil || session == nil {
		return nil, err
	}

	user, err := l.remoteUserByID(ctx, rowInt64(session, "user_id"))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}
	return &models.SessionUser{User: *user, SessionExpiresAt: rowString(session, "expires_at")}, nil
}

func (l *Library) remoteListFavorites(ctx context.Context, userID int64) ([]models.FavoriteSong, error) {
	rows, err := l.remote.Fetch(ctx, "favorite_songs", services.FetchOptions{
		Filters: []services.Filter{services.Eq("user_id", userID)},
		OrderBy: []string{"created_at.desc", "id.desc"},
	})
	if err != nil {
		return nil, err
	}
	favorites := make([]models.FavoriteSong, 0, len(rows))
	for _, row := range rows {
		favorites = append(favorites, favoriteFromRow(row))
	}
	return favorites, nil
}

func (l *Library) remoteAddFavorite(ctx context.Context, userID int64, songID, songTitle, albumName string) error {
	return l.remote.Upsert(ctx, "favorite_songs", []map[string]any{{
		"user_id":    userID,
		"song_id":    songID,
		"song_title": songTitle,
		"album_name": albumName,
		"created_at": models.NowISO(),
	}}, "user_id,song_id")
}

func (l *Library) remoteRemoveFavorite(ctx context.Context, userID int64, songID string) error {
	return l.remote.Delete(ctx, "favorite_songs", []services.Filter{
		services.Eq("user_id", userID),
		services.Eq("song_id", songID),
	})
}

func (l *Library) remoteListPlaylist(ctx context.Context, userID int64, playlistID string) ([]models.PlaylistItem, error) {
	rows, err := l.remote.Fetch(ctx, "playlist_items", services.FetchOptions{
		Filters: []services.Filter{
			services.Eq("user_id", userID),
			services.Eq("playlist_id", playlistID),
		},
		OrderBy: []string{"position.asc", "id.asc"},
	})
	if err != nil {
		return nil, err
	}
	items := make([]models.PlaylistItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, playlistItemFromRow(row))
	}
	return items, nil
}

func (l *Library) remoteAddPlaylistItem(ctx context.Context, userID int64, playlistID, songID, songTitle, albumName string) (bool, error) {
	items, err := l.remoteListPlaylist(ctx, userID, playlistID)
	if err != nil {
		return false, err
	}
	maxPosition := -1
	for _, item := range items {
		if item.SongID == songID {
			return false, nil
		}
		if item.Position > maxPosition {
			maxPosition = item.Position
		}
	}

	err = l.remote.Upsert(ctx, "playlist_items", []map[string]any{{
		"user_id":     userID,
		"playlist_id": playlistID,
		"song_id":     songID,
		"song_title":  songTitle,
		"album_name":  albumName,
		"position":    maxPosition + 1,
		"created_at":  models.NowISO(),
	}}, "user_id,playlist_id,song_id")
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Library) remoteRemovePlaylistItem(ctx context.Context, userID int64, playlistID, songID string) error {
	if err := l.remote.Delete(ctx, "playlist_items", []services.Filter{
		services.Eq("user_id", userID),
		services.Eq("playlist_id", playlistID),
		services.Eq("song_id", songID),
	}); err != nil {
		return err
	}
	return l.remoteCompactPositions(ctx, userID, playlistID)
}

func (l *Library) remoteCompactPositions(ctx context.Context, userID int64, playlistID string) error {
	items, err := l.remoteListPlaylist(ctx, userID, playlistID)
	if err != nil {
		return err
	}
	for index, item := range items {
		if item.Position == index {
			continue
		}
		if err := l.remote.Patch(ctx, "playlist_items", []services.Filter{
			services.Eq("id", item.ID),
		}, map[string]any{"position": index}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Library) remoteReorderPlaylist(ctx context.Context, userID int64, playlistID string, songIDs []string) (bool, error) {
	items, err := l.remoteListPlaylist(ctx, userID, playlistID)
	if err != nil {
		return false, err
	}
	if len(items) != len(songIDs) {
		return false, nil
	}

	bySong := make(map[string]models.PlaylistItem, len(items))
	for _, item := range items {
		bySong[item.SongID] = item
	}
	seen := make(map[string]bool, len(songIDs))
	for _, songID := range songIDs {
		if _, ok := bySong[songID]; !ok || seen[songID] {
			return false, nil
		}
		seen[songID] = true
	}

	for index, songID := range songIDs {
		item := bySong[songID]
		if item.Position == index {
			continue
		}
		if err := l.remote.Patch(ctx, "playlist_items", []services.Filter{
			services.Eq("id", item.ID),
		}, map[string]any{"position": index}); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (l *Library) remoteInsertLog(ctx context.Context, entry models.PlaybackLogEntry) (*models.PlaybackLogEntry, error) {
	rows, err := l.remote.Insert(ctx, "playback_logs", []map[string]any{entryToRow(entry)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: insert returned no representation", shared.ErrRemoteRequest)
	}
	stored := entryFromRow(rows[0])
	return &stored, nil
}
