package library

import (
	"context"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// ListPlaylist reads the playlist in position order from the primary backend.
func (l *Library) ListPlaylist(ctx context.Context, userID int64, playlistID string) ([]models.PlaylistItem, error) {
	normalized := models.NormalizePlaylistID(playlistID)
	if l.remotePrimary() {
		return l.remoteListPlaylist(ctx, userID, normalized)
	}
	return l.local.ListPlaylist(userID, normalized)
}

// AddPlaylistItem appends a song to the playlist on the primary backend and
// mirrors the append. Returns false when the song was already present.
func (l *Library) AddPlaylistItem(ctx context.Context, userID int64, playlistID, songID, songTitle, albumName string) (bool, error) {
	if songID == "" || songTitle == "" || albumName == "" {
		return false, fmt.Errorf("%w: missing playlist payload", shared.ErrInvalidInput)
	}
	normalized := models.NormalizePlaylistID(playlistID)

	if l.remotePrimary() {
		added, err := l.remoteAddPlaylistItem(ctx, userID, normalized, songID, songTitle, albumName)
		if err != nil || !added {
			return added, err
		}
		l.enqueueMirror("mirror playlist add to local", func(ctx context.Context) error {
			_, err := l.local.AddPlaylistItem(userID, normalized, songID, songTitle, albumName)
			return err
		})
		return true, nil
	}

	added, err := l.local.AddPlaylistItem(userID, normalized, songID, songTitle, albumName)
	if err != nil || !added {
		return added, err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror playlist add to remote", func(ctx context.Context) error {
			_, err := l.remoteAddPlaylistItem(ctx, userID, normalized, songID, songTitle, albumName)
			return err
		})
	}
	return true, nil
}

// RemovePlaylistItem deletes a song and re-densifies positions on the
// primary backend, then mirrors both steps.
func (l *Library) RemovePlaylistItem(ctx context.Context, userID int64, playlistID, songID string) error {
	if songID == "" {
		return nil
	}
	normalized := models.NormalizePlaylistID(playlistID)

	if l.remotePrimary() {
		if err := l.remoteRemovePlaylistItem(ctx, userID, normalized, songID); err != nil {
			return err
		}
		l.enqueueMirror("mirror playlist remove to local", func(ctx context.Context) error {
			return l.local.RemovePlaylistItem(userID, normalized, songID)
		})
		return nil
	}

	if err := l.local.RemovePlaylistItem(userID, normalized, songID); err != nil {
		return err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror playlist remove to remote", func(ctx context.Context) error {
			return l.remoteRemovePlaylistItem(ctx, userID, normalized, songID)
		})
	}
	return nil
}

// ReorderPlaylist applies a full permutation of the playlist. The supplied
// set must exactly match the stored one; a mismatch returns false and leaves
// the playlist untouched.
func (l *Library) ReorderPlaylist(ctx context.Context, userID int64, playlistID string, songIDs []string) (bool, error) {
	if len(songIDs) == 0 {
		return false, fmt.Errorf("%w: songIds is required", shared.ErrInvalidInput)
	}
	normalized := models.NormalizePlaylistID(playlistID)
	ordered := append([]string{}, songIDs...)

	if l.remotePrimary() {
		applied, err := l.remoteReorderPlaylist(ctx, userID, normalized, ordered)
		if err != nil || !applied {
			return applied, err
		}
		l.enqueueMirror("mirror reorder to local", func(ctx context.Context) error {
			_, err := l.local.ReorderPlaylist(userID, normalized, ordered)
			return err
		})
		return true, nil
	}

	applied, err := l.local.ReorderPlaylist(userID, normalized, ordered)
	if err != nil || !applied {
		return applied, err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror reorder to remote", func(ctx context.Context) error {
			_, err := l.remoteReorderPlaylist(ctx, userID, normalized, ordered)
			return err
		})
	}
	return true, nil
}
