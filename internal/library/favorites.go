package library

import (
	"context"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// ListFavorites reads the user's favorites from the primary backend.
func (l *Library) ListFavorites(ctx context.Context, userID int64) ([]models.FavoriteSong, error) {
	if l.remotePrimary() {
		return l.remoteListFavorites(ctx, userID)
	}
	return l.local.ListFavorites(userID)
}

// AddFavorite records a favorite on the primary backend and mirrors it.
// Adding an existing favorite is a no-op on both sides.
func (l *Library) AddFavorite(ctx context.Context, userID int64, songID, songTitle, albumName string) error {
	if songID == "" || songTitle == "" || albumName == "" {
		return fmt.Errorf("%w: missing song payload", shared.ErrInvalidInput)
	}

	if l.remotePrimary() {
		if err := l.remoteAddFavorite(ctx, userID, songID, songTitle, albumName); err != nil {
			return err
		}
		l.enqueueMirror("mirror favorite to local", func(ctx context.Context) error {
			return l.local.AddFavorite(userID, songID, songTitle, albumName)
		})
		return nil
	}

	if err := l.local.AddFavorite(userID, songID, songTitle, albumName); err != nil {
		return err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror favorite to remote", func(ctx context.Context) error {
			return l.remoteAddFavorite(ctx, userID, songID, songTitle, albumName)
		})
	}
	return nil
}

// RemoveFavorite deletes a favorite on the primary backend and mirrors the
// delete.
func (l *Library) RemoveFavorite(ctx context.Context, userID int64, songID string) error {
	if songID == "" {
		return nil
	}

	if l.remotePrimary() {
		if err := l.remoteRemoveFavorite(ctx, userID, songID); err != nil {
			return err
		}
		l.enqueueMirror("mirror favorite delete to local", func(ctx context.Context) error {
			return l.local.RemoveFavorite(userID, songID)
		})
		return nil
	}

	if err := l.local.RemoveFavorite(userID, songID); err != nil {
		return err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror favorite delete to remote", func(ctx context.Context) error {
			return l.remoteRemoveFavorite(ctx, userID, songID)
		})
	}
	return nil
}
