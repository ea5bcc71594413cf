package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// CreateSession stores a hashed session token with its expiry.
func (s *Store) CreateSession(userID int64, tokenHash, expiresAt string) error {
	if tokenHash == "" || expiresAt == "" {
		return fmt.Errorf("%w: token hash and expiry are required", shared.ErrInvalidInput)
	}
	return s.write(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO auth_sessions (user_id, token_hash, created_at, expires_at)
			VALUES (?, ?, ?, ?)
		`, userID, tokenHash, models.NowISO(), expiresAt)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

// DeleteSession removes the session with the given token hash. Absent rows
// are a no-op.
func (s *Store) DeleteSession(tokenHash string) error {
	if tokenHash == "" {
		return nil
	}
	return s.write(func(db *sql.DB) error {
		_, err := db.Exec("DELETE FROM auth_sessions WHERE token_hash = ?", tokenHash)
		return err
	})
}

// DeleteExpiredSessions removes every session whose expiry is at or before
// now (an ISO timestamp; ISO strings order lexicographically).
func (s *Store) DeleteExpiredSessions(now string) error {
	return s.write(func(db *sql.DB) error {
		_, err := db.Exec("DELETE FROM auth_sessions WHERE expires_at <= ?", now)
		return err
	})
}

// SessionUserByTokenHash resolves a session token hash to its owning user.
// Expired sessions are purged as part of the same lookup pass. Returns nil
// without error when no valid session exists or the user is inactive.
func (s *Store) SessionUserByTokenHash(tokenHash, now string) (*models.SessionUser, error) {
	if tokenHash == "" {
		return nil, nil
	}
	if err := s.DeleteExpiredSessions(now); err != nil {
		return nil, fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	row := s.database().QueryRow(`
		SELECT
			u.id, u.email, u.password_hash, u.role, u.is_active, u.created_at, u.updated_at,
			s.expires_at
		FROM auth_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = ?
		LIMIT 1
	`, tokenHash)

	var (
		user      models.SessionUser
		isActive  int
		expiresAt string
	)
	err := row.Scan(&user.ID, &user.Account, &user.PasswordHash, &user.Role, &isActive, &user.CreatedAt, &user.UpdatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session user: %w", err)
	}
	if isActive != 1 {
		return nil, nil
	}
	user.IsActive = true
	user.SessionExpiresAt = expiresAt
	return &user, nil
}
