package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

const userColumns = "id, email, password_hash, role, is_active, created_at, updated_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user     models.User
		isActive int
	)
	err := row.Scan(&user.ID, &user.Account, &user.PasswordHash, &user.Role, &isActive, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.IsActive = isActive == 1
	return &user, nil
}

// UserByID returns the user with the given id, or nil when absent.
func (s *Store) UserByID(id int64) (*models.User, error) {
	row := s.database().QueryRow(fmt.Sprintf("SELECT %s FROM users WHERE id = ?", userColumns), id)
	return scanUser(row)
}

// UserByAccount returns the user with the given account, or nil when absent.
// The account is normalized before comparison.
func (s *Store) UserByAccount(account string) (*models.User, error) {
	normalized := models.NormalizeAccount(account)
	if normalized == "" {
		return nil, nil
	}
	row := s.database().QueryRow(fmt.Sprintf("SELECT %s FROM users WHERE email = ?", userColumns), normalized)
	return scanUser(row)
}

// CreateUser inserts a new active user. A duplicate account surfaces as
// [shared.ErrDuplicateAccount].
func (s *Store) CreateUser(account, passwordHash, role string) (*models.User, error) {
	normalized := models.NormalizeAccount(account)
	if normalized == "" {
		return nil, fmt.Errorf("%w: account is required", shared.ErrInvalidInput)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password hash is required", shared.ErrInvalidInput)
	}
	normalizedRole := models.NormalizeRole(role)

	var id int64
	err := s.write(func(db *sql.DB) error {
		now := models.NowISO()
		result, err := db.Exec(`
			INSERT INTO users (email, password_hash, role, is_active, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
		`, normalized, passwordHash, normalizedRole, now, now)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s", shared.ErrDuplicateAccount, normalized)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return s.UserByID(id)
}

// UpsertUserByAccount creates the account or resets its password hash, role
// and active flag. Last writer wins on the unique account key.
func (s *Store) UpsertUserByAccount(account, passwordHash, role string) (*models.User, error) {
	existing, err := s.UserByAccount(account)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.CreateUser(account, passwordHash, role)
	}

	normalizedRole := role
	if models.NormalizeRole(role) != role {
		normalizedRole = existing.Role
	}

	err = s.write(func(db *sql.DB) error {
		_, err := db.Exec(`
			UPDATE users
			SET password_hash = ?, role = ?, is_active = 1, updated_at = ?
			WHERE id = ?
		`, passwordHash, normalizedRole, models.NowISO(), existing.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return s.UserByID(existing.ID)
}
