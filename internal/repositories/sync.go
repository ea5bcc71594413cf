package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ours334/player/internal/shared"
)

// SyncTables lists every table the migration engine copies, in dependency
// order so foreign keys resolve on the destination.
var SyncTables = []string{"users", "auth_sessions", "favorite_songs", "playlist_items", "playback_logs"}

// TableExists reports whether the named table is present locally.
func (s *Store) TableExists(table string) (bool, error) {
	var name string
	err := s.database().QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe table %s: %w", table, err)
	}
	return true, nil
}

// CountRows returns the row count of a sync table, optionally restricted to
// rows created at or after fromCreatedAt.
func (s *Store) CountRows(table, fromCreatedAt string) (int64, error) {
	if !isSyncTable(table) {
		return 0, fmt.Errorf("%w: unknown sync table %q", shared.ErrInvalidArgument, table)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	var args []any
	if fromCreatedAt != "" {
		query += " WHERE created_at >= ?"
		args = append(args, fromCreatedAt)
	}

	var count int64
	if err := s.database().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// RowsBatch reads one id-ordered page of a sync table, returning the rows as
// column-keyed maps plus the last id of the page. A page shorter than limit
// means the table is exhausted.
func (s *Store) RowsBatch(table string, afterID int64, limit int, fromCreatedAt string) ([]map[string]any, int64, error) {
	if !isSyncTable(table) {
		return nil, 0, fmt.Errorf("%w: unknown sync table %q", shared.ErrInvalidArgument, table)
	}
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE id > ?", table)
	args := []any{afterID}
	if fromCreatedAt != "" {
		query += " AND created_at >= ?"
		args = append(args, fromCreatedAt)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.database().Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s batch: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s columns: %w", table, err)
	}

	var (
		batch  []map[string]any
		lastID int64
	)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeSyncValue(table, column, values[i])
		}
		if id, ok := record["id"].(int64); ok {
			lastID = id
		}
		batch = append(batch, record)
	}
	return batch, lastID, rows.Err()
}

func isSyncTable(table string) bool {
	for _, known := range SyncTables {
		if known == table {
			return true
		}
	}
	return false
}

// normalizeSyncValue converts sqlite scan values into JSON-friendly ones.
// Sqlite stores booleans as integers, so is_active is mapped back to a bool
// before the row crosses the wire.
func normalizeSyncValue(table, column string, value any) any {
	if raw, ok := value.([]byte); ok {
		value = string(raw)
	}
	if table == "users" && column == "is_active" {
		if flag, ok := value.(int64); ok {
			return flag == 1
		}
	}
	return value
}
