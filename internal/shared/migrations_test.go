package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		for _, table := range []string{"users", "auth_sessions", "favorite_songs", "playlist_items", "playback_logs"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var after int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if after != count-1 {
			t.Errorf("expected %d applied migrations after rollback, got %d", count-1, after)
		}
	})

	t.Run("RunMigrations is idempotent", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
	})
}

func TestColumnProbing(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Run("ColumnExists", func(t *testing.T) {
		exists, err := ColumnExists(db, "playback_logs", "user_id")
		if err != nil {
			t.Fatalf("probe failed: %v", err)
		}
		if !exists {
			t.Error("user_id should exist on playback_logs after migrations")
		}

		exists, err = ColumnExists(db, "playback_logs", "bogus_column")
		if err != nil {
			t.Fatalf("probe failed: %v", err)
		}
		if exists {
			t.Error("bogus_column should not exist")
		}
	})

	t.Run("skipStatement", func(t *testing.T) {
		skip, err := skipStatement(db, "ALTER TABLE playback_logs ADD COLUMN user_id INTEGER")
		if err != nil {
			t.Fatalf("skipStatement failed: %v", err)
		}
		if !skip {
			t.Error("ALTER adding an existing column should be skipped")
		}

		skip, err = skipStatement(db, "ALTER TABLE playback_logs ADD COLUMN brand_new TEXT")
		if err != nil {
			t.Fatalf("skipStatement failed: %v", err)
		}
		if skip {
			t.Error("ALTER adding a new column should not be skipped")
		}

		skip, err = skipStatement(db, "CREATE INDEX IF NOT EXISTS idx ON playback_logs (song_id)")
		if err != nil {
			t.Fatalf("skipStatement failed: %v", err)
		}
		if skip {
			t.Error("non-ALTER statements are never skipped")
		}
	})

	t.Run("migrating an older schema", func(t *testing.T) {
		// A database created before the user_id migration ran has the
		// playback_logs table without the column. RunMigrations must add
		// it without tripping over the tables that already exist.
		old, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer old.Close()

		_, err = old.Exec(`CREATE TABLE playback_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			song_id TEXT NOT NULL,
			song_title TEXT NOT NULL,
			album_name TEXT NOT NULL,
			event TEXT NOT NULL,
			position_seconds REAL NOT NULL DEFAULT 0,
			played_seconds REAL NOT NULL DEFAULT 0,
			duration_seconds REAL,
			pathname TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (STRFTIME('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`)
		if err != nil {
			t.Fatalf("failed to seed old schema: %v", err)
		}

		if err := RunMigrations(old); err != nil {
			t.Fatalf("failed to migrate old schema: %v", err)
		}

		exists, err := ColumnExists(old, "playback_logs", "user_id")
		if err != nil {
			t.Fatalf("probe failed: %v", err)
		}
		if !exists {
			t.Error("user_id should be added to the pre-existing table")
		}
	})
}
