package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/repositories"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
)

func setupTestStore(t *testing.T) *repositories.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "playback_logs.sqlite")
	store, err := repositories.OpenPath(path, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMirrorRunsJobs(t *testing.T) {
	mirror := NewMirror(4, shared.NewLogger(nil))

	var (
		mu  sync.Mutex
		ran []string
	)
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("job-%d", i)
		mirror.Enqueue(name, func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		})
	}
	mirror.Close()

	if len(ran) != 3 {
		t.Fatalf("expected 3 jobs to run, got %d", len(ran))
	}
}

func TestMirrorFailuresStayInvisible(t *testing.T) {
	mirror := NewMirror(4, shared.NewLogger(nil))

	done := make(chan struct{})
	mirror.Enqueue("failing", func(ctx context.Context) error {
		close(done)
		return errors.New("remote down")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror job never ran")
	}
	mirror.Close()
}

func TestMirrorDropsWhenFull(t *testing.T) {
	mirror := NewMirror(1, shared.NewLogger(nil))
	defer mirror.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	mirror.Enqueue("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// Fill the single queue slot, then overflow it. Enqueue must return
	// immediately either way.
	mirror.Enqueue("queued", func(ctx context.Context) error { return nil })
	finished := make(chan struct{})
	go func() {
		mirror.Enqueue("dropped", func(ctx context.Context) error { return nil })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
	close(release)
}

// fakeRemote is a minimal PostgREST stand-in backed by per-table row slices.
type fakeRemote struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
}

func newFakeRemote(tables ...string) *fakeRemote {
	f := &fakeRemote{tables: make(map[string][]map[string]any)}
	for _, table := range tables {
		f.tables[table] = []map[string]any{}
	}
	return f
}

func (f *fakeRemote) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		rows, ok := f.tables[table]
		if !ok {
			http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", f.countLocked(table, r)))
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{})
		case http.MethodPost:
			var incoming []map[string]any
			if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			conflict := conflictColumns(r)
			for _, row := range incoming {
				f.tables[table] = upsertRow(f.tables[table], row, conflict)
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			var values map[string]any
			json.NewDecoder(r.Body).Decode(&values)
			for _, row := range rows {
				if matchesNullUser(r, row) {
					for k, v := range values {
						row[k] = v
					}
				}
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unsupported", http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeRemote) countLocked(table string, r *http.Request) int {
	count := 0
	for _, row := range f.tables[table] {
		if matchesNullUser(r, row) {
			count++
		}
	}
	return count
}

// conflictColumns reads the upsert key the client asked for; an empty slice
// means plain insert.
func conflictColumns(r *http.Request) []string {
	raw := r.URL.Query().Get("on_conflict")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// upsertRow merges row into rows the way PostgREST resolves merge-duplicates:
// a row matching on every conflict column is replaced, anything else appends.
func upsertRow(rows []map[string]any, row map[string]any, conflict []string) []map[string]any {
	if len(conflict) == 0 {
		return append(rows, row)
	}
	for i, existing := range rows {
		match := true
		for _, column := range conflict {
			if fmt.Sprint(existing[column]) != fmt.Sprint(row[column]) {
				match = false
				break
			}
		}
		if match {
			rows[i] = row
			return rows
		}
	}
	return append(rows, row)
}

func matchesNullUser(r *http.Request, row map[string]any) bool {
	if r.URL.Query().Get("user_id") != "is.null" {
		return true
	}
	return row["user_id"] == nil
}

func setupEngine(t *testing.T, remote *fakeRemote) (*SyncEngine, *repositories.Store) {
	t.Helper()

	store := setupTestStore(t)
	server := httptest.NewServer(remote.handler())
	t.Cleanup(server.Close)

	client, err := services.NewClient(shared.RemoteConfig{URL: server.URL, ServiceKey: "key"}, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	engine, err := NewSyncEngine(store, client, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine, store
}

func seedStore(t *testing.T, store *repositories.Store, logCount int) *models.User {
	t.Helper()

	user, err := store.CreateUser("sync@example.com", "scrypt$00$00", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := store.AddFavorite(user.ID, "song-1", "Song One", "Album A"); err != nil {
		t.Fatalf("failed to add favorite: %v", err)
	}
	for i := 0; i < logCount; i++ {
		if _, err := store.InsertPlaybackLog(models.PlaybackLogEntry{
			SessionID:     "session-" + strconv.Itoa(i),
			SongID:        "song-1",
			SongTitle:     "Song One",
			AlbumName:     "Album A",
			Event:         models.EventEnded,
			PlayedSeconds: 120,
			UserID:        &user.ID,
		}); err != nil {
			t.Fatalf("failed to insert log: %v", err)
		}
	}
	return user
}

func TestSyncRunPushesBatches(t *testing.T) {
	remote := newFakeRemote(repositories.SyncTables...)
	engine, store := setupEngine(t, remote)
	seedStore(t, store, 7)

	results, err := engine.Run(context.Background(), SyncOptions{BatchSize: 3})
	if err != nil {
		t.Fatalf("sync run failed: %v", err)
	}

	byTable := make(map[string]TableResult)
	for _, result := range results {
		byTable[result.Table] = result
	}
	if got := byTable["playback_logs"]; got.Rows != 7 || got.Batches != 3 {
		t.Errorf("expected 7 rows over 3 batches, got %+v", got)
	}
	if got := byTable["users"]; got.Rows != 1 {
		t.Errorf("expected 1 user row, got %+v", got)
	}
	if len(remote.tables["playback_logs"]) != 7 {
		t.Errorf("expected 7 rows on remote, got %d", len(remote.tables["playback_logs"]))
	}

	// Users must arrive with a JSON boolean, not sqlite's integer flag.
	if active, ok := remote.tables["users"][0]["is_active"].(bool); !ok || !active {
		t.Errorf("expected is_active true bool on remote, got %T", remote.tables["users"][0]["is_active"])
	}
}

func TestSyncRunIsIdempotent(t *testing.T) {
	remote := newFakeRemote(repositories.SyncTables...)
	engine, store := setupEngine(t, remote)
	seedStore(t, store, 5)

	if _, err := engine.Run(context.Background(), SyncOptions{BatchSize: 2}); err != nil {
		t.Fatalf("first sync run failed: %v", err)
	}

	remote.mu.Lock()
	before := make(map[string]int, len(remote.tables))
	for table, rows := range remote.tables {
		before[table] = len(rows)
	}
	remote.mu.Unlock()

	// A rerun against an already-synced pair upserts the same rows onto
	// their conflict keys and must create nothing new.
	if _, err := engine.Run(context.Background(), SyncOptions{BatchSize: 2}); err != nil {
		t.Fatalf("second sync run failed: %v", err)
	}

	remote.mu.Lock()
	for table, rows := range remote.tables {
		if len(rows) != before[table] {
			t.Errorf("rerun changed %s from %d to %d rows", table, before[table], len(rows))
		}
	}
	remote.mu.Unlock()

	results, err := engine.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	for _, result := range results {
		if result.Status != StatusOK {
			t.Errorf("expected %s to verify OK after rerun, got %+v", result.Table, result)
		}
	}
}

func TestSyncRunDryRunWritesNothing(t *testing.T) {
	remote := newFakeRemote(repositories.SyncTables...)
	engine, store := setupEngine(t, remote)
	seedStore(t, store, 4)

	results, err := engine.Run(context.Background(), SyncOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	for _, result := range results {
		if result.Table == "playback_logs" && result.Rows != 4 {
			t.Errorf("dry run should still count rows, got %+v", result)
		}
	}
	if len(remote.tables["playback_logs"]) != 0 {
		t.Errorf("dry run wrote %d rows", len(remote.tables["playback_logs"]))
	}
}

func TestSyncRunSkipsMissingRemoteTables(t *testing.T) {
	remote := newFakeRemote("users", "auth_sessions", "favorite_songs", "playlist_items")
	engine, store := setupEngine(t, remote)
	seedStore(t, store, 2)

	results, err := engine.Run(context.Background(), SyncOptions{})
	if err != nil {
		t.Fatalf("sync run failed: %v", err)
	}
	for _, result := range results {
		if result.Table == "playback_logs" {
			if !result.Skipped {
				t.Errorf("expected playback_logs to be skipped, got %+v", result)
			}
		} else if result.Skipped {
			t.Errorf("unexpected skip of %s", result.Table)
		}
	}
}

func TestSyncRunRejectsUnknownTable(t *testing.T) {
	remote := newFakeRemote(repositories.SyncTables...)
	engine, _ := setupEngine(t, remote)

	_, err := engine.Run(context.Background(), SyncOptions{Tables: []string{"sqlite_master"}})
	if !errors.Is(err, shared.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestVerifyComparesCounts(t *testing.T) {
	remote := newFakeRemote(repositories.SyncTables...)
	engine, store := setupEngine(t, remote)
	seedStore(t, store, 3)

	if _, err := engine.Run(context.Background(), SyncOptions{}); err != nil {
		t.Fatalf("sync run failed: %v", err)
	}

	results, err := engine.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	for _, result := range results {
		if result.Status != StatusOK {
			t.Errorf("expected %s to verify OK, got %+v", result.Table, result)
		}
	}

	// A remote surplus is fine; a deficit is not.
	remote.mu.Lock()
	remote.tables["playback_logs"] = remote.tables["playback_logs"][:1]
	remote.mu.Unlock()

	results, err = engine.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	for _, result := range results {
		if result.Table == "playback_logs" && result.Status != StatusMismatch {
			t.Errorf("expected mismatch, got %+v", result)
		}
	}
}

func TestClaimAssignsAnonymousRows(t *testing.T) {
	remote := newFakeRemote(repositories.SyncTables...)
	engine, store := setupEngine(t, remote)
	user := seedStore(t, store, 1)

	if _, err := store.InsertPlaybackLog(models.PlaybackLogEntry{
		SessionID:     "anon-session",
		SongID:        "song-2",
		SongTitle:     "Song Two",
		AlbumName:     "Album A",
		Event:         models.EventPause,
		PlayedSeconds: 45,
	}); err != nil {
		t.Fatalf("failed to insert anonymous log: %v", err)
	}
	remote.tables["playback_logs"] = []map[string]any{
		{"id": float64(1), "user_id": nil},
		{"id": float64(2), "user_id": float64(user.ID)},
	}

	result, err := engine.Claim(context.Background(), "sync@example.com")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if result.LocalMigrated != 1 || result.LocalRemaining != 0 {
		t.Errorf("unexpected local claim %+v", result)
	}
	if !result.RemoteAttempted || result.RemoteMigrated != 1 {
		t.Errorf("unexpected remote claim %+v", result)
	}
	if remote.tables["playback_logs"][0]["user_id"] == nil {
		t.Error("remote anonymous row was not claimed")
	}

	if _, err := engine.Claim(context.Background(), "nobody@example.com"); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
