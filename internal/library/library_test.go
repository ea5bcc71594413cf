package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/repositories"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
	"github.com/ours334/player/internal/tasks"
)

func setupLocalLibrary(t *testing.T) *Library {
	t.Helper()

	path := filepath.Join(t.TempDir(), "playback_logs.sqlite")
	store, err := repositories.OpenPath(path, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mirror := tasks.NewMirror(8, shared.NewLogger(nil))
	t.Cleanup(mirror.Close)

	return New(Options{Local: store, Mirror: mirror, Logger: shared.NewLogger(nil)})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if !strings.HasPrefix(hash, "scrypt$") {
		t.Errorf("unexpected hash format %q", hash)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 3 {
		t.Errorf("expected 3 hash segments, got %d", len(parts))
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("correct password failed to verify")
	}
	if VerifyPassword("wrong password", hash) {
		t.Error("wrong password verified")
	}
	if VerifyPassword("anything", "bcrypt$aa$bb") {
		t.Error("foreign hash format verified")
	}
	if VerifyPassword("anything", "") {
		t.Error("empty hash verified")
	}

	second, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if second == hash {
		t.Error("two hashes of the same password should differ by salt")
	}
}

func TestSessionTokens(t *testing.T) {
	raw, hash, err := NewSessionToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if raw == "" || strings.ContainsAny(raw, "+/=") {
		t.Errorf("expected url-safe raw token, got %q", raw)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(hash))
	}
	if HashSessionToken(raw) != hash {
		t.Error("token hash is not deterministic")
	}
}

func TestAuthFlow(t *testing.T) {
	lib := setupLocalLibrary(t)
	ctx := context.Background()

	user, err := lib.RegisterUser(ctx, "Listener@Example.com", "open sesame", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if user.Account != "listener@example.com" {
		t.Errorf("expected normalized account, got %q", user.Account)
	}

	t.Run("LoginIssuesToken", func(t *testing.T) {
		loggedIn, raw, err := lib.Login(ctx, "listener@example.com", "open sesame")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if loggedIn.ID != user.ID || raw == "" {
			t.Fatalf("unexpected login result %+v %q", loggedIn, raw)
		}

		resolved, err := lib.ResolveSession(ctx, raw)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if resolved == nil || resolved.ID != user.ID {
			t.Fatalf("expected session for user %d, got %+v", user.ID, resolved)
		}

		if err := lib.Logout(ctx, raw); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		resolved, err = lib.ResolveSession(ctx, raw)
		if err != nil {
			t.Fatalf("resolve after logout failed: %v", err)
		}
		if resolved != nil {
			t.Error("session survived logout")
		}
	})

	t.Run("WrongPasswordAndMissingAccountLookAlike", func(t *testing.T) {
		_, _, badPassword := lib.Login(ctx, "listener@example.com", "nope")
		_, _, badAccount := lib.Login(ctx, "nobody@example.com", "nope")
		if badPassword == nil || badAccount == nil {
			t.Fatal("expected both logins to fail")
		}
		if badPassword.Error() != badAccount.Error() {
			t.Errorf("failure modes are distinguishable: %q vs %q", badPassword, badAccount)
		}
	})

	t.Run("BlankTokenResolvesToNil", func(t *testing.T) {
		resolved, err := lib.ResolveSession(ctx, "")
		if err != nil || resolved != nil {
			t.Fatalf("expected nil, nil, got %+v, %v", resolved, err)
		}
	})
}

// TestMirrorOutageInvisible exercises the local-primary path with a remote
// that always fails: callers must never notice.
func TestMirrorOutageInvisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playback_logs.sqlite")
	store, err := repositories.OpenPath(path, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"service unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := services.NewClient(shared.RemoteConfig{URL: server.URL, ServiceKey: "key"}, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	mirror := tasks.NewMirror(8, shared.NewLogger(nil))
	lib := New(Options{
		Local:    store,
		Remote:   client,
		Selector: shared.Selector{Enabled: true, Primary: false},
		Mirror:   mirror,
		Logger:   shared.NewLogger(nil),
	})

	user, err := lib.RegisterUser(context.Background(), "offline@example.com", "password123", models.RoleUser)
	if err != nil {
		t.Fatalf("register failed despite healthy primary: %v", err)
	}
	if err := lib.AddFavorite(context.Background(), user.ID, "song-1", "Song One", "Album A"); err != nil {
		t.Fatalf("favorite failed despite healthy primary: %v", err)
	}
	mirror.Close()

	favorites, err := lib.ListFavorites(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(favorites) != 1 {
		t.Fatalf("expected the favorite to land locally, got %d", len(favorites))
	}
}

func TestPlaylistRoundTrip(t *testing.T) {
	lib := setupLocalLibrary(t)
	ctx := context.Background()

	user, err := lib.RegisterUser(ctx, "queue@example.com", "password123", models.RoleUser)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for _, songID := range []string{"song-1", "song-2", "song-3"} {
		added, err := lib.AddPlaylistItem(ctx, user.ID, "", songID, "Title "+songID, "Album A")
		if err != nil || !added {
			t.Fatalf("failed to add %s: added=%v err=%v", songID, added, err)
		}
	}

	applied, err := lib.ReorderPlaylist(ctx, user.ID, "", []string{"song-2", "song-3", "song-1"})
	if err != nil || !applied {
		t.Fatalf("reorder failed: applied=%v err=%v", applied, err)
	}

	items, err := lib.ListPlaylist(ctx, user.ID, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 3 || items[0].SongID != "song-2" || items[0].PlaylistID != models.DefaultPlaylistID {
		t.Fatalf("unexpected playlist %+v", items)
	}
}

func TestLogPlaybackAcceptsAnonymous(t *testing.T) {
	lib := setupLocalLibrary(t)

	stored, err := lib.LogPlayback(context.Background(), models.PlaybackLogEntry{
		SessionID:     "anon-1",
		SongID:        "song-1",
		SongTitle:     "Song One",
		AlbumName:     "Album A",
		Event:         models.EventEnded,
		PlayedSeconds: 200,
	})
	if err != nil {
		t.Fatalf("anonymous log failed: %v", err)
	}
	if stored.ID == 0 || stored.UserID != nil {
		t.Fatalf("unexpected stored entry %+v", stored)
	}

	stats, err := lib.Stats(context.Background(), models.StatsScope{IncludeAnonymous: true})
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Summary.Sessions != 1 || stats.Summary.PlayCount != 1 {
		t.Fatalf("unexpected stats %+v", stats.Summary)
	}
}

func TestBuildStats(t *testing.T) {
	now := time.Now()
	duration := 180.0
	entries := []models.PlaybackLogEntry{
		{SongID: "song-1", SongTitle: "One", AlbumName: "Album A", Event: models.EventPlay, PlayedSeconds: 0, CreatedAt: models.FormatTime(now)},
		{SongID: "song-1", SongTitle: "One", AlbumName: "Album A", Event: models.EventPause, PlayedSeconds: 42, DurationSeconds: &duration, CreatedAt: models.FormatTime(now.Add(time.Minute))},
		{SongID: "song-2", SongTitle: "Two", AlbumName: "Album A", Event: models.EventPageHide, PlayedSeconds: 10, CreatedAt: models.FormatTime(now.Add(2 * time.Minute))},
		{SongID: "song-3", SongTitle: "Three", AlbumName: "Album B", Event: models.EventEnded, PlayedSeconds: 90, CreatedAt: models.FormatTime(now.Add(3 * time.Minute))},
	}

	stats := buildStats(entries)

	if stats.Summary.Sessions != 3 {
		t.Errorf("play events must not count as sessions, got %d", stats.Summary.Sessions)
	}
	if stats.Summary.PlayCount != 2 {
		t.Errorf("expected 2 qualified plays, got %d", stats.Summary.PlayCount)
	}
	if stats.Summary.TotalPlayedSeconds != 142 {
		t.Errorf("expected 142 seconds, got %v", stats.Summary.TotalPlayedSeconds)
	}
	if stats.Summary.SongCount != 3 || stats.Summary.AlbumCount != 2 {
		t.Errorf("unexpected distinct counts %+v", stats.Summary)
	}

	if len(stats.Songs) != 3 || stats.Songs[0].SongID != "song-3" || stats.Songs[1].SongID != "song-1" {
		t.Fatalf("unexpected song order %+v", stats.Songs)
	}
	if stats.Songs[2].PlayCount != 0 || stats.Songs[2].Sessions != 1 {
		t.Errorf("10s span should count a session but no play, got %+v", stats.Songs[2])
	}

	if len(stats.Albums) != 2 || stats.Albums[0].AlbumName != "Album B" {
		t.Fatalf("unexpected album order %+v", stats.Albums)
	}
	if stats.Albums[1].SongCount != 2 {
		t.Errorf("expected 2 songs in Album A, got %d", stats.Albums[1].SongCount)
	}
}

// remotePlaylistFixture serves a fixed playlist for the remote-primary path.
func remotePlaylistFixture(t *testing.T, rows []map[string]any) *Library {
	t.Helper()

	var patched []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(rows)
		case http.MethodPatch:
			patched = append(patched, r.URL.RawQuery)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(server.Close)

	client, err := services.NewClient(shared.RemoteConfig{URL: server.URL, ServiceKey: "key"}, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	path := filepath.Join(t.TempDir(), "playback_logs.sqlite")
	store, err := repositories.OpenPath(path, shared.NewLogger(nil))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(Options{
		Local:    store,
		Remote:   client,
		Selector: shared.Selector{Enabled: true, Primary: true},
		Logger:   shared.NewLogger(nil),
	})
}

func TestRemotePrimaryPlaylistValidation(t *testing.T) {
	rows := []map[string]any{
		{"id": float64(1), "user_id": float64(7), "playlist_id": "later", "song_id": "song-1", "song_title": "One", "album_name": "A", "position": float64(0)},
		{"id": float64(2), "user_id": float64(7), "playlist_id": "later", "song_id": "song-2", "song_title": "Two", "album_name": "A", "position": float64(1)},
	}
	lib := remotePlaylistFixture(t, rows)
	ctx := context.Background()

	t.Run("MismatchedSetRejected", func(t *testing.T) {
		applied, err := lib.ReorderPlaylist(ctx, 7, "later", []string{"song-2", "song-9"})
		if err != nil {
			t.Fatalf("reorder errored: %v", err)
		}
		if applied {
			t.Error("expected mismatched reorder to be rejected")
		}
	})

	t.Run("DuplicateAddRejected", func(t *testing.T) {
		added, err := lib.AddPlaylistItem(ctx, 7, "later", "song-1", "One", "A")
		if err != nil {
			t.Fatalf("add errored: %v", err)
		}
		if added {
			t.Error("expected duplicate add to report false")
		}
	})

	t.Run("ValidReorderApplies", func(t *testing.T) {
		applied, err := lib.ReorderPlaylist(ctx, 7, "later", []string{"song-2", "song-1"})
		if err != nil {
			t.Fatalf("reorder errored: %v", err)
		}
		if !applied {
			t.Error("expected reorder to apply")
		}
	})
}
