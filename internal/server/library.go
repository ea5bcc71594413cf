package server

import (
	"net/http"

	"github.com/ours334/player/internal/shared"
)

type songPayload struct {
	SongID    string `json:"songId"`
	SongTitle string `json:"songTitle"`
	AlbumName string `json:"albumName"`
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	favorites, err := s.lib.ListFavorites(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req songPayload
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.lib.AddFavorite(r.Context(), user.ID, req.SongID, req.SongTitle, req.AlbumName); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := s.lib.RemoveFavorite(r.Context(), user.ID, r.URL.Query().Get("songId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPlaylist(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	items, err := s.lib.ListPlaylist(r.Context(), user.ID, r.URL.Query().Get("playlistId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type playlistItemRequest struct {
	PlaylistID string `json:"playlistId"`
	songPayload
}

func (s *Server) handleAddPlaylistItem(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req playlistItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	added, err := s.lib.AddPlaylistItem(r.Context(), user.ID, req.PlaylistID, req.SongID, req.SongTitle, req.AlbumName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

func (s *Server) handleRemovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	query := r.URL.Query()
	if err := s.lib.RemovePlaylistItem(r.Context(), user.ID, query.Get("playlistId"), query.Get("songId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	PlaylistID string   `json:"playlistId"`
	SongIDs    []string `json:"songIds"`
}

func (s *Server) handleReorderPlaylist(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	applied, err := s.lib.ReorderPlaylist(r.Context(), user.ID, req.PlaylistID, req.SongIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !applied {
		// The client's view of the playlist is stale; nothing was changed.
		writeJSON(w, http.StatusConflict, errorBody{Error: shared.ErrInvalidReorder.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true})
}
