package server

import (
	"net/http"

	"github.com/ours334/player/internal/models"
)

type playbackLogRequest struct {
	SessionID       string   `json:"sessionId"`
	SongID          string   `json:"songId"`
	SongTitle       string   `json:"songTitle"`
	AlbumName       string   `json:"albumName"`
	Event           string   `json:"event"`
	PositionSeconds float64  `json:"positionSeconds"`
	PlayedSeconds   float64  `json:"playedSeconds"`
	DurationSeconds *float64 `json:"durationSeconds"`
	Pathname        string   `json:"pathname"`
}

// handlePlaybackLog accepts telemetry from both signed-in and anonymous
// listeners. The response is always 204; clients fire and forget.
func (s *Server) handlePlaybackLog(w http.ResponseWriter, r *http.Request) {
	var req playbackLogRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	entry := models.PlaybackLogEntry{
		SessionID:       req.SessionID,
		SongID:          req.SongID,
		SongTitle:       req.SongTitle,
		AlbumName:       req.AlbumName,
		Event:           req.Event,
		PositionSeconds: req.PositionSeconds,
		PlayedSeconds:   req.PlayedSeconds,
		DurationSeconds: req.DurationSeconds,
		Pathname:        req.Pathname,
		UserAgent:       r.UserAgent(),
	}

	user, err := s.sessionUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user != nil {
		entry.UserID = &user.ID
	}

	if _, err := s.lib.LogPlayback(r.Context(), entry); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePlaybackStats serves the rollups. scope=me|users|all; only admins
// may widen the scope past their own rows.
func (s *Server) handlePlaybackStats(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}

	scopeParam := r.URL.Query().Get("scope")
	if scopeParam == "" {
		scopeParam = "me"
	}
	if !user.IsAdmin() {
		scopeParam = "me"
	}

	var scope models.StatsScope
	switch scopeParam {
	case "me":
		scope.UserID = &user.ID
	case "users":
	case "all":
		scope.IncludeAnonymous = true
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "scope must be me, users or all"})
		return
	}

	stats, err := s.lib.Stats(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
