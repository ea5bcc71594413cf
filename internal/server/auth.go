package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
)

// sessionCookieName carries the raw session token.
const sessionCookieName = "lizhi_auth_session"

func (s *Server) setSessionCookie(w http.ResponseWriter, raw string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.EqualFold(s.cfg.Server.Env, "production"),
	})
}

func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// sessionUser resolves the request's cookie to a user, or nil.
func (s *Server) sessionUser(r *http.Request) (*models.SessionUser, error) {
	token := sessionTokenFromRequest(r)
	if token == "" {
		return nil, nil
	}
	return s.lib.ResolveSession(r.Context(), token)
}

// requireSession guards the library routes. The resolved user rides along in
// the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.sessionUser(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionUserKey, user)))
	})
}

func currentUser(r *http.Request) *models.SessionUser {
	user, _ := r.Context().Value(sessionUserKey).(*models.SessionUser)
	return user
}

type loginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, raw, err := s.lib.Login(r.Context(), req.Account, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, raw, int(s.lib.SessionTTL().Seconds()))
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionTokenFromRequest(r); token != "" {
		if err := s.lib.Logout(r.Context(), token); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type createUserRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleCreateUser provisions accounts. Allowed for admins, or for anyone
// presenting the setup token so the first admin can be bootstrapped.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	authorized := false
	if user, err := s.sessionUser(r); err != nil {
		s.writeError(w, r, err)
		return
	} else if user != nil && user.IsAdmin() {
		authorized = true
	}
	if !authorized {
		token := r.Header.Get("X-Admin-Setup-Token")
		authorized = token != "" && token == s.cfg.Auth.AdminSetupToken
	}
	if !authorized {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "admin access required"})
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.lib.RegisterUser(r.Context(), req.Account, req.Password, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}
