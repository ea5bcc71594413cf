package library

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ours334/player/internal/repositories"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
	"github.com/ours334/player/internal/tasks"
)

// Library exposes accounts, sessions, favorites and playlists over whichever
// backend the selector made primary.
type Library struct {
	local      *repositories.Store
	remote     *services.Client
	sel        shared.Selector
	mirror     *tasks.Mirror
	logger     *log.Logger
	sessionTTL time.Duration
}

// Options wires a [Library].
type Options struct {
	Local       *repositories.Store
	Remote      *services.Client
	Selector    shared.Selector
	Mirror      *tasks.Mirror
	Logger      *log.Logger
	SessionDays int
}

// New builds the library. The local store is always required; the remote
// client only when the selector enables it.
func New(opts Options) *Library {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	sessionDays := opts.SessionDays
	if sessionDays <= 0 {
		sessionDays = 14
	}

	return &Library{
		local:      opts.Local,
		remote:     opts.Remote,
		sel:        opts.Selector,
		mirror:     opts.Mirror,
		logger:     logger,
		sessionTTL: time.Duration(sessionDays) * 24 * time.Hour,
	}
}

// SessionTTL returns the configured session lifetime.
func (l *Library) SessionTTL() time.Duration {
	return l.sessionTTL
}

func (l *Library) remoteEnabled() bool {
	return l.sel.Enabled && l.remote != nil
}

func (l *Library) remotePrimary() bool {
	return l.remoteEnabled() && l.sel.Primary
}

// enqueueMirror hands a copy job to the mirror when one is configured.
func (l *Library) enqueueMirror(name string, run func(ctx context.Context) error) {
	if l.mirror == nil {
		return
	}
	l.mirror.Enqueue(name, run)
}
