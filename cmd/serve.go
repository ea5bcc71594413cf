package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ours334/player/internal/library"
	"github.com/ours334/player/internal/server"
	"github.com/ours334/player/internal/shared"
	"github.com/ours334/player/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve wires the stores, the mirror worker and the HTTP server, then blocks
// until the process is signalled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}

	store, err := r.openLocal(cmd, config)
	if err != nil {
		return err
	}
	defer store.Close()

	remote, err := r.openRemote(config)
	if err != nil {
		return err
	}
	selector := config.Remote.Selector()
	if selector.Enabled {
		r.logger.Info("remote store enabled", "url", remote.BaseURL(), "primary", selector.Primary)
	} else {
		r.logger.Info("remote store disabled, running local-only")
	}

	mirror := tasks.NewMirror(tasks.DefaultMirrorQueueSize, r.logger)
	defer mirror.Close()

	lib := library.New(library.Options{
		Local:       store,
		Remote:      remote,
		Selector:    selector,
		Mirror:      mirror,
		Logger:      r.logger,
		SessionDays: config.Auth.SessionDays,
	})

	srv := server.New(config, lib, shared.WithLogger(r.logger, "component", "server"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-signalCtx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
