package main

import (
	"context"

	"github.com/ours334/player/internal/formatter"
	"github.com/ours334/player/internal/tasks"
	"github.com/urfave/cli/v3"
)

func (r *Runner) newEngine(cmd *cli.Command) (*tasks.SyncEngine, func(), error) {
	config := r.loadConfig(cmd)
	store, err := r.openLocal(cmd, config)
	if err != nil {
		return nil, nil, err
	}

	client, err := r.requireRemote(config)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	engine, err := tasks.NewSyncEngine(store, client, r.logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return engine, func() { store.Close() }, nil
}

// SyncRun pushes local rows to the remote store.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	engine, cleanup, err := r.newEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := tasks.SyncOptions{
		BatchSize:     int(cmd.Int("batch-size")),
		DryRun:        cmd.Bool("dry-run"),
		FromCreatedAt: cmd.String("from-created-at"),
		Tables:        cmd.StringSlice("table"),
	}
	results, err := engine.Run(ctx, opts)
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.RenderSyncResults(results, opts.DryRun))
}

// SyncVerify compares per-table row counts between the stores.
func (r *Runner) SyncVerify(ctx context.Context, cmd *cli.Command) error {
	engine, cleanup, err := r.newEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := engine.Verify(ctx, cmd.String("from-created-at"))
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.RenderVerifyResults(results))
}

// SyncClaim assigns anonymous playback rows to an account on both stores.
func (r *Runner) SyncClaim(ctx context.Context, cmd *cli.Command) error {
	engine, cleanup, err := r.newEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.Claim(ctx, cmd.String("account"))
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.RenderClaimResult(result))
}
