package main

import (
	"context"

	"github.com/ours334/player/internal/library"
	"github.com/ours334/player/internal/models"
	"github.com/urfave/cli/v3"
)

// UserCreate creates or updates an account directly against the local store,
// hashing the password the same way the HTTP layer does. When the remote
// store is enabled the account is upserted there too, so both backends
// accept the same credentials.
func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	store, err := r.openLocal(cmd, config)
	if err != nil {
		return err
	}
	defer store.Close()

	role := models.RoleUser
	if cmd.Bool("admin") {
		role = models.RoleAdmin
	}

	passwordHash, err := library.HashPassword(cmd.String("password"))
	if err != nil {
		return err
	}

	user, err := store.UpsertUserByAccount(cmd.String("account"), passwordHash, role)
	if err != nil {
		return err
	}
	r.logger.Info("account ready", "id", user.ID, "account", user.Account, "role", user.Role)

	remote, err := r.openRemote(config)
	if err != nil || remote == nil {
		return err
	}
	if err := remote.Upsert(ctx, "users", []map[string]any{{
		"id":            user.ID,
		"email":         user.Account,
		"password_hash": passwordHash,
		"role":          user.Role,
		"is_active":     true,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}}, "id"); err != nil {
		r.logger.Warn("failed to mirror account to remote", "error", err)
	}
	return nil
}
