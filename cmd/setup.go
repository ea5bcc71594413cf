package main

import (
	"context"
	"os"

	"github.com/ours334/player/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the example config when missing and opens the database once
// so the schema exists before the first serve.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config := r.loadConfig(cmd)
	store, err := r.openLocal(cmd, config)
	if err != nil {
		return err
	}
	defer store.Close()

	selector := config.Remote.Selector()
	r.logger.Info("setup complete",
		"db", store.Path(),
		"remote_enabled", selector.Enabled,
		"remote_primary", selector.Primary,
	)
	return nil
}
