package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/ours334/player/internal/repositories"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds the dependencies for CLI commands and provides a method per
// command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, syncCommand, userCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// loadConfig reads the config file named by --config, falling back to the
// embedded defaults when it does not exist. Environment overrides apply
// either way.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		if config, err := shared.LoadConfig(path); err == nil {
			return config
		} else {
			r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		}
	}
	return shared.DefaultConfig()
}

// openLocal opens the sqlite store, honoring a --db override.
func (r *Runner) openLocal(cmd *cli.Command, config *shared.Config) (*repositories.Store, error) {
	dbConfig := config.Database
	if override := cmd.String("db"); override != "" {
		dbConfig.Path = override
	}
	store, err := repositories.Open(dbConfig, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Info("sqlite store ready", "path", store.Path())
	return store, nil
}

// openRemote builds the REST client, or returns nil when the selector has
// the remote disabled.
func (r *Runner) openRemote(config *shared.Config) (*services.Client, error) {
	if !config.Remote.Selector().Enabled {
		return nil, nil
	}
	return services.NewClient(config.Remote, r.logger)
}

// requireRemote is openRemote for commands that cannot run without it.
func (r *Runner) requireRemote(config *shared.Config) (*services.Client, error) {
	client, err := r.openRemote(config)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: set remote url and service key (or REMOTE_STORE_URL / REMOTE_STORE_SERVICE_KEY)", shared.ErrMissingCredentials)
	}
	return client, nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
