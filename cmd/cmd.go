// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "db",
		Usage: "Override the sqlite database path",
	}
}

// setupCommand writes the example config and initializes the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the local database",
		Flags:  []cli.Flag{configFlag(), dbFlag()},
		Action: r.Setup,
	}
}

// serveCommand runs the HTTP server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the player API server",
		Flags: []cli.Flag{
			configFlag(),
			dbFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override the listen host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the listen port",
			},
		},
		Action: r.Serve,
	}
}

// syncCommand groups the local-to-remote migration tools.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy and verify library data against the remote store",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Push local rows to the remote store",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Rows per upsert batch",
						Value: 500,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Count rows without writing to the remote",
					},
					&cli.StringFlag{
						Name:  "from-created-at",
						Usage: "Only sync rows created at or after this ISO timestamp",
					},
					&cli.StringSliceFlag{
						Name:  "table",
						Usage: "Restrict the run to specific tables",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "verify",
				Usage: "Compare per-table row counts between the stores",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.StringFlag{
						Name:  "from-created-at",
						Usage: "Only count rows created at or after this ISO timestamp",
					},
				},
				Action: r.SyncVerify,
			},
			{
				Name:  "claim",
				Usage: "Assign anonymous playback rows to an account",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Account that takes over the anonymous rows",
						Required: true,
					},
				},
				Action: r.SyncClaim,
			},
		},
	}
}

// userCommand manages accounts from the CLI.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create or update an account",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Account identifier (email)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "Password for the account",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Grant the admin role",
					},
				},
				Action: r.UserCreate,
			},
		},
	}
}
