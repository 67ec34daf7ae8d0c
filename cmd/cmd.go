// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes the config file and prepares the token database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the token database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles the cached token pair
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the cached backend tokens",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Acquire tokens (from cache when fresh) and print their status",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Discard cached tokens and fetch a new pair",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show cached token age and expiry, and check the backend",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Clear the cached tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

// entryCommand handles license entry submission
func entryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "entry",
		Aliases: []string{"e"},
		Usage:   "Create license entries",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Submit one entry and follow its progress",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Username of the provider",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "birth-date",
						Aliases:  []string{"b"},
						Usage:    "Birth date (MM/DD/YYYY or YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Email address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "phone",
						Usage:    "10 digit phone number",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "lenient",
						Usage: "Skip malformed progress frames instead of failing",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print each progress event as JSON",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Follow progress in the interactive TUI",
					},
				},
				Action: r.EntryCreate,
			},
			batchCommand(r),
		},
	}
}
