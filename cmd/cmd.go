// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func topFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    "range",
			Aliases: []string{"r"},
			Usage:   "Time range: short (4 weeks), medium (6 months) or long (1 year)",
			Value:   "short_term",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Number of items (1-50)",
			Value:   20,
		},
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Store the listing as a snapshot",
		},
		&cli.BoolFlag{
			Name:  "compare",
			Usage: "Show rank changes since the latest snapshot",
		},
	}, jsonFlags()...)
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "client-id",
						Usage: "Spotify app client ID",
					},
					&cli.StringFlag{
						Name:  "redirect-uri",
						Usage: "Redirect URI registered for the app",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize spotistats in the browser",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: 0,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the stored refresh token for a new access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "status",
				Usage:  "Show the current session state",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget all tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show your Spotify profile",
		Flags:  jsonFlags(),
		Action: r.Me,
	}
}

// topCommand lists top artists and tracks.
func topCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Your most listened artists and tracks",
		Commands: []*cli.Command{
			{
				Name:   "artists",
				Usage:  "Top artists",
				Flags:  topFlags(),
				Action: r.TopArtists,
			},
			{
				Name:   "tracks",
				Usage:  "Top tracks",
				Flags:  topFlags(),
				Action: r.TopTracks,
			},
		},
	}
}

func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List available playback devices",
		Flags:  jsonFlags(),
		Action: r.Devices,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play an artist or track on the first available device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "artist or track",
				Value:   "track",
			},
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Spotify ID of the artist or track",
				Required: true,
			},
		},
		Action: r.Play,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List your playlists",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to show (0 for all)",
			},
		}, jsonFlags()...),
		Action: r.Playlists,
	}
}

// playlistCommand handles single-playlist and bulk export operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Playlist details and exports",
		Commands: []*cli.Command{
			{
				Name:  "tracks",
				Usage: "Show the tracks of a playlist",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "search",
						Aliases: []string{"q"},
						Usage:   "Filter by track or artist name",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Print the tracks as csv, md, txt or json",
					},
				}, jsonFlags()...),
				Action: r.PlaylistTracks,
			},
			{
				Name:  "export",
				Usage: "Export playlists to files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Playlist IDs to export (default: all playlists)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, txt or json",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: spotify_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent file writers",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Track-listing requests per second",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "covers",
						Usage: "Download playlist covers for Markdown exports",
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// snapshotCommand stores and lists top-item snapshots.
func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Track how your top lists change over time",
		Commands: []*cli.Command{
			{
				Name:  "all",
				Usage: "Snapshot top artists and tracks for every time range",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Items per listing (1-50)",
						Value: 50,
					},
				},
				Action: r.SnapshotAll,
			},
			{
				Name:  "list",
				Usage: "List stored snapshots",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Filter by artist or track",
					},
					&cli.StringFlag{
						Name:  "range",
						Usage: "Filter by time range",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of snapshots",
						Value: 20,
					},
				}, jsonFlags()...),
				Action: r.SnapshotList,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the local JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: [server] host and port from config)",
			},
		},
		Action: r.Serve,
	}
}
