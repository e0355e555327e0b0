// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and create a config file",
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

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the analysis HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides config",
			},
		},
		Action: r.Serve,
	}
}

func analyzeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"an"},
		Usage:     "Analyze a Commons category for depicts coverage",
		ArgsUsage: "<category>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the final summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-wait",
				Usage: "Submit the job and exit without waiting",
			},
		},
		Action: r.Analyze,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"ls"},
		Usage:   "List analyzed categories",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

func resultsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "results",
		Usage:     "Show stored results for a category",
		ArgsUsage: "<category>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "missing",
				Usage: "Only show files without depicts statements",
			},
		},
		Action: r.Results,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete stored results for a category",
		ArgsUsage: "<category>",
		Action:    r.Delete,
	}
}

func suggestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Suggestion helpers backed by Commons and Wikidata",
		Commands: []*cli.Command{
			{
				Name:      "category",
				Usage:     "Suggest category names by prefix",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum suggestions to return",
						Value: 10,
					},
				},
				Action: r.SuggestCategories,
			},
			{
				Name:      "depicts",
				Usage:     "Suggest depicts items for a file name",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum suggestions to return",
						Value: 10,
					},
				},
				Action: r.SuggestDepicts,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse history and run analyses interactively",
		Action: r.TUI,
	}
}
