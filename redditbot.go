package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/redditbot/cmd"
)

const (
	version = "1.0.0"
)

func main() {
	app := &cli.App{
		Name:    "redditbot",
		Usage:   "Watch a subreddit and reply to comments that mention a trigger phrase",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./redditbot.toml or ~/.redditbot.toml if present)",
			},
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Load environment variables from `FILE` (default: .env if present)",
			},
		},
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ScanCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
