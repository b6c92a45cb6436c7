package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/redditbot/internal/api"
)

// RunCommand returns the run command
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Monitor the board and reply to trigger phrases until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Scan and log matches without posting replies",
			},
			&cli.StringFlag{
				Name:  "status-listen",
				Usage: "Serve health and status on `ADDR` (overrides status.listen)",
			},
		},
		Action: runBot,
	}
}

func runBot(c *cli.Context) error {
	b, err := loadBot(c, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer b.Close()

	logger := b.logger()
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listen := b.cfg.Status.Listen
	if override := c.String("status-listen"); override != "" {
		listen = override
	}
	if listen != "" {
		server := api.NewServer(listen, b.cfg.General.Board, b.stats, b.bucket, b.provider, logger)
		server.Start()
		defer func() {
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("Status server shutdown failed")
			}
		}()
	}

	if err := b.authenticate(ctx); err != nil {
		return err
	}

	logger.Info().
		Str("board", b.cfg.General.Board).
		Str("identity", b.cfg.BotIdentity()).
		Strs("triggers", b.cfg.Triggers()).
		Bool("dry_run", b.cfg.General.DryRun).
		Msg("Monitoring started")

	if err := b.monitor.Run(ctx); err != nil {
		return err
	}

	logger.Info().Msg("Monitoring stopped")
	return nil
}
