package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/redditbot/internal/config"
	"github.com/redditbot/internal/logging"
	"github.com/redditbot/internal/monitor"
	"github.com/redditbot/internal/providers"
	"github.com/redditbot/internal/providers/reddit"
	"github.com/redditbot/internal/ratelimit"
	"github.com/redditbot/internal/retry"
	"github.com/redditbot/internal/scan"
)

// bot is the fully wired process: one bucket shared by the provider, the
// scan engine and the monitor.
type bot struct {
	cfg      *config.Config
	log      *logging.Logger
	bucket   *ratelimit.Bucket
	stats    *monitor.Stats
	provider *reddit.Provider
	monitor  *monitor.Monitor
}

// loadBot reads env file and config, then builds every component.
// dryRun forces dry-run on top of the configured value.
func loadBot(c *cli.Context, dryRun bool) (*bot, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.General.DryRun = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	b, err := newBot(cfg, lg)
	if err != nil {
		lg.Close()
		return nil, err
	}
	return b, nil
}

func newBot(cfg *config.Config, lg *logging.Logger) (*bot, error) {
	logger := lg.Logger
	stats := monitor.NewStats()

	bucket, err := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.IntervalSeconds,
		ratelimit.WithObserver(func(seconds int) {
			logger.Info().Int("seconds", seconds).Msgf("Delaying for %d seconds", seconds)
			stats.RecordRateLimitWait(seconds)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	provider := reddit.New(reddit.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		AppName:      cfg.Reddit.AppName,
		Version:      cfg.Reddit.Version,
		BaseURL:      cfg.Reddit.BaseURL,
		AuthURL:      cfg.Reddit.AuthURL,
		ThreadLimit:  cfg.Monitor.ThreadLimit,
		Timeout:      cfg.Reddit.Timeout,
	}, reddit.WithGate(bucket), reddit.WithLogger(logger))

	engine, err := scan.NewEngine(scan.Config{
		Identity:      cfg.BotIdentity(),
		Triggers:      scan.TriggerSet(cfg.Triggers()),
		ReplyText:     cfg.General.ReplyText,
		DryRun:        cfg.General.DryRun,
		RecentReplies: cfg.Monitor.RecentReplies,
	}, provider, bucket, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan engine: %w", err)
	}

	mon := monitor.New(monitor.Config{
		Board:           cfg.General.Board,
		ThreadDelay:     cfg.Monitor.ThreadDelay,
		PollInterval:    cfg.Monitor.PollInterval,
		MaxAuthFailures: cfg.Monitor.MaxAuthFailures,
	}, provider, engine, bucket, logger, monitor.WithStats(stats))

	return &bot{
		cfg:      cfg,
		log:      lg,
		bucket:   bucket,
		stats:    stats,
		provider: provider,
		monitor:  mon,
	}, nil
}

// authenticate retries transient failures; rejected credentials fail at once.
func (b *bot) authenticate(ctx context.Context) error {
	logger := b.logger()
	retryConfig := retry.DefaultRetryConfig()
	retryConfig.RetryIf = func(err error) bool {
		return !providers.IsAuthError(err)
	}

	result := retry.RetryWithBackoff(ctx, retryConfig, func() error {
		return b.provider.Authenticate(ctx)
	}, &logger)
	if !result.Success {
		return fmt.Errorf("authentication failed after %d attempt(s): %w", result.Attempts, result.LastError)
	}
	return nil
}

func (b *bot) logger() zerolog.Logger {
	return b.log.Logger
}

func (b *bot) Close() error {
	return b.log.Close()
}
