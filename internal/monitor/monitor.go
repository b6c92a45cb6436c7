// Package monitor drives the board polling loop: list threads, fetch each
// thread's replies, hand them to the scan engine, pace, repeat.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/redditbot/internal/providers"
	"github.com/redditbot/internal/ratelimit"
	"github.com/redditbot/internal/scan"
	"github.com/redditbot/pkg/models"
)

const (
	DefaultThreadDelay     = time.Second
	DefaultPollInterval    = 30 * time.Second
	DefaultMaxAuthFailures = 3
)

// ErrThreadPanic wraps a panic recovered while scanning one thread.
var ErrThreadPanic = errors.New("thread scan panicked")

// Source is the read side of the provider.
type Source interface {
	providers.ThreadLister
	providers.ReplyLister
}

// Scanner scans one reply forest.
type Scanner interface {
	ScanAndReply(ctx context.Context, forest models.ReplyForest) scan.Result
}

// Config controls the polling loop.
type Config struct {
	Board           string
	ThreadDelay     time.Duration // fixed pause between two threads
	PollInterval    time.Duration // minimum time between the starts of two polls
	MaxAuthFailures int           // consecutive failed polls before Run gives up
}

// PollReport describes one pass over the board.
type PollReport struct {
	PollID    string
	StartedAt time.Time
	Threads   int
	Scanned   int
	Failed    int
	Result    scan.Result
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSleeper overrides the pause between threads.
func WithSleeper(sleep ratelimit.Sleeper) Option {
	return func(m *Monitor) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithStats shares a Stats instance, e.g. with the status server.
func WithStats(stats *Stats) Option {
	return func(m *Monitor) {
		if stats != nil {
			m.stats = stats
		}
	}
}

// Monitor polls one board. It is single-threaded: calls are never overlapped.
type Monitor struct {
	cfg     Config
	source  Source
	scanner Scanner
	gate    ratelimit.Gate
	logger  zerolog.Logger

	pacer *rate.Limiter
	sleep ratelimit.Sleeper
	stats *Stats
}

// New creates a Monitor. Every remote read waits on gate first.
func New(cfg Config, source Source, scanner Scanner, gate ratelimit.Gate, logger zerolog.Logger, opts ...Option) *Monitor {
	if cfg.ThreadDelay < 0 {
		cfg.ThreadDelay = 0
	}
	if cfg.MaxAuthFailures <= 0 {
		cfg.MaxAuthFailures = DefaultMaxAuthFailures
	}

	limit := rate.Inf
	if cfg.PollInterval > 0 {
		limit = rate.Every(cfg.PollInterval)
	}

	m := &Monitor{
		cfg:     cfg,
		source:  source,
		scanner: scanner,
		gate:    gate,
		logger:  logger.With().Str("board", cfg.Board).Logger(),
		pacer:   rate.NewLimiter(limit, 1),
		sleep:   ratelimit.SleepContext,
		stats:   NewStats(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns the monitor's counters.
func (m *Monitor) Stats() *Stats {
	return m.stats
}

// Run polls forever until ctx is cancelled. It returns an error only after
// MaxAuthFailures consecutive polls failed authentication.
func (m *Monitor) Run(ctx context.Context) error {
	authFailures := 0
	for {
		if err := m.pacer.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("poll pacing: %w", err)
		}

		_, err := m.Poll(ctx)
		switch {
		case err == nil:
			authFailures = 0
		case ctx.Err() != nil:
			return nil
		case providers.IsAuthError(err):
			authFailures++
			m.logger.Error().Err(err).
				Int("consecutive_failures", authFailures).
				Int("max_failures", m.cfg.MaxAuthFailures).
				Msg("Authentication failed during poll")
			if authFailures >= m.cfg.MaxAuthFailures {
				return fmt.Errorf("giving up after %d consecutive authentication failures: %w", authFailures, err)
			}
		default:
			authFailures = 0
			m.logger.Warn().Err(err).
				Bool("transient", providers.IsUnavailable(err)).
				Msg("Poll failed, will retry on next poll")
		}
	}
}

// Poll makes one pass over the board. A failed thread is logged and skipped;
// only a failed listing or an authentication failure ends the pass early.
func (m *Monitor) Poll(ctx context.Context) (report PollReport, err error) {
	report = PollReport{
		PollID:    uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := m.logger.With().Str("poll_id", report.PollID).Logger()
	defer func() {
		m.stats.recordPoll(report, err)
	}()

	if err = m.gate.Wait(ctx, 1); err != nil {
		return report, fmt.Errorf("rate limit admission: %w", err)
	}
	threads, err := m.source.ListThreads(ctx, m.cfg.Board)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list threads")
		return report, fmt.Errorf("list threads: %w", err)
	}
	report.Threads = len(threads)
	logger.Info().Int("threads", len(threads)).Msg("Starting poll")

	for i, thread := range threads {
		if i > 0 && m.cfg.ThreadDelay > 0 {
			if err = m.sleep(ctx, m.cfg.ThreadDelay); err != nil {
				return report, err
			}
		}
		if err = ctx.Err(); err != nil {
			return report, err
		}

		threadLogger := logger.With().Str("thread_id", thread.ID).Logger()
		result, threadErr := m.scanThread(ctx, thread.ID)
		report.Result.Add(result)
		if threadErr != nil {
			report.Failed++
			threadLogger.Error().Err(threadErr).
				Bool("transient", providers.IsUnavailable(threadErr)).
				Msg("Thread scan failed, skipping")
			if providers.IsAuthError(threadErr) {
				err = threadErr
				return report, err
			}
			continue
		}

		report.Scanned++
		threadLogger.Debug().
			Int("visited", result.Visited).
			Int("matched", result.Matched).
			Int("replied", result.Replied).
			Msg("Thread scanned")
	}

	logger.Info().
		Int("scanned", report.Scanned).
		Int("failed", report.Failed).
		Int("replied", report.Result.Replied).
		Dur("took", time.Since(report.StartedAt)).
		Msg("Poll finished")
	return report, nil
}

// ScanThread fetches and scans a single thread outside the polling loop.
func (m *Monitor) ScanThread(ctx context.Context, threadID string) (scan.Result, error) {
	result, err := m.scanThread(ctx, threadID)
	if err != nil {
		m.logger.Error().Err(err).Str("thread_id", threadID).Msg("Thread scan failed")
	}
	return result, err
}

// scanThread isolates one thread: errors and panics stop here.
func (m *Monitor) scanThread(ctx context.Context, threadID string) (result scan.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("thread %s: %w: %v", threadID, ErrThreadPanic, r)
		}
	}()

	if err := m.gate.Wait(ctx, 1); err != nil {
		return result, fmt.Errorf("rate limit admission: %w", err)
	}
	forest, err := m.source.ListReplies(ctx, m.cfg.Board, threadID)
	if err != nil {
		return result, fmt.Errorf("thread %s: %w", threadID, err)
	}
	return m.scanner.ScanAndReply(ctx, forest), nil
}
