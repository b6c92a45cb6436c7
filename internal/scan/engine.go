// Package scan walks a thread's reply forest, finds trigger phrases and
// replies to matching comments that the bot has not answered yet.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/redditbot/internal/providers"
	"github.com/redditbot/internal/ratelimit"
	"github.com/redditbot/pkg/models"
)

// DefaultRecentReplies bounds the in-process memory of recently answered comments.
const DefaultRecentReplies = 1024

// TriggerSet is an ordered list of case-sensitive phrases.
type TriggerSet []string

// Match returns the first phrase, in configured order, contained in body.
func (t TriggerSet) Match(body string) (string, bool) {
	for _, phrase := range t {
		if phrase == "" {
			continue
		}
		if strings.Contains(body, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// Config holds the read-only parameters of a scan.
type Config struct {
	Identity      string
	Triggers      TriggerSet
	ReplyText     string
	DryRun        bool
	RecentReplies int
}

// Result summarises one ScanAndReply call.
type Result struct {
	Visited         int // concrete comments walked
	SelfAuthored    int
	Truncated       int // "more" stubs encountered
	Matched         int
	Replied         int
	AlreadyAnswered int
	ReplyFailures   int
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Visited += other.Visited
	r.SelfAuthored += other.SelfAuthored
	r.Truncated += other.Truncated
	r.Matched += other.Matched
	r.Replied += other.Replied
	r.AlreadyAnswered += other.AlreadyAnswered
	r.ReplyFailures += other.ReplyFailures
}

// Engine scans reply forests and posts replies through a gated Replier.
type Engine struct {
	cfg     Config
	replier providers.Replier
	gate    ratelimit.Gate
	logger  zerolog.Logger
	recent  *lru.Cache[string, struct{}]
}

// NewEngine creates a scan engine. Every reply waits on gate before posting.
func NewEngine(cfg Config, replier providers.Replier, gate ratelimit.Gate, logger zerolog.Logger) (*Engine, error) {
	if replier == nil {
		return nil, errors.New("scan engine requires a replier")
	}
	if gate == nil {
		return nil, errors.New("scan engine requires a rate limit gate")
	}
	if strings.TrimSpace(cfg.Identity) == "" {
		return nil, errors.New("scan engine requires the bot identity")
	}
	if cfg.ReplyText == "" {
		return nil, errors.New("scan engine requires a reply text")
	}

	size := cfg.RecentReplies
	if size <= 0 {
		size = DefaultRecentReplies
	}
	recent, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create recent replies cache: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		replier: replier,
		gate:    gate,
		logger:  logger,
		recent:  recent,
	}, nil
}

// ScanAndReply walks the forest depth-first, pre-order. Reply failures are
// logged and counted; they never stop the walk.
func (e *Engine) ScanAndReply(ctx context.Context, forest models.ReplyForest) Result {
	var result Result
	e.walk(ctx, forest, &result)
	return result
}

func (e *Engine) walk(ctx context.Context, nodes []*models.ReplyNode, result *Result) {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if node.IsMore() {
			// Nothing loaded below a stub, so there is nothing to scan.
			result.Truncated++
			continue
		}

		result.Visited++
		if e.isSelf(node.Author) {
			result.SelfAuthored++
		} else {
			e.inspect(ctx, node, result)
		}

		e.walk(ctx, node.Children, result)
	}
}

func (e *Engine) inspect(ctx context.Context, node *models.ReplyNode, result *Result) {
	phrase, ok := e.cfg.Triggers.Match(node.Body)
	if !ok {
		return
	}
	result.Matched++

	logger := e.logger.With().
		Str("target_id", node.ID).
		Str("author", node.Author).
		Str("trigger", phrase).
		Logger()

	if e.alreadyAnswered(node) {
		result.AlreadyAnswered++
		logger.Debug().Msg("Trigger matched but comment is already answered")
		return
	}

	if err := e.reply(ctx, node.ID); err != nil {
		result.ReplyFailures++
		logger.Error().Err(err).Msg("Failed to post reply")
		return
	}

	result.Replied++
	logger.Info().Bool("dry_run", e.cfg.DryRun).Msg("Replied to comment")
}

// alreadyAnswered inspects direct children only. A truncated child counts as
// answered because its contents cannot be checked.
func (e *Engine) alreadyAnswered(node *models.ReplyNode) bool {
	if e.recent.Contains(node.ID) {
		return true
	}
	for _, child := range node.Children {
		if child == nil {
			continue
		}
		if child.IsMore() || e.isSelf(child.Author) {
			return true
		}
	}
	return false
}

func (e *Engine) reply(ctx context.Context, targetID string) error {
	if e.cfg.DryRun {
		e.recent.Add(targetID, struct{}{})
		return nil
	}
	if err := e.gate.Wait(ctx, 1); err != nil {
		return fmt.Errorf("rate limit admission: %w", err)
	}
	if err := e.replier.PostReply(ctx, targetID, e.cfg.ReplyText); err != nil {
		return err
	}
	e.recent.Add(targetID, struct{}{})
	return nil
}

// isSelf is deliberately looser than exact equality: Reddit usernames are
// case-insensitive, so "ultimatebottyboi" is still the bot.
func (e *Engine) isSelf(author string) bool {
	return strings.EqualFold(author, e.cfg.Identity)
}
