package providers

import (
	"context"

	"github.com/redditbot/pkg/models"
)

// ThreadLister lists the threads currently visible on a board.
type ThreadLister interface {
	ListThreads(ctx context.Context, board string) ([]models.Thread, error)
}

// ReplyLister fetches the reply forest of one thread.
type ReplyLister interface {
	ListReplies(ctx context.Context, board, threadID string) (models.ReplyForest, error)
}

// Replier posts a reply under an existing comment.
type Replier interface {
	PostReply(ctx context.Context, targetID, text string) error
}

// Provider is a discussion service the bot monitors (Reddit).
type Provider interface {
	ThreadLister
	ReplyLister
	Replier
	Name() string
}
