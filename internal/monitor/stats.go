package monitor

import (
	"sync"
	"time"

	"github.com/redditbot/internal/scan"
)

// Stats accumulates counters across polls. It is read concurrently by the
// status server.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Polls            int       `json:"polls"`
	PollFailures     int       `json:"poll_failures"`
	ThreadsScanned   int       `json:"threads_scanned"`
	ThreadFailures   int       `json:"thread_failures"`
	CommentsVisited  int       `json:"comments_visited"`
	Matches          int       `json:"matches"`
	Replies          int       `json:"replies"`
	AlreadyAnswered  int       `json:"already_answered"`
	ReplyFailures    int       `json:"reply_failures"`
	RateLimitWaits   int       `json:"rate_limit_waits"`
	RateLimitSeconds int       `json:"rate_limit_seconds"`
	LastPollID       string    `json:"last_poll_id,omitempty"`
	LastPollAt       time.Time `json:"last_poll_at,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// RecordRateLimitWait counts a denied admission that had to sleep.
func (s *Stats) RecordRateLimitWait(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.RateLimitWaits++
	s.snap.RateLimitSeconds += seconds
}

func (s *Stats) recordPoll(report PollReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Polls++
	s.snap.LastPollID = report.PollID
	s.snap.LastPollAt = report.StartedAt
	s.snap.ThreadsScanned += report.Scanned
	s.snap.ThreadFailures += report.Failed
	s.addResultLocked(report.Result)
	if err != nil {
		s.snap.PollFailures++
		s.snap.LastError = err.Error()
	}
}

func (s *Stats) addResultLocked(r scan.Result) {
	s.snap.CommentsVisited += r.Visited
	s.snap.Matches += r.Matched
	s.snap.Replies += r.Replied
	s.snap.AlreadyAnswered += r.AlreadyAnswered
	s.snap.ReplyFailures += r.ReplyFailures
}
