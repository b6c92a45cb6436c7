// Package reddit implements the provider against Reddit's OAuth API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/redditbot/internal/providers"
	"github.com/redditbot/internal/ratelimit"
	"github.com/redditbot/pkg/models"
)

const (
	DefaultBaseURL     = "https://oauth.reddit.com"
	DefaultAuthURL     = "https://www.reddit.com/api/v1/access_token"
	DefaultThreadLimit = 25
	defaultTimeout     = 10 * time.Second
	maxErrorBody       = 512
)

// Config holds the account and endpoint settings for the Reddit provider.
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	AppName      string
	Version      string
	BaseURL      string
	AuthURL      string
	ThreadLimit  int
	Timeout      time.Duration
}

// UserAgent follows Reddit's "<app> /v<version> by <username>" convention.
func (c Config) UserAgent() string {
	return fmt.Sprintf("%s /v%s by %s", c.AppName, c.Version, c.Username)
}

// Provider talks to Reddit. It is safe for sequential use by the monitor;
// token state is guarded for the status server's concurrent reads.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	gate       ratelimit.Gate
	logger     zerolog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

var _ providers.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client. Its transport is wrapped so every
// request still carries the configured User-Agent.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithGate admits token exchanges through the shared bucket.
func WithGate(gate ratelimit.Gate) Option {
	return func(p *Provider) {
		p.gate = gate
	}
}

// WithLogger sets the provider's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a Reddit provider. Authentication happens lazily on the first
// call, or explicitly through Authenticate.
func New(cfg Config, opts ...Option) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.ThreadLimit <= 0 {
		cfg.ThreadLimit = DefaultThreadLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	p := &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	base := p.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := p.httpClient.Timeout
	if timeout <= 0 {
		timeout = cfg.Timeout
	}
	p.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: base, userAgent: cfg.UserAgent()},
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "reddit"
}

// ListThreads returns the first ThreadLimit threads of a subreddit.
func (p *Provider) ListThreads(ctx context.Context, board string) ([]models.Thread, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(p.cfg.ThreadLimit))
	query.Set("raw_json", "1")

	var l listing
	if err := p.get(ctx, "list threads", "/r/"+url.PathEscape(board), query, &l); err != nil {
		return nil, err
	}

	threads, err := threadsFromListing(l)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w: %v", providers.ErrRemoteUnavailable, err)
	}
	p.logger.Debug().Str("board", board).Int("threads", len(threads)).Msg("Listed threads")
	return threads, nil
}

// ListReplies returns the reply forest of one article. The comments endpoint
// answers with [article listing, comment listing]; only the second matters.
func (p *Provider) ListReplies(ctx context.Context, board, threadID string) (models.ReplyForest, error) {
	query := url.Values{}
	query.Set("raw_json", "1")

	path := fmt.Sprintf("/r/%s/comments/%s", url.PathEscape(board), url.PathEscape(threadID))
	var listings []listing
	if err := p.get(ctx, "list replies", path, query, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("list replies: %w: expected 2 listings, got %d", providers.ErrRemoteUnavailable, len(listings))
	}

	forest, err := forestFromListing(listings[1])
	if err != nil {
		return nil, fmt.Errorf("list replies: %w: %v", providers.ErrRemoteUnavailable, err)
	}
	p.logger.Debug().
		Str("board", board).
		Str("thread_id", threadID).
		Int("comments", forest.CountComments()).
		Msg("Listed replies")
	return forest, nil
}

// PostReply replies to the comment identified by its fullname.
func (p *Provider) PostReply(ctx context.Context, targetID, text string) error {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("text", text)
	form.Set("thing_id", targetID)

	var resp commentResponse
	if err := p.postForm(ctx, "post reply", "/api/comment", form, &resp); err != nil {
		return err
	}
	if len(resp.JSON.Errors) > 0 {
		return &providers.APIError{Op: "post reply", Message: formatAPIErrors(resp.JSON.Errors)}
	}
	return nil
}

func (p *Provider) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	endpoint := p.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	return p.do(ctx, op, req, out)
}

func (p *Provider) postForm(ctx context.Context, op, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(ctx, op, req, out)
}

func (p *Provider) do(ctx context.Context, op string, req *http.Request, out interface{}) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %v", op, providers.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if providers.IsAuthStatus(resp.StatusCode) {
			p.invalidateToken()
		}
		return &providers.APIError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: failed to decode response: %v", op, providers.ErrRemoteUnavailable, err)
	}
	return nil
}

func (p *Provider) admit(ctx context.Context) error {
	if p.gate == nil {
		return nil
	}
	return p.gate.Wait(ctx, 1)
}

func formatAPIErrors(errs [][]string) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, strings.Join(nonEmpty(e), ": "))
	}
	return strings.Join(parts, "; ")
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
