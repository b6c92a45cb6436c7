package reddit

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redditbot/internal/providers"
	"github.com/redditbot/pkg/models"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type countingGate struct {
	calls int
}

func (g *countingGate) Wait(ctx context.Context, cost int) error {
	g.calls += cost
	return nil
}

const tokenJSON = `{"access_token":"tok-123","token_type":"bearer","expires_in":3600,"scope":"*"}`

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     header,
	}
}

func testConfig() Config {
	return Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Username:     "UltimateBottyBoi",
		Password:     "hunter2",
		AppName:      "redditbot",
		Version:      "1.0",
		BaseURL:      "https://oauth.example.com",
		AuthURL:      "https://www.example.com/api/v1/access_token",
	}
}

func newTestProvider(t *testing.T, handler func(*http.Request) *http.Response, opts ...Option) *Provider {
	t.Helper()
	opts = append(opts, WithHTTPClient(&http.Client{Transport: roundTripFunc(handler)}))
	return New(testConfig(), opts...)
}

func TestAuthenticate_PasswordGrant(t *testing.T) {
	gate := &countingGate{}
	var captured *http.Request
	var form url.Values

	p := newTestProvider(t, func(req *http.Request) *http.Response {
		captured = req
		payload, _ := io.ReadAll(req.Body)
		form, _ = url.ParseQuery(string(payload))
		return jsonResponse(http.StatusOK, tokenJSON)
	}, WithGate(gate))

	require.False(t, p.IsAuthenticated())
	require.NoError(t, p.Authenticate(context.Background()))
	require.True(t, p.IsAuthenticated())

	require.NotNil(t, captured)
	assert.Equal(t, "https://www.example.com/api/v1/access_token", captured.URL.String())
	assert.Equal(t, "redditbot /v1.0 by UltimateBottyBoi", captured.Header.Get("User-Agent"))
	user, pass, ok := captured.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "client-id", user)
	assert.Equal(t, "client-secret", pass)
	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "UltimateBottyBoi", form.Get("username"))
	assert.Equal(t, "hunter2", form.Get("password"))
	assert.Equal(t, 1, gate.calls, "token exchange must be admitted by the gate")
}

func TestAuthenticate_InvalidGrant(t *testing.T) {
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, `{"error":"invalid_grant"}`)
	})

	err := p.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrRemoteAuth)
	assert.False(t, p.IsAuthenticated())
}

func TestAuthenticate_Unauthorized(t *testing.T) {
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		return jsonResponse(http.StatusUnauthorized, `{"message":"Unauthorized","error":401}`)
	})

	err := p.Authenticate(context.Background())
	assert.ErrorIs(t, err, providers.ErrRemoteAuth)
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = ""
	p := New(cfg)

	err := p.Authenticate(context.Background())
	assert.ErrorIs(t, err, providers.ErrRemoteAuth)
}

func TestListThreads(t *testing.T) {
	var apiRequest *http.Request
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		apiRequest = req
		return jsonResponse(http.StatusOK, `{
			"kind": "Listing",
			"data": {"after": "t3_b", "children": [
				{"kind": "t3", "data": {"id": "a", "name": "t3_a", "title": "First", "author": "alice", "num_comments": 3}},
				{"kind": "t3", "data": {"id": "b", "title": "Second", "author": "bob"}}
			]}
		}`)
	})

	threads, err := p.ListThreads(context.Background(), "BotBois")
	require.NoError(t, err)

	expected := []models.Thread{
		{ID: "a", Name: "t3_a", Title: "First", Author: "alice", NumComments: 3},
		{ID: "b", Name: "t3_b", Title: "Second", Author: "bob"},
	}
	if diff := cmp.Diff(expected, threads); diff != "" {
		t.Fatalf("threads mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, apiRequest)
	assert.Equal(t, "/r/BotBois", apiRequest.URL.Path)
	assert.Equal(t, "25", apiRequest.URL.Query().Get("limit"))
	assert.Equal(t, "Bearer tok-123", apiRequest.Header.Get("Authorization"))
	assert.Equal(t, "redditbot /v1.0 by UltimateBottyBoi", apiRequest.Header.Get("User-Agent"))
}

const commentsPayload = `[
  {"kind": "Listing", "data": {"children": [{"kind": "t3", "data": {"id": "art1", "title": "Article"}}]}},
  {"kind": "Listing", "data": {"children": [
    {"kind": "t1", "data": {"id": "c1", "name": "t1_c1", "author": "alice", "body": "I love dexter stuff",
      "replies": {"kind": "Listing", "data": {"children": [
        {"kind": "t1", "data": {"id": "c2", "name": "t1_c2", "author": "UltimateBottyBoi", "body": "You said Dexter!", "replies": ""}},
        {"kind": "more", "data": {"id": "c9", "name": "t1_c9", "count": 2, "children": ["c9", "c10"]}}
      ]}}}},
    {"kind": "t1", "data": {"id": "c3", "author": "bob", "body": "nothing here", "replies": ""}}
  ]}}
]`

func TestListReplies_BuildsTypedForest(t *testing.T) {
	var apiPath string
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		apiPath = req.URL.Path
		return jsonResponse(http.StatusOK, commentsPayload)
	})

	forest, err := p.ListReplies(context.Background(), "BotBois", "art1")
	require.NoError(t, err)
	assert.Equal(t, "/r/BotBois/comments/art1", apiPath)

	expected := models.ReplyForest{
		{
			Kind:   models.KindComment,
			ID:     "t1_c1",
			Author: "alice",
			Body:   "I love dexter stuff",
			Children: []*models.ReplyNode{
				{Kind: models.KindComment, ID: "t1_c2", Author: "UltimateBottyBoi", Body: "You said Dexter!"},
				{Kind: models.KindMore, ID: "t1_c9", MoreIDs: []string{"c9", "c10"}, MoreCount: 2},
			},
		},
		{Kind: models.KindComment, ID: "t1_c3", Author: "bob", Body: "nothing here"},
	}
	if diff := cmp.Diff(expected, forest); diff != "" {
		t.Fatalf("forest mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, forest.CountComments())
}

func TestListReplies_UnexpectedShape(t *testing.T) {
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		return jsonResponse(http.StatusOK, `[{"kind": "Listing", "data": {"children": []}}]`)
	})

	_, err := p.ListReplies(context.Background(), "BotBois", "art1")
	assert.ErrorIs(t, err, providers.ErrRemoteUnavailable)
}

func TestPostReply(t *testing.T) {
	var form url.Values
	var apiRequest *http.Request
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		apiRequest = req
		payload, _ := io.ReadAll(req.Body)
		form, _ = url.ParseQuery(string(payload))
		return jsonResponse(http.StatusOK, `{"json": {"errors": [], "data": {"things": []}}}`)
	})

	require.NoError(t, p.PostReply(context.Background(), "t1_c1", "You said Dexter!"))
	require.NotNil(t, apiRequest)
	assert.Equal(t, http.MethodPost, apiRequest.Method)
	assert.Equal(t, "/api/comment", apiRequest.URL.Path)
	assert.Equal(t, "json", form.Get("api_type"))
	assert.Equal(t, "t1_c1", form.Get("thing_id"))
	assert.Equal(t, "You said Dexter!", form.Get("text"))
}

func TestPostReply_APIErrors(t *testing.T) {
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		return jsonResponse(http.StatusOK, `{"json": {"errors": [["RATELIMIT", "you are doing that too much", "ratelimit"]]}}`)
	})

	err := p.PostReply(context.Background(), "t1_c1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "RATELIMIT")
}

func TestUnauthorizedResponseInvalidatesToken(t *testing.T) {
	tokenRequests := 0
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			tokenRequests++
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		return jsonResponse(http.StatusUnauthorized, `{"message": "Unauthorized"}`)
	})

	_, err := p.ListThreads(context.Background(), "BotBois")
	assert.ErrorIs(t, err, providers.ErrRemoteAuth)
	assert.False(t, p.IsAuthenticated())

	_, err = p.ListThreads(context.Background(), "BotBois")
	assert.ErrorIs(t, err, providers.ErrRemoteAuth)
	assert.Equal(t, 2, tokenRequests, "a rejected token is exchanged again on the next call")
}

func TestServerErrorIsUnavailable(t *testing.T) {
	p := newTestProvider(t, func(req *http.Request) *http.Response {
		if req.URL.Host == "www.example.com" {
			return jsonResponse(http.StatusOK, tokenJSON)
		}
		return jsonResponse(http.StatusServiceUnavailable, `upstream busy`)
	})

	_, err := p.ListReplies(context.Background(), "BotBois", "art1")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrRemoteUnavailable)
	assert.False(t, providers.IsAuthError(err))

	var apiErr *providers.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, p.IsAuthenticated(), "server errors keep the token")
}

func TestNew_TimeoutFallsBackToConfig(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, tokenJSON)
	})

	cfg := testConfig()
	cfg.Timeout = 3 * time.Second
	p := New(cfg, WithHTTPClient(&http.Client{Transport: transport}))
	assert.Equal(t, 3*time.Second, p.httpClient.Timeout)

	p = New(cfg, WithHTTPClient(&http.Client{Transport: transport, Timeout: time.Second}))
	assert.Equal(t, time.Second, p.httpClient.Timeout, "an explicit client timeout wins")

	p = New(testConfig(), WithHTTPClient(&http.Client{Transport: transport}))
	assert.Equal(t, defaultTimeout, p.httpClient.Timeout)
}
