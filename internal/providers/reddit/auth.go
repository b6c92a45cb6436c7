package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/redditbot/internal/providers"
)

// Authenticate exchanges the account credentials for an access token using
// the OAuth2 password grant. The token request is admitted by the gate like
// any other outbound call.
func (p *Provider) Authenticate(ctx context.Context) error {
	if p.cfg.ClientID == "" || p.cfg.Username == "" {
		return fmt.Errorf("authenticate: %w: client id and username are required", providers.ErrRemoteAuth)
	}
	if err := p.admit(ctx); err != nil {
		return err
	}

	conf := &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  p.cfg.AuthURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := conf.PasswordCredentialsToken(tokenCtx, p.cfg.Username, p.cfg.Password)
	if err != nil {
		return classifyTokenError(err)
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	p.logger.Info().
		Str("username", p.cfg.Username).
		Time("expires_at", token.Expiry).
		Msg("Authenticated with reddit")
	return nil
}

// IsAuthenticated reports whether a non-expired access token is held.
func (p *Provider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil && p.token.Valid()
}

func (p *Provider) accessToken(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if token != nil && token.Valid() {
		return token, nil
	}

	p.logger.Debug().Msg("Access token missing or expired, re-authenticating")
	if err := p.Authenticate(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, nil
}

func (p *Provider) invalidateToken() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if retrieveErr.ErrorCode != "" || providers.IsAuthStatus(status) || status == http.StatusBadRequest {
			return fmt.Errorf("authenticate: %w: %s", providers.ErrRemoteAuth, retrieveErr.Error())
		}
		return &providers.APIError{Op: "authenticate", StatusCode: status, Message: string(retrieveErr.Body)}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("authenticate: %w: %v", providers.ErrRemoteUnavailable, err)
	}
	// oauth2 reports a 200 without access_token as a plain error.
	return fmt.Errorf("authenticate: %w: %v", providers.ErrRemoteAuth, err)
}
