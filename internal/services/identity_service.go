// internal/services/identity_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/stockpics/backend/internal/config"
)

var (
	ErrIdentityDisabled = errors.New("google sign-in is not configured")
	// ErrIdentityUnavailable marks failures to reach the provider, as opposed
	// to credentials it rejected.
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
)

// ExternalIdentity is the verified claim set of a third-party login.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type IdentityProvider interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error)
	ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error)
}

// GoogleIdentityProvider verifies Google ID tokens through OIDC discovery.
// Discovery runs on first use and is retried until it succeeds.
type GoogleIdentityProvider struct {
	cfg config.AuthConfig

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

func NewGoogleIdentityProvider(cfg config.AuthConfig) *GoogleIdentityProvider {
	return &GoogleIdentityProvider{cfg: cfg}
}

func (p *GoogleIdentityProvider) init(ctx context.Context) (*oidc.IDTokenVerifier, *oauth2.Config, error) {
	if p.cfg.GoogleClientID == "" {
		return nil, nil, ErrIdentityDisabled
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.verifier != nil {
		return p.verifier, p.oauth, nil
	}

	provider, err := oidc.NewProvider(ctx, p.cfg.GoogleIssuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover %s: %w: %w", p.cfg.GoogleIssuer, ErrIdentityUnavailable, err)
	}

	p.verifier = provider.Verifier(&oidc.Config{ClientID: p.cfg.GoogleClientID})
	p.oauth = &oauth2.Config{
		ClientID:     p.cfg.GoogleClientID,
		ClientSecret: p.cfg.GoogleClientSecret,
		RedirectURL:  p.cfg.GoogleRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	return p.verifier, p.oauth, nil
}

func (p *GoogleIdentityProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error) {
	verifier, _, err := p.init(ctx)
	if err != nil {
		return nil, err
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}

	return &ExternalIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func (p *GoogleIdentityProvider) ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error) {
	_, oauthCfg, err := p.init(ctx)
	if err != nil {
		return nil, err
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		// The token endpoint answered: the code was refused unless it failed
		// on its side.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return nil, fmt.Errorf("failed to exchange authorization code: %w: %w", ErrIdentityUnavailable, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response carries no id_token")
	}

	return p.VerifyIDToken(ctx, rawIDToken)
}
