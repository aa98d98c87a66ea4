package token

import (
	"context"

	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx     context.Context
	service *Service
}

// TokenSource adapts the service to oauth2.TokenSource so oauth2.NewClient
// transports share its single-flight refresh. Expiry is pulled forward by the
// expiry margin.
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, service: s}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.service.GetValidToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, sgerrors.ErrAuthenticationRequired
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if exp, err := ExpiresAt(access); err == nil {
		tok.Expiry = exp.Add(-ts.service.margin)
	}
	return tok, nil
}
