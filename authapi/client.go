package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-session-guard/internal/config"
	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/token"
	"github.com/jrsteele09/go-session-guard/users"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 1 << 20

// CurrentUser is the profile returned by the current-user endpoint.
type CurrentUser struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Email     string       `json:"email,omitempty"`
	FirstName string       `json:"first_name,omitempty"`
	LastName  string       `json:"last_name,omitempty"`
	Roles     []users.Role `json:"roles"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Client calls the backend's auth endpoints. It carries no session state.
type Client struct {
	baseURL         string
	loginPath       string
	refreshPath     string
	logoutPath      string
	currentUserPath string
	httpClient      *http.Client
}

var _ token.Exchanger = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(cfg config.APIConfig, options ...Option) *Client {
	c := &Client{
		baseURL:         cfg.GetAPIBaseURL(),
		loginPath:       cfg.GetLoginPath(),
		refreshPath:     cfg.GetRefreshPath(),
		logoutPath:      cfg.GetLogoutPath(),
		currentUserPath: cfg.GetCurrentUserPath(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.GetRequestTimeout()}
	}
	return c
}

// Login exchanges a username and password for an access/refresh pair.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, c.loginPath, "", loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, classify(err, sgerrors.ErrInvalidCredentials, "[authapi Login]")
	}
	if resp.Access == "" || resp.Refresh == "" {
		return nil, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[authapi Login] response without a token pair")
	}
	return toOAuth2Token(resp), nil
}

// Refresh exchanges a refresh token for a new access token. The returned
// RefreshToken is empty unless the backend rotated it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, c.refreshPath, "", refreshRequest{Refresh: refreshToken}, &resp)
	if err != nil {
		return nil, classify(err, sgerrors.ErrInvalidRefreshToken, "[authapi Refresh]")
	}
	if resp.Access == "" {
		return nil, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[authapi Refresh] response without an access token")
	}
	return toOAuth2Token(resp), nil
}

// Logout asks the backend to revoke refreshToken.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if err := c.do(ctx, http.MethodPost, c.logoutPath, "", refreshRequest{Refresh: refreshToken}, nil); err != nil {
		return classify(err, sgerrors.ErrInvalidRefreshToken, "[authapi Logout]")
	}
	return nil
}

// CurrentUser fetches the profile and role codes of the token's owner.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*CurrentUser, error) {
	var user CurrentUser
	if err := c.do(ctx, http.MethodGet, c.currentUserPath, accessToken, nil, &user); err != nil {
		return nil, classify(err, sgerrors.ErrAuthenticationRequired, "[authapi CurrentUser]")
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &sgerrors.RequestFailedError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify adds rejected to 400/401 responses so callers can tell a refused
// credential from an unreachable backend.
func classify(err, rejected error, prefix string) error {
	var reqErr *sgerrors.RequestFailedError
	if sgerrors.As(err, &reqErr) && (reqErr.StatusCode == http.StatusBadRequest || reqErr.StatusCode == http.StatusUnauthorized) {
		return fmt.Errorf("%s %w: %w", prefix, rejected, err)
	}
	return fmt.Errorf("%s %w", prefix, err)
}

func toOAuth2Token(resp tokenResponse) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
		TokenType:    "Bearer",
	}
	if exp, err := token.ExpiresAt(resp.Access); err == nil {
		tok.Expiry = exp
	}
	return tok
}
