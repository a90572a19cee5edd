package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("supabase: invalid login credentials")
	ErrUserExists         = errors.New("supabase: user already registered")
	ErrInvalidToken       = errors.New("supabase: invalid or expired token")
)

type User struct {
	Id           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

type credentials struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

func authError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return errors.Join(ErrInvalidToken, err)
	case strings.Contains(msg, "invalid login credentials") || strings.Contains(msg, "invalid_grant"):
		return errors.Join(ErrInvalidCredentials, err)
	case strings.Contains(msg, "already registered") || strings.Contains(msg, "already exists"):
		return errors.Join(ErrUserExists, err)
	}
	return err
}

// SignUp registers a user. metadata is stored as the user's metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentials{Email: email, Password: password, Data: metadata}, &s)
	if err != nil {
		return Session{}, authError(err)
	}
	return s, nil
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials{Email: email, Password: password}, &s)
	if err != nil {
		return Session{}, authError(err)
	}
	return s, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var s Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &s); err != nil {
		return Session{}, authError(err)
	}
	return s, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return authError(c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil))
}

// GetUser returns the user an access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (User, error) {
	var u User
	if err := c.get(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &u); err != nil {
		return User{}, authError(err)
	}
	return u, nil
}

// Recover sends a password reset email.
func (c *Client) Recover(ctx context.Context, email string) error {
	return authError(c.do(ctx, http.MethodPost, "/auth/v1/recover", "", map[string]string{"email": email}, nil))
}

func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, map[string]string{"password": password}, &u)
	if err != nil {
		return User{}, authError(err)
	}
	return u, nil
}
