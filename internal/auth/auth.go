// Package auth registers and signs in users and verifies the session tokens
// the API accepts.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/npezzotti/diayouth/internal/database"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidInput       = errors.New("auth: invalid registration")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrUnsupported        = errors.New("auth: not supported by this provider")
)

const (
	TokenCookieKey = "token"

	minPasswordLength = 6
	// bcrypt only reads this many bytes of a password.
	maxPasswordLength = 72
)

type Session struct {
	Token     string    `json:"-"`
	UserId    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RegisterParams struct {
	Email                     string
	Password                  string
	Username                  string
	PreferenceEventCategoryId *int64
}

func (p RegisterParams) Validate() error {
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return errors.Join(ErrInvalidInput, errors.New("invalid email"))
	}
	if err := validatePassword(p.Password); err != nil {
		return err
	}
	if strings.TrimSpace(p.Username) == "" {
		return errors.Join(ErrInvalidInput, errors.New("username is required"))
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return errors.Join(ErrInvalidInput, errors.New("password too short"))
	case len(password) > maxPasswordLength:
		return errors.Join(ErrInvalidInput, errors.New("password too long"))
	}
	return nil
}

func (p RegisterParams) profile(userId string) database.UpsertProfileParams {
	return database.UpsertProfileParams{
		Id:                        userId,
		Username:                  strings.TrimSpace(p.Username),
		PreferenceEventCategoryId: p.PreferenceEventCategoryId,
	}
}

// Provider is an identity backend.
type Provider interface {
	Register(ctx context.Context, params RegisterParams) (Session, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, userId, token, password string) error
}

// TokenFromRequest returns the session token from the token cookie or a
// bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieKey); err == nil && c.Value != "" {
		return c.Value
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func SessionCookie(s Session) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieKey,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredCookie instructs the browser to delete the session cookie.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieKey,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
