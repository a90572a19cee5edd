package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/supabase"
	"github.com/sirupsen/logrus"
)

// RemoteAuth is the part of the data service client the remote provider
// needs.
type RemoteAuth interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (supabase.Session, error)
	SignIn(ctx context.Context, email, password string) (supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Recover(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, accessToken, password string) (supabase.User, error)
}

// SupabaseProvider delegates identities to the data service's auth API and
// keeps profiles in the relational store.
type SupabaseProvider struct {
	remote RemoteAuth
	db     database.DiaYouthRepository
	log    *logrus.Logger
}

func NewSupabaseProvider(remote RemoteAuth, db database.DiaYouthRepository, logger *logrus.Logger) *SupabaseProvider {
	return &SupabaseProvider{remote: remote, db: db, log: logger}
}

func remoteError(err error) error {
	switch {
	case errors.Is(err, supabase.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, supabase.ErrUserExists):
		return ErrEmailTaken
	case errors.Is(err, supabase.ErrInvalidToken):
		return ErrInvalidToken
	}
	return err
}

func fromRemote(s supabase.Session) Session {
	return Session{
		Token:     s.AccessToken,
		UserId:    s.User.Id,
		Email:     s.User.Email,
		ExpiresAt: time.Now().Add(time.Duration(s.ExpiresIn) * time.Second),
	}
}

func (p *SupabaseProvider) Register(ctx context.Context, params RegisterParams) (Session, error) {
	params.Email = normalizeEmail(params.Email)
	if err := params.Validate(); err != nil {
		return Session{}, err
	}

	rs, err := p.remote.SignUp(ctx, params.Email, params.Password, map[string]any{"username": params.Username})
	if err != nil {
		return Session{}, fmt.Errorf("sign up: %w", remoteError(err))
	}
	if rs.User.Id == "" {
		return Session{}, errors.New("sign up: no user in response")
	}

	if _, err := p.db.UpsertProfile(ctx, params.profile(rs.User.Id)); err != nil {
		p.log.WithError(err).WithField("user_id", rs.User.Id).Error("profile upsert after sign up failed")
		return Session{}, fmt.Errorf("upsert profile: %w", err)
	}

	p.log.WithField("user_id", rs.User.Id).Info("account registered")
	return fromRemote(rs), nil
}

func (p *SupabaseProvider) Login(ctx context.Context, email, password string) (Session, error) {
	rs, err := p.remote.SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		return Session{}, remoteError(err)
	}
	return fromRemote(rs), nil
}

func (p *SupabaseProvider) Logout(ctx context.Context, token string) error {
	if err := p.remote.SignOut(ctx, token); err != nil && !errors.Is(err, supabase.ErrInvalidToken) {
		return err
	}
	return nil
}

func (p *SupabaseProvider) ResetPassword(ctx context.Context, email string) error {
	return p.remote.Recover(ctx, normalizeEmail(email))
}

func (p *SupabaseProvider) UpdatePassword(ctx context.Context, _ string, token, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	_, err := p.remote.UpdatePassword(ctx, token, password)
	return remoteError(err)
}
