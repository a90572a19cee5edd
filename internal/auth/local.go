package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSessionTTL = 24 * time.Hour

// LocalProvider keeps accounts in the relational store and issues its own
// tokens.
type LocalProvider struct {
	db   database.DiaYouthRepository
	log  *logrus.Logger
	key  []byte
	ttl  time.Duration
	cost int
}

func NewLocalProvider(db database.DiaYouthRepository, signingKey []byte, logger *logrus.Logger) *LocalProvider {
	return &LocalProvider{
		db:   db,
		log:  logger,
		key:  signingKey,
		ttl:  DefaultSessionTTL,
		cost: bcrypt.DefaultCost,
	}
}

func hashPassword(passwd string, cost int) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), cost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) session(userId, email string) (Session, error) {
	token, exp, err := signToken(p.key, userId, email, p.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, UserId: userId, Email: email, ExpiresAt: exp}, nil
}

func (p *LocalProvider) Register(ctx context.Context, params RegisterParams) (Session, error) {
	params.Email = normalizeEmail(params.Email)
	if err := params.Validate(); err != nil {
		return Session{}, err
	}

	pwdHash, err := hashPassword(params.Password, p.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	account, err := p.db.CreateAccount(ctx, database.CreateAccountParams{
		Id:           id,
		Email:        params.Email,
		PasswordHash: pwdHash,
		Profile:      params.profile(id),
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrConflict):
			return Session{}, ErrEmailTaken
		case errors.Is(err, database.ErrInvalidReference):
			return Session{}, errors.Join(ErrInvalidInput, errors.New("unknown event category"))
		}
		return Session{}, fmt.Errorf("create account: %w", err)
	}

	p.log.WithField("user_id", account.Id).Info("account registered")
	return p.session(account.Id, account.Email)
}

func (p *LocalProvider) Login(ctx context.Context, email, password string) (Session, error) {
	account, err := p.db.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("get account: %w", err)
	}

	if !verifyPassword(account.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}

	return p.session(account.Id, account.Email)
}

// Logout is a no-op; local tokens are stateless and the cookie is cleared by
// the caller.
func (p *LocalProvider) Logout(context.Context, string) error {
	return nil
}

func (p *LocalProvider) ResetPassword(context.Context, string) error {
	return ErrUnsupported
}

func (p *LocalProvider) UpdatePassword(ctx context.Context, userId, _ string, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}

	pwdHash, err := hashPassword(password, p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := p.db.UpdateAccountPassword(ctx, userId, pwdHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
