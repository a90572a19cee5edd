package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/supabase"
	"github.com/npezzotti/diayouth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("test-signing-key")

func newTestLocalProvider(t *testing.T, db database.DiaYouthRepository) *LocalProvider {
	p := NewLocalProvider(db, testKey, testutil.TestLogger(t))
	p.cost = bcrypt.MinCost
	return p
}

func TestRegisterParams_Validate(t *testing.T) {
	tcases := []struct {
		name    string
		params  RegisterParams
		wantErr bool
	}{
		{name: "valid", params: RegisterParams{Email: "anna@example.com", Password: "secret1", Username: "anna"}},
		{name: "bad email", params: RegisterParams{Email: "anna", Password: "secret1", Username: "anna"}, wantErr: true},
		{name: "short password", params: RegisterParams{Email: "anna@example.com", Password: "abc", Username: "anna"}, wantErr: true},
		{name: "password at bcrypt limit", params: RegisterParams{Email: "anna@example.com", Password: strings.Repeat("a", 72), Username: "anna"}},
		{name: "password over bcrypt limit", params: RegisterParams{Email: "anna@example.com", Password: strings.Repeat("a", 80), Username: "anna"}, wantErr: true},
		{name: "blank username", params: RegisterParams{Email: "anna@example.com", Password: "secret1", Username: "  "}, wantErr: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalProvider_RegisterLongPassword(t *testing.T) {
	db := &database.MockDiaYouthRepository{}
	defer db.AssertExpectations(t)

	p := newTestLocalProvider(t, db)
	_, err := p.Register(context.Background(), RegisterParams{
		Email:    "anna@example.com",
		Password: strings.Repeat("a", 80),
		Username: "anna",
	})

	assert.ErrorIs(t, err, ErrInvalidInput, "expected bcrypt's limit to be reported as bad input")
	db.AssertNotCalled(t, "CreateAccount", mock.Anything)
}

func TestLocalProvider_Register(t *testing.T) {
	db := &database.MockDiaYouthRepository{}
	defer db.AssertExpectations(t)

	cat := int64(2)
	db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
		return p.Email == "anna@example.com" &&
			p.Id != "" &&
			p.Profile.Id == p.Id &&
			p.Profile.Username == "anna" &&
			*p.Profile.PreferenceEventCategoryId == cat &&
			verifyPassword(p.PasswordHash, "secret1")
	})).Return(database.Account{Id: "u1", Email: "anna@example.com"}, nil).Once()

	p := newTestLocalProvider(t, db)
	s, err := p.Register(context.Background(), RegisterParams{
		Email:                     " Anna@Example.com",
		Password:                  "secret1",
		Username:                  "anna",
		PreferenceEventCategoryId: &cat,
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserId)
	assert.NotEmpty(t, s.Token)

	claims, err := NewVerifier(testKey).Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "anna@example.com", claims.Email)
}

func TestLocalProvider_RegisterErrors(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
		wantErr error
	}{
		{name: "email taken", mockErr: database.ErrConflict, wantErr: ErrEmailTaken},
		{name: "unknown category", mockErr: database.ErrInvalidReference, wantErr: ErrInvalidInput},
		{name: "store failure", mockErr: errors.New("connection reset")},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockDiaYouthRepository{}
			db.On("CreateAccount", mock.Anything).Return(database.Account{}, tc.mockErr).Once()

			p := newTestLocalProvider(t, db)
			_, err := p.Register(context.Background(), RegisterParams{Email: "a@b.nl", Password: "secret1", Username: "a"})
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.ErrorIs(t, err, tc.mockErr)
			}
		})
	}
}

func TestLocalProvider_Login(t *testing.T) {
	hash, err := hashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	tcases := []struct {
		name     string
		password string
		account  database.Account
		mockErr  error
		wantErr  error
	}{
		{name: "valid", password: "secret1", account: database.Account{Id: "u1", Email: "a@b.nl", PasswordHash: hash}},
		{name: "wrong password", password: "nope", account: database.Account{Id: "u1", PasswordHash: hash}, wantErr: ErrInvalidCredentials},
		{name: "unknown email", password: "secret1", mockErr: database.ErrNotFound, wantErr: ErrInvalidCredentials},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockDiaYouthRepository{}
			defer db.AssertExpectations(t)
			db.On("GetAccountByEmail", "a@b.nl").Return(tc.account, tc.mockErr).Once()

			s, err := newTestLocalProvider(t, db).Login(context.Background(), "A@b.nl", tc.password)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", s.UserId)
			assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), s.ExpiresAt, time.Minute)
		})
	}
}

func TestLocalProvider_Passwords(t *testing.T) {
	db := &database.MockDiaYouthRepository{}
	defer db.AssertExpectations(t)
	db.On("UpdateAccountPassword", "u1", mock.MatchedBy(func(h string) bool { return verifyPassword(h, "newsecret") })).
		Return(nil).Once()

	p := newTestLocalProvider(t, db)
	assert.NoError(t, p.UpdatePassword(context.Background(), "u1", "", "newsecret"))
	assert.ErrorIs(t, p.UpdatePassword(context.Background(), "u1", "", "abc"), ErrInvalidInput)
	assert.ErrorIs(t, p.UpdatePassword(context.Background(), "u1", "", strings.Repeat("x", 80)), ErrInvalidInput)
	assert.ErrorIs(t, p.ResetPassword(context.Background(), "a@b.nl"), ErrUnsupported)
	assert.NoError(t, p.Logout(context.Background(), "token"))
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(testKey)

	valid, _, err := signToken(testKey, "u1", "a@b.nl", time.Hour)
	require.NoError(t, err)
	expired, _, err := signToken(testKey, "u1", "", -time.Hour)
	require.NoError(t, err)
	otherKey, _, err := signToken([]byte("other"), "u1", "", time.Hour)
	require.NoError(t, err)
	noSubject, _, err := signToken(testKey, "", "", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{Subject: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := v.Verify(valid)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)

	for name, token := range map[string]string{
		"empty":      "",
		"expired":    expired,
		"other key":  otherKey,
		"no subject": noSubject,
		"alg none":   none,
		"garbage":    "not.a.token",
	} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: TokenCookieKey, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r), "expected the cookie to win")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestCookies(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	c := SessionCookie(Session{Token: "t", ExpiresAt: exp})
	assert.Equal(t, TokenCookieKey, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	assert.Equal(t, -1, ExpiredCookie().MaxAge)
}

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) SignUp(ctx context.Context, email, password string, metadata map[string]any) (supabase.Session, error) {
	args := m.Called(email, password, metadata)
	return args.Get(0).(supabase.Session), args.Error(1)
}
func (m *mockRemote) SignIn(ctx context.Context, email, password string) (supabase.Session, error) {
	args := m.Called(email, password)
	return args.Get(0).(supabase.Session), args.Error(1)
}
func (m *mockRemote) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(accessToken).Error(0)
}
func (m *mockRemote) Recover(ctx context.Context, email string) error {
	return m.Called(email).Error(0)
}
func (m *mockRemote) UpdatePassword(ctx context.Context, accessToken, password string) (supabase.User, error) {
	args := m.Called(accessToken, password)
	return args.Get(0).(supabase.User), args.Error(1)
}

func TestSupabaseProvider_Register(t *testing.T) {
	remote := &mockRemote{}
	db := &database.MockDiaYouthRepository{}
	defer remote.AssertExpectations(t)
	defer db.AssertExpectations(t)

	remote.On("SignUp", "a@b.nl", "secret1", map[string]any{"username": "anna"}).
		Return(supabase.Session{AccessToken: "at", ExpiresIn: 3600, User: supabase.User{Id: "u1", Email: "a@b.nl"}}, nil).Once()
	db.On("UpsertProfile", database.UpsertProfileParams{Id: "u1", Username: "anna"}).
		Return(database.Profile{Id: "u1", Username: "anna"}, nil).Once()

	p := NewSupabaseProvider(remote, db, testutil.TestLogger(t))
	s, err := p.Register(context.Background(), RegisterParams{Email: "a@b.nl", Password: "secret1", Username: "anna"})
	require.NoError(t, err)
	assert.Equal(t, "at", s.Token)
	assert.Equal(t, "u1", s.UserId)
}

func TestSupabaseProvider_ErrorMapping(t *testing.T) {
	remote := &mockRemote{}
	defer remote.AssertExpectations(t)
	p := NewSupabaseProvider(remote, &database.MockDiaYouthRepository{}, testutil.TestLogger(t))
	ctx := context.Background()

	remote.On("SignUp", "a@b.nl", "secret1", mock.Anything).Return(supabase.Session{}, supabase.ErrUserExists).Once()
	_, err := p.Register(ctx, RegisterParams{Email: "a@b.nl", Password: "secret1", Username: "anna"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	remote.On("SignIn", "a@b.nl", "wrong").Return(supabase.Session{}, supabase.ErrInvalidCredentials).Once()
	_, err = p.Login(ctx, "a@b.nl", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	remote.On("SignOut", "expired").Return(supabase.ErrInvalidToken).Once()
	assert.NoError(t, p.Logout(ctx, "expired"), "expected an already invalid session to count as logged out")

	remote.On("Recover", "a@b.nl").Return(nil).Once()
	assert.NoError(t, p.ResetPassword(ctx, "a@b.nl"))

	remote.On("UpdatePassword", "at", "newsecret").Return(supabase.User{Id: "u1"}, nil).Once()
	assert.NoError(t, p.UpdatePassword(ctx, "u1", "at", "newsecret"))
	assert.ErrorIs(t, p.UpdatePassword(ctx, "u1", "at", strings.Repeat("x", 80)), ErrInvalidInput)
}
