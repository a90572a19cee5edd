package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/diayouth/internal/auth"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// findCookie returns the cookie named name set on the response, or nil.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestRegisterHandler(t *testing.T) {
	cat := int64(3)
	session := auth.Session{Token: "signed", UserId: testUserId, Email: "anna@example.com", ExpiresAt: time.Now().Add(time.Hour)}

	tcases := []struct {
		name    string
		body    any
		mockErr error
		status  int
	}{
		{
			name:   "successfully registers",
			body:   RegisterRequest{Email: "anna@example.com", Username: "anna", Password: "secret1", PreferenceEventCategoryId: &cat},
			status: http.StatusCreated,
		},
		{
			name:   "invalid json body",
			body:   "invalid json",
			status: http.StatusBadRequest,
		},
		{
			name:    "email taken",
			body:    RegisterRequest{Email: "anna@example.com", Username: "anna", Password: "secret1", PreferenceEventCategoryId: &cat},
			mockErr: auth.ErrEmailTaken,
			status:  http.StatusConflict,
		},
		{
			name:    "invalid input",
			body:    RegisterRequest{Email: "anna@example.com", Username: "anna", Password: "secret1", PreferenceEventCategoryId: &cat},
			mockErr: auth.RegisterParams{Email: "nope"}.Validate(),
			status:  http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t)
			defer ta.auth.AssertExpectations(t)

			if _, ok := tc.body.(RegisterRequest); ok {
				ta.auth.On("Register", auth.RegisterParams{
					Email: "anna@example.com", Password: "secret1", Username: "anna", PreferenceEventCategoryId: &cat,
				}).Return(session, tc.mockErr).Once()
			}

			rr := ta.do(t, http.MethodPost, "/api/auth/register", tc.body, "")
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())

			if tc.status != http.StatusCreated {
				assert.Nil(t, findCookie(rr, auth.TokenCookieKey))
				errResp := decodeBody[ApiError](t, rr)
				assert.Equal(t, tc.status, errResp.StatusCode)
				assert.NotEmpty(t, errResp.Message)
				return
			}

			cookie := findCookie(rr, auth.TokenCookieKey)
			require.NotNil(t, cookie, "expected session cookie")
			assert.Equal(t, "signed", cookie.Value)
			assert.True(t, cookie.HttpOnly)

			resp := decodeBody[SessionResponse](t, rr)
			assert.Equal(t, testUserId, resp.UserId)
			assert.Equal(t, "signed", resp.Token)
		})
	}
}

func TestRegisterHandler_InvalidInputMessage(t *testing.T) {
	ta := newTestApp(t)
	ta.auth.On("Register", mock.Anything).Return(auth.Session{}, auth.RegisterParams{Email: "a@b.nl", Password: "x"}.Validate()).Once()

	rr := ta.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{Email: "a@b.nl", Password: "x", Username: "a"}, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "password too short", decodeBody[ApiError](t, rr).Message)
}

func TestLoginHandler(t *testing.T) {
	tcases := []struct {
		name    string
		body    any
		mockErr error
		status  int
	}{
		{name: "successful login", body: LoginRequest{Email: "a@b.nl", Password: "secret1"}, status: http.StatusOK},
		{name: "invalid credentials", body: LoginRequest{Email: "a@b.nl", Password: "secret1"}, mockErr: auth.ErrInvalidCredentials, status: http.StatusUnauthorized},
		{name: "missing password", body: LoginRequest{Email: "a@b.nl"}, status: http.StatusBadRequest},
		{name: "store failure", body: LoginRequest{Email: "a@b.nl", Password: "secret1"}, mockErr: assert.AnError, status: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t)
			defer ta.auth.AssertExpectations(t)

			if req := tc.body.(LoginRequest); req.Password != "" {
				ta.auth.On("Login", "a@b.nl", "secret1").
					Return(auth.Session{Token: "signed", UserId: testUserId}, tc.mockErr).Once()
			}

			rr := ta.do(t, http.MethodPost, "/api/auth/login", tc.body, "")
			assert.Equal(t, tc.status, rr.Code)

			if tc.status == http.StatusOK {
				assert.NotNil(t, findCookie(rr, auth.TokenCookieKey))
			} else {
				assert.Nil(t, findCookie(rr, auth.TokenCookieKey))
			}
		})
	}
}

func TestResetPasswordHandler(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		ta := newTestApp(t)
		ta.auth.On("ResetPassword", "a@b.nl").Return(nil).Once()

		rr := ta.do(t, http.MethodPost, "/api/auth/password-reset", PasswordResetRequest{Email: "a@b.nl"}, "")
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("unsupported by provider", func(t *testing.T) {
		ta := newTestApp(t)
		ta.auth.On("ResetPassword", "a@b.nl").Return(auth.ErrUnsupported).Once()

		rr := ta.do(t, http.MethodPost, "/api/auth/password-reset", PasswordResetRequest{Email: "a@b.nl"}, "")
		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})

	t.Run("missing email", func(t *testing.T) {
		ta := newTestApp(t)
		rr := ta.do(t, http.MethodPost, "/api/auth/password-reset", PasswordResetRequest{}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSessionHandler(t *testing.T) {
	t.Run("with profile", func(t *testing.T) {
		ta := newTestApp(t)
		ta.db.On("GetProfile", testUserId).Return(database.Profile{Id: testUserId, Username: "anna", AvatarPath: testUserId + "/a.png"}, nil).Once()

		rr := ta.do(t, http.MethodGet, "/api/auth/session", nil, testUserId)
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decodeBody[types.Session](t, rr)
		assert.Equal(t, testUserId, resp.UserId)
		require.NotNil(t, resp.Profile)
		assert.Equal(t, "https://storage.test/profile_photo/"+testUserId+"/a.png", resp.Profile.AvatarURL)
	})

	t.Run("without profile", func(t *testing.T) {
		ta := newTestApp(t)
		ta.db.On("GetProfile", testUserId).Return(database.Profile{}, database.ErrNotFound).Once()

		rr := ta.do(t, http.MethodGet, "/api/auth/session", nil, testUserId)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, decodeBody[types.Session](t, rr).Profile)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		ta := newTestApp(t)
		rr := ta.do(t, http.MethodGet, "/api/auth/session", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	ta := newTestApp(t)
	ta.auth.On("Logout", mock.AnythingOfType("string")).Return(nil).Once()

	rr := ta.do(t, http.MethodPost, "/api/auth/logout", nil, testUserId)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, auth.TokenCookieKey)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0, "expected cookie to be expired")
}

func TestUpdateAccountHandler(t *testing.T) {
	ta := newTestApp(t)
	ta.auth.On("UpdatePassword", testUserId, mock.AnythingOfType("string"), "newsecret").Return(nil).Once()
	ta.auth.On("UpdatePassword", testUserId, mock.AnythingOfType("string"), "abc").
		Return(auth.ErrInvalidInput).Once()

	rr := ta.do(t, http.MethodPut, "/api/account", UpdateAccountRequest{Password: "newsecret"}, testUserId)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, http.MethodPut, "/api/account", UpdateAccountRequest{Password: "abc"}, testUserId)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
