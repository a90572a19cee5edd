package api

import (
	"errors"
	"net/http"

	"github.com/npezzotti/diayouth/internal/auth"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email                     string `json:"email"`
	Username                  string `json:"username"`
	Password                  string `json:"password"`
	PreferenceEventCategoryId *int64 `json:"preference_event_category_id"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type UpdateAccountRequest struct {
	Password string `json:"password"`
}

// SessionResponse is sent on login and registration. The token is also set
// as a cookie; it is repeated in the body for clients that send it as a
// bearer token.
type SessionResponse struct {
	types.Session
	Token string `json:"token"`
}

func (s *DiaYouthApp) startSession(w http.ResponseWriter, code int, sess auth.Session) {
	http.SetCookie(w, auth.SessionCookie(sess))
	s.writeJson(w, code, SessionResponse{
		Session: types.Session{
			UserId:    sess.UserId,
			Email:     sess.Email,
			ExpiresAt: sess.ExpiresAt,
		},
		Token: sess.Token,
	})
}

func (s *DiaYouthApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	sess, err := s.auth.Register(r.Context(), auth.RegisterParams{
		Email:                     req.Email,
		Password:                  req.Password,
		Username:                  req.Username,
		PreferenceEventCategoryId: req.PreferenceEventCategoryId,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(WithUserId(r.Context(), sess.UserId), "profiles", feed.Insert, 0)
	s.startSession(w, http.StatusCreated, sess)
}

func (s *DiaYouthApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		s.fail(w, r, NewBadRequestError())
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.WithField("remote_addr", clientKey(r)).Info("failed login")
		}
		s.fail(w, r, err)
		return
	}

	s.startSession(w, http.StatusOK, sess)
}

// resetPassword always answers the same way for known and unknown emails.
func (s *DiaYouthApp) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeJson(r, &req); err != nil || req.Email == "" {
		s.fail(w, r, NewBadRequestError())
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *DiaYouthApp) session(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := types.Session{UserId: userId}
	profile, err := s.db.GetProfile(r.Context(), userId)
	switch {
	case err == nil:
		p := s.toProfile(profile)
		resp.Profile = &p
	case errors.Is(err, database.ErrNotFound):
	default:
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *DiaYouthApp) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), token(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}

	http.SetCookie(w, auth.ExpiredCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (s *DiaYouthApp) updateAccount(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req UpdateAccountRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.auth.UpdatePassword(r.Context(), userId, token(r.Context()), req.Password); err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "updated"})
}
