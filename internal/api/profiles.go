package api

import (
	"net/http"
	"strings"

	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
)

type UpdateProfileRequest struct {
	Username                  string `json:"username"`
	PreferenceEventCategoryId *int64 `json:"preference_event_category_id"`
}

func (s *DiaYouthApp) getOwnProfile(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	profile, err := s.db.GetProfile(r.Context(), userId)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.toProfile(profile))
}

func (s *DiaYouthApp) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.db.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.toProfile(profile))
}

func (s *DiaYouthApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		s.fail(w, r, NewInvalidInputError("username is required"))
		return
	}

	profile, err := s.db.UpsertProfile(r.Context(), database.UpsertProfileParams{
		Id:                        userId,
		Username:                  username,
		PreferenceEventCategoryId: req.PreferenceEventCategoryId,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "profiles", feed.Update, 0)
	s.writeJson(w, http.StatusOK, s.toProfile(profile))
}

func (s *DiaYouthApp) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	name, err := s.storeUpload(w, r, s.avatarBucket, userId)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	profile, err := s.db.SetProfileAvatar(r.Context(), userId, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "profiles", feed.Update, 0)
	s.writeJson(w, http.StatusOK, s.toProfile(profile))
}
