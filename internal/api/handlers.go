package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/npezzotti/diayouth/internal/cache"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/types"
	"github.com/sirupsen/logrus"
)

const maxJsonBody = 1 << 20

func writeBody(log *logrus.Logger, w http.ResponseWriter, v any) {
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("json encode")
	}
}

func (s *DiaYouthApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeBody(s.log, w, v)
}

// writeError answers with errResp, logging server side failures with the
// request's context.
func (s *DiaYouthApp) writeError(w http.ResponseWriter, r *http.Request, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		fields := logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": errResp.StatusCode,
		}
		if userId, ok := UserId(r.Context()); ok {
			fields["user_id"] = userId
		}
		s.log.WithFields(fields).WithError(errResp.Err).Error("request failed")
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *DiaYouthApp) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, errorFor(err))
}

func decodeJson(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJsonBody))
	if err := dec.Decode(v); err != nil {
		return NewBadRequestError()
	}
	return nil
}

// decodeOptionalJson is decodeJson for requests whose body may be empty.
func decodeOptionalJson(r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJsonBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return NewBadRequestError()
}

func pathId(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewNotFoundError()
	}
	return id, nil
}

func parseIds(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, NewInvalidInputError(fmt.Sprintf("invalid id %q", part))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseFilter reads the category, ids, owner, order and limit query
// parameters.
// owner only accepts "me".
func parseFilter(r *http.Request, userId string) (database.ListFilter, error) {
	q := r.URL.Query()
	var f database.ListFilter

	var err error
	if f.CategoryIds, err = parseIds(q.Get("category")); err != nil {
		return f, err
	}
	if f.Ids, err = parseIds(q.Get("ids")); err != nil {
		return f, err
	}
	// An explicit empty id list matches nothing.
	if q.Has("ids") && len(f.Ids) == 0 {
		f.Ids = []int64{}
	}

	switch owner := q.Get("owner"); owner {
	case "":
	case "me":
		f.OwnerId = userId
	default:
		return f, NewInvalidInputError("owner must be \"me\"")
	}

	switch order := q.Get("order"); order {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, NewInvalidInputError("order must be \"asc\" or \"desc\"")
	}

	if l := q.Get("limit"); l != "" {
		f.Limit, err = strconv.Atoi(l)
		if err != nil || f.Limit < 0 {
			return f, NewInvalidInputError("invalid limit")
		}
	}

	return f, nil
}

func filterKey(prefix string, f database.ListFilter) string {
	ints := func(ids []int64) string {
		if ids == nil {
			return "-"
		}
		sorted := append([]int64(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		parts := make([]string, len(sorted))
		for i, id := range sorted {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%s:c=%s:i=%s:o=%s:l=%d:a=%t", prefix, ints(f.CategoryIds), ints(f.Ids), f.OwnerId, f.Limit, f.Ascending)
}

// cachedList runs load through the list cache when one is configured.
func cachedList[T any](ctx context.Context, c *cache.ListCache, key string, tags []string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	return cache.Fetch(ctx, c, key, tags, load)
}

// invalidate drops the cached lists reading topic before the response goes
// out, so the caller's next read sees its own write. Remote writers still
// reach the cache through the hub watcher.
func (s *DiaYouthApp) invalidate(ctx context.Context, topic string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, topic); err != nil {
		s.log.WithError(err).WithField("topic", topic).Error("cache invalidation failed")
	}
}

// publish tells subscribers that a row of topic changed.
func (s *DiaYouthApp) publish(ctx context.Context, topic string, t feed.ChangeType, recordId int64) {
	s.invalidate(ctx, topic)
	if s.hub == nil {
		return
	}
	actor, _ := UserId(ctx)
	if !s.hub.Publish(feed.Change{Topic: topic, Type: t, RecordId: recordId, ActorId: actor, Source: "api"}) {
		s.log.WithField("topic", topic).Warn("change not published, hub is closed")
	}
}

func (s *DiaYouthApp) publicURL(bucket, path string) string {
	if path == "" || s.storage == nil {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return s.storage.PublicURL(bucket, path)
}

func (s *DiaYouthApp) toProfile(p database.Profile) types.Profile {
	return types.Profile{
		Id:                        p.Id,
		Username:                  p.Username,
		AvatarURL:                 s.publicURL(s.avatarBucket, p.AvatarPath),
		PreferenceEventCategoryId: p.PreferenceEventCategoryId,
		UpdatedAt:                 p.UpdatedAt,
	}
}

func (s *DiaYouthApp) toEvent(e database.Event) types.Event {
	return types.Event{
		Id:       e.Id,
		Category: types.Category{Id: e.CategoryId, Name: e.CategoryName, Color: e.CategoryColor},
		Owner: types.Owner{
			Id:        e.UserId,
			Username:  e.OwnerUsername,
			AvatarURL: s.publicURL(s.avatarBucket, e.OwnerAvatarPath),
		},
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		Date:        e.Date.Format(dateLayout),
		StartTime:   e.StartTime,
		PhotoURL:    s.publicURL(s.photoBucket, e.PhotoPath),
		LikeCount:   e.LikeCount,
		JoinCount:   e.JoinCount,
		CreatedAt:   e.CreatedAt,
	}
}

// toQuestion hides the owner of anonymous questions from everyone but the
// owner.
func (s *DiaYouthApp) toQuestion(q database.Question, userId string) types.Question {
	out := types.Question{
		Id:           q.Id,
		Category:     types.Category{Id: q.CategoryId, Name: q.CategoryName, Color: q.CategoryColor},
		QuestionText: q.QuestionText,
		Anonymous:    q.Anonymous,
		AiAnswer:     q.AiAnswer,
		LikeCount:    q.LikeCount,
		SaveCount:    q.SaveCount,
		AnswerCount:  q.AnswerCount,
		CreatedAt:    q.CreatedAt,
	}
	if !q.Anonymous || q.UserId == userId {
		out.Owner = &types.Owner{Id: q.UserId, Username: q.OwnerUsername}
	}
	return out
}

func (s *DiaYouthApp) toAnswer(a database.Answer) types.Answer {
	return types.Answer{
		Id:         a.Id,
		QuestionId: a.QuestionId,
		Author: types.Owner{
			Id:        a.UserId,
			Username:  a.AuthorUsername,
			AvatarURL: s.publicURL(s.avatarBucket, a.AuthorAvatarPath),
		},
		AnswerText: a.AnswerText,
		CreatedAt:  a.CreatedAt,
	}
}

func (s *DiaYouthApp) toQuote(q database.Quote) types.Quote {
	return types.Quote{
		Id:        q.Id,
		Owner:     types.Owner{Id: q.UserId, Username: q.OwnerUsername},
		Quote:     q.Quote,
		LikeCount: q.LikeCount,
		CreatedAt: q.CreatedAt,
	}
}

func categories(in []database.Category) []types.Category {
	out := make([]types.Category, 0, len(in))
	for _, c := range in {
		out = append(out, types.Category{Id: c.Id, Name: c.Name, Color: c.Color})
	}
	return out
}

func (s *DiaYouthApp) eventCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := cachedList(r.Context(), s.cache, "event_categories", nil, s.db.ListEventCategories)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJson(w, http.StatusOK, categories(cats))
}

func (s *DiaYouthApp) questionCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := cachedList(r.Context(), s.cache, "question_categories", nil, s.db.ListQuestionCategories)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJson(w, http.StatusOK, categories(cats))
}

func (s *DiaYouthApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, r, NewServiceUnavailableError(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func requireUser(r *http.Request) (string, error) {
	userId, ok := UserId(r.Context())
	if !ok {
		return "", NewUnauthorizedError()
	}
	return userId, nil
}

var errStorageDisabled = errors.New("object storage is not configured")

// matchesNothing reports a filter with an explicitly empty id list, such as
// the liked tab of a user without likes.
func matchesNothing(f database.ListFilter) bool {
	return f.Ids != nil && len(f.Ids) == 0
}
