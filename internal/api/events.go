package api

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/types"
)

const (
	dateLayout         = "2006-01-02"
	popularEventsLimit = 3
)

var startTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// eventTags are the tables an event row is read from.
var eventTags = []string{"events", "event_like", "event_join", "profiles"}

type EventRequest struct {
	CategoryId  int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	PhotoPath   string `json:"photo_path"`
}

func (req EventRequest) params(userId string) (database.CreateEventParams, error) {
	if req.CategoryId <= 0 {
		return database.CreateEventParams{}, NewInvalidInputError("category_id is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return database.CreateEventParams{}, NewInvalidInputError("name is required")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return database.CreateEventParams{}, NewInvalidInputError("date must be YYYY-MM-DD")
	}
	if req.StartTime != "" && !startTimePattern.MatchString(req.StartTime) {
		return database.CreateEventParams{}, NewInvalidInputError("start_time must be HH:MM")
	}

	return database.CreateEventParams{
		UserId:      userId,
		CategoryId:  req.CategoryId,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Location:    req.Location,
		Date:        date,
		StartTime:   req.StartTime,
		PhotoPath:   req.PhotoPath,
	}, nil
}

func (s *DiaYouthApp) events(in []database.Event) []types.Event {
	out := make([]types.Event, 0, len(in))
	for _, e := range in {
		out = append(out, s.toEvent(e))
	}
	return out
}

func (s *DiaYouthApp) listEvents(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	filter, err := parseFilter(r, userId)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if matchesNothing(filter) {
		s.writeJson(w, http.StatusOK, []types.Event{})
		return
	}

	events, err := cachedList(r.Context(), s.cache, filterKey("events", filter), eventTags,
		func(ctx context.Context) ([]database.Event, error) { return s.db.ListEvents(ctx, filter) })
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.events(events))
}

func (s *DiaYouthApp) popularEvents(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	events, err := cachedList(r.Context(), s.cache, "events:popular:"+userId, eventTags,
		func(ctx context.Context) ([]database.Event, error) {
			return s.db.PopularEvents(ctx, userId, popularEventsLimit)
		})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.events(events))
}

func (s *DiaYouthApp) getEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	event, err := s.db.GetEvent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.toEvent(event))
}

func (s *DiaYouthApp) createEvent(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req EventRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	params, err := req.params(userId)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	event, err := s.db.CreateEvent(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "events", feed.Insert, event.Id)
	s.writeJson(w, http.StatusCreated, s.toEvent(event))
}

func (s *DiaYouthApp) updateEvent(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathId(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req EventRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	params, err := req.params(userId)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	event, err := s.db.UpdateEvent(r.Context(), database.UpdateEventParams{
		Id:                id,
		UserId:            userId,
		CreateEventParams: params,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "events", feed.Update, event.Id)
	s.writeJson(w, http.StatusOK, s.toEvent(event))
}

func (s *DiaYouthApp) deleteEvent(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathId(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.db.DeleteEvent(r.Context(), id, userId); err != nil {
		s.fail(w, r, err)
		return
	}

	// Cascaded association rows are gone too.
	s.forgetTarget(id, association.EventLike, association.EventJoin)
	s.publish(r.Context(), "events", feed.Delete, id)
	s.writeJson(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *DiaYouthApp) forgetTarget(id int64, kinds ...association.Kind) {
	if s.membership == nil {
		return
	}
	for _, k := range kinds {
		s.membership.ForgetTarget(k, id)
	}
}
