package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/types"
)

// AssociationNotifier publishes every toggle that changed a row on the topic
// of the association's table.
func AssociationNotifier(hub *feed.Hub) association.Notifier {
	return func(ctx context.Context, res association.Result) {
		t := feed.Insert
		if res.State == association.Absent {
			t = feed.Delete
		}
		hub.Publish(feed.Change{
			Topic:    res.Key.Kind.Table(),
			Type:     t,
			RecordId: res.Key.TargetId,
			ActorId:  res.Key.ActorId,
			Source:   "api",
		})
	}
}

// ToggleRequest optionally carries the state the client last displayed.
type ToggleRequest struct {
	Observed string `json:"observed"`
}

func (s *DiaYouthApp) associationKey(r *http.Request) (association.Key, error) {
	userId, err := requireUser(r)
	if err != nil {
		return association.Key{}, err
	}
	kind, err := association.ParseKind(r.PathValue("kind"))
	if err != nil {
		return association.Key{}, NewNotFoundError()
	}
	target, err := strconv.ParseInt(r.PathValue("target"), 10, 64)
	if err != nil {
		return association.Key{}, NewInvalidInputError("invalid target id")
	}

	return association.Key{ActorId: userId, TargetId: target, Kind: kind}, nil
}

// toggleAssociation flips a like, save or join. Clients should always send
// the state they displayed as "observed": without it the store's current
// state is flipped, so two devices that both showed the row absent can
// undo each other and leave no row.
func (s *DiaYouthApp) toggleAssociation(w http.ResponseWriter, r *http.Request) {
	key, err := s.associationKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req ToggleRequest
	if err := decodeOptionalJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var res association.Result
	if req.Observed != "" {
		observed, perr := association.ParseState(req.Observed)
		if perr != nil {
			s.fail(w, r, NewInvalidInputError("observed must be \"absent\" or \"present\""))
			return
		}
		res, err = s.toggler.ToggleFrom(r.Context(), key, observed)
	} else {
		res, err = s.toggler.Toggle(r.Context(), key)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Changed {
		s.invalidate(r.Context(), key.Kind.Table())
	}

	s.writeJson(w, http.StatusOK, res)
}

// setAssociation makes the row present on PUT and absent on DELETE.
func (s *DiaYouthApp) setAssociation(w http.ResponseWriter, r *http.Request) {
	key, err := s.associationKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	want := association.Present
	if r.Method == http.MethodDelete {
		want = association.Absent
	}

	res, err := s.toggler.Set(r.Context(), key, want)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Changed {
		s.invalidate(r.Context(), key.Kind.Table())
	}

	s.writeJson(w, http.StatusOK, res)
}

func (s *DiaYouthApp) countAssociation(w http.ResponseWriter, r *http.Request) {
	key, err := s.associationKey(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.toggler.Count(r.Context(), key.Kind, key.TargetId)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, types.AssociationCount{Kind: key.Kind.String(), TargetId: key.TargetId, Count: n})
}

func (s *DiaYouthApp) memberships(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	kind, err := association.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.fail(w, r, NewNotFoundError())
		return
	}

	ids, err := s.toggler.Members(r.Context(), userId, kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	s.writeJson(w, http.StatusOK, types.Memberships{Kind: kind.String(), TargetIds: ids})
}
