package api

import (
	"context"
	"net/http"

	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/types"
)

var quoteTags = []string{"quotes", "quote_like", "profiles"}

type QuoteRequest struct {
	Quote string `json:"quote"`
}

func (s *DiaYouthApp) listQuotes(w http.ResponseWriter, r *http.Request) {
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
		s.writeJson(w, http.StatusOK, []types.Quote{})
		return
	}
	filter.CategoryIds = nil

	quotes, err := cachedList(r.Context(), s.cache, filterKey("quotes", filter), quoteTags,
		func(ctx context.Context) ([]database.Quote, error) { return s.db.ListQuotes(ctx, filter) })
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]types.Quote, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, s.toQuote(q))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *DiaYouthApp) createQuote(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req QuoteRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	text, err := validText("quote", req.Quote)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.db.CreateQuote(r.Context(), database.CreateQuoteParams{UserId: userId, Quote: text})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "quotes", feed.Insert, q.Id)
	s.writeJson(w, http.StatusCreated, s.toQuote(q))
}

func (s *DiaYouthApp) deleteQuote(w http.ResponseWriter, r *http.Request) {
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

	if err := s.db.DeleteQuote(r.Context(), id, userId); err != nil {
		s.fail(w, r, err)
		return
	}

	s.forgetTarget(id, association.QuoteLike)
	s.publish(r.Context(), "quotes", feed.Delete, id)
	s.writeJson(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
