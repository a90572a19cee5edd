package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/types"
)

const maxTextLength = 2000

var questionTags = []string{"questions", "question_like", "question_save", "question_answers", "profiles"}

type QuestionRequest struct {
	CategoryId   int64  `json:"category_id"`
	QuestionText string `json:"question_text"`
	Anonymous    bool   `json:"anonymous"`
}

type UpdateQuestionRequest struct {
	QuestionText string `json:"question_text"`
}

type AnswerRequest struct {
	AnswerText string `json:"answer_text"`
}

func validText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", NewInvalidInputError(field + " is required")
	}
	if len(s) > maxTextLength {
		return "", NewInvalidInputError(field + " is too long")
	}
	return s, nil
}

func (s *DiaYouthApp) listQuestions(w http.ResponseWriter, r *http.Request) {
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
		s.writeJson(w, http.StatusOK, []types.Question{})
		return
	}

	questions, err := cachedList(r.Context(), s.cache, filterKey("questions", filter), questionTags,
		func(ctx context.Context) ([]database.Question, error) { return s.db.ListQuestions(ctx, filter) })
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]types.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, s.toQuestion(q, userId))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *DiaYouthApp) getQuestion(w http.ResponseWriter, r *http.Request) {
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

	q, err := s.db.GetQuestion(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.toQuestion(q, userId))
}

func (s *DiaYouthApp) createQuestion(w http.ResponseWriter, r *http.Request) {
	userId, err := requireUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req QuestionRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.CategoryId <= 0 {
		s.fail(w, r, NewInvalidInputError("category_id is required"))
		return
	}
	text, err := validText("question_text", req.QuestionText)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.db.CreateQuestion(r.Context(), database.CreateQuestionParams{
		UserId:       userId,
		CategoryId:   req.CategoryId,
		QuestionText: text,
		Anonymous:    req.Anonymous,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "questions", feed.Insert, q.Id)
	s.writeJson(w, http.StatusCreated, s.toQuestion(q, userId))
}

func (s *DiaYouthApp) updateQuestion(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateQuestionRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	text, err := validText("question_text", req.QuestionText)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.db.UpdateQuestion(r.Context(), database.UpdateQuestionParams{Id: id, UserId: userId, QuestionText: text})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "questions", feed.Update, q.Id)
	s.writeJson(w, http.StatusOK, s.toQuestion(q, userId))
}

func (s *DiaYouthApp) deleteQuestion(w http.ResponseWriter, r *http.Request) {
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

	if err := s.db.DeleteQuestion(r.Context(), id, userId); err != nil {
		s.fail(w, r, err)
		return
	}

	s.forgetTarget(id, association.QuestionLike, association.QuestionSave)
	s.publish(r.Context(), "questions", feed.Delete, id)
	s.writeJson(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *DiaYouthApp) listAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	answers, err := s.db.ListAnswers(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]types.Answer, 0, len(answers))
	for _, a := range answers {
		out = append(out, s.toAnswer(a))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *DiaYouthApp) createAnswer(w http.ResponseWriter, r *http.Request) {
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

	var req AnswerRequest
	if err := decodeJson(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	text, err := validText("answer_text", req.AnswerText)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	a, err := s.db.CreateAnswer(r.Context(), database.CreateAnswerParams{QuestionId: id, UserId: userId, AnswerText: text})
	if err != nil {
		// The question is the only reference a client can get wrong.
		if errorFor(err).StatusCode == http.StatusBadRequest {
			s.fail(w, r, NewNotFoundError())
			return
		}
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), "question_answers", feed.Insert, a.Id)
	s.writeJson(w, http.StatusCreated, s.toAnswer(a))
}
