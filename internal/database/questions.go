package database

import (
	"context"
	"fmt"
)

const questionColumns = `q.id, q.user_id, q.category_id, q.question_text, q.anonymous, q.ai_answer, q.created_at,
	c.name AS category_name,
	c.color AS category_color,
	p.username AS owner_username,
	(SELECT count(*) FROM question_like l WHERE l.question_id = q.id) AS like_count,
	(SELECT count(*) FROM question_save s WHERE s.question_id = q.id) AS save_count,
	(SELECT count(*) FROM question_answers a WHERE a.question_id = q.id) AS answer_count`

const questionFrom = `FROM questions q
	JOIN question_categories c ON c.id = q.category_id
	JOIN profiles p ON p.id = q.user_id`

const answerColumns = `a.id, a.question_id, a.user_id, a.answer_text, a.created_at,
	p.username AS author_username,
	p.avatar_path AS author_avatar_path`

func (db *PgDiaYouthRepository) ListQuestions(ctx context.Context, filter ListFilter) ([]Question, error) {
	where, args := whereClause(filter, "q", true)
	query := fmt.Sprintf("SELECT %s %s %s %s%s",
		questionColumns, questionFrom, where, orderClause("q", "created_at", filter.Ascending), limitClause(filter.Limit))

	questions := []Question{}
	if err := db.conn.SelectContext(ctx, &questions, query, args...); err != nil {
		return nil, fmt.Errorf("list questions: %w", mapError(err))
	}
	return questions, nil
}

func (db *PgDiaYouthRepository) GetQuestion(ctx context.Context, id int64) (Question, error) {
	var q Question
	err := db.conn.GetContext(ctx, &q,
		fmt.Sprintf("SELECT %s %s WHERE q.id = $1", questionColumns, questionFrom),
		id,
	)
	return q, mapError(err)
}

func (db *PgDiaYouthRepository) CreateQuestion(ctx context.Context, params CreateQuestionParams) (Question, error) {
	var id int64
	err := db.conn.QueryRowxContext(ctx,
		"INSERT INTO questions (user_id, category_id, question_text, anonymous) VALUES ($1, $2, $3, $4) RETURNING id",
		params.UserId,
		params.CategoryId,
		params.QuestionText,
		params.Anonymous,
	).Scan(&id)
	if err != nil {
		return Question{}, mapError(err)
	}

	return db.GetQuestion(ctx, id)
}

func (db *PgDiaYouthRepository) UpdateQuestion(ctx context.Context, params UpdateQuestionParams) (Question, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE questions SET question_text = $3 WHERE id = $1 AND user_id = $2",
		params.Id,
		params.UserId,
		params.QuestionText,
	)
	if err != nil {
		return Question{}, mapError(err)
	}
	if err := requireRows(res); err != nil {
		return Question{}, err
	}

	return db.GetQuestion(ctx, params.Id)
}

func (db *PgDiaYouthRepository) DeleteQuestion(ctx context.Context, id int64, userId string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM questions WHERE id = $1 AND user_id = $2", id, userId)
	if err != nil {
		return mapError(err)
	}
	return requireRows(res)
}

func (db *PgDiaYouthRepository) ListAnswers(ctx context.Context, questionId int64) ([]Answer, error) {
	answers := []Answer{}
	err := db.conn.SelectContext(ctx, &answers,
		fmt.Sprintf("SELECT %s FROM question_answers a JOIN profiles p ON p.id = a.user_id "+
			"WHERE a.question_id = $1 ORDER BY a.created_at, a.id", answerColumns),
		questionId,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", mapError(err))
	}
	return answers, nil
}

func (db *PgDiaYouthRepository) CreateAnswer(ctx context.Context, params CreateAnswerParams) (Answer, error) {
	var a Answer
	err := db.conn.GetContext(ctx, &a,
		fmt.Sprintf("WITH a AS (INSERT INTO question_answers (question_id, user_id, answer_text) "+
			"VALUES ($1, $2, $3) RETURNING *) SELECT %s FROM a JOIN profiles p ON p.id = a.user_id", answerColumns),
		params.QuestionId,
		params.UserId,
		params.AnswerText,
	)
	return a, mapError(err)
}
