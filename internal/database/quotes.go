package database

import (
	"context"
	"fmt"
)

const quoteColumns = `q.id, q.user_id, q.quote, q.created_at,
	p.username AS owner_username,
	(SELECT count(*) FROM quote_like l WHERE l.quote_id = q.id) AS like_count`

func (db *PgDiaYouthRepository) ListQuotes(ctx context.Context, filter ListFilter) ([]Quote, error) {
	where, args := whereClause(filter, "q", false)
	query := fmt.Sprintf("SELECT %s FROM quotes q JOIN profiles p ON p.id = q.user_id %s %s%s",
		quoteColumns, where, orderClause("q", "created_at", filter.Ascending), limitClause(filter.Limit))

	quotes := []Quote{}
	if err := db.conn.SelectContext(ctx, &quotes, query, args...); err != nil {
		return nil, fmt.Errorf("list quotes: %w", mapError(err))
	}
	return quotes, nil
}

func (db *PgDiaYouthRepository) CreateQuote(ctx context.Context, params CreateQuoteParams) (Quote, error) {
	var q Quote
	err := db.conn.GetContext(ctx, &q,
		fmt.Sprintf("WITH q AS (INSERT INTO quotes (user_id, quote) VALUES ($1, $2) RETURNING *) "+
			"SELECT %s FROM q JOIN profiles p ON p.id = q.user_id", quoteColumns),
		params.UserId,
		params.Quote,
	)
	return q, mapError(err)
}

func (db *PgDiaYouthRepository) DeleteQuote(ctx context.Context, id int64, userId string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM quotes WHERE id = $1 AND user_id = $2", id, userId)
	if err != nil {
		return mapError(err)
	}
	return requireRows(res)
}
