package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const eventColumns = `e.id, e.user_id, e.category_id, e.name, e.description, e.location, e.date, e.start_time,
	e.photo_path, e.created_at,
	c.name AS category_name,
	c.color AS category_color,
	p.username AS owner_username,
	p.avatar_path AS owner_avatar_path,
	(SELECT count(*) FROM event_like l WHERE l.event_id = e.id) AS like_count,
	(SELECT count(*) FROM event_join j WHERE j.event_id = e.id) AS join_count`

const eventFrom = `FROM events e
	JOIN event_categories c ON c.id = e.category_id
	JOIN profiles p ON p.id = e.user_id`

// whereClause renders filter as a WHERE clause over alias. Arguments are
// numbered from 1.
func whereClause(filter ListFilter, alias string, withCategory bool) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if withCategory && len(filter.CategoryIds) > 0 {
		args = append(args, pq.Array(filter.CategoryIds))
		conds = append(conds, fmt.Sprintf("%s.category_id = ANY($%d)", alias, len(args)))
	}
	if len(filter.Ids) > 0 {
		args = append(args, pq.Array(filter.Ids))
		conds = append(conds, fmt.Sprintf("%s.id = ANY($%d)", alias, len(args)))
	}
	if filter.OwnerId != "" {
		args = append(args, filter.OwnerId)
		conds = append(conds, fmt.Sprintf("%s.user_id = $%d", alias, len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// orderClause sorts by column with id as the tie breaker.
func orderClause(alias, column string, ascending bool) string {
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %[1]s.%[2]s %[3]s, %[1]s.id %[3]s", alias, column, dir)
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgDiaYouthRepository) ListEvents(ctx context.Context, filter ListFilter) ([]Event, error) {
	where, args := whereClause(filter, "e", true)
	query := fmt.Sprintf("SELECT %s %s %s %s%s",
		eventColumns, eventFrom, where, orderClause("e", "date", filter.Ascending), limitClause(filter.Limit))

	events := []Event{}
	if err := db.conn.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", mapError(err))
	}
	return events, nil
}

// PopularEvents returns the newest events in the user's preferred category,
// or the newest events overall when the user has no preference.
func (db *PgDiaYouthRepository) PopularEvents(ctx context.Context, userId string, limit int) ([]Event, error) {
	profile, err := db.GetProfile(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	filter := ListFilter{Limit: limit}
	if profile.PreferenceEventCategoryId != nil {
		filter.CategoryIds = []int64{*profile.PreferenceEventCategoryId}
	}

	return db.ListEvents(ctx, filter)
}

func (db *PgDiaYouthRepository) GetEvent(ctx context.Context, id int64) (Event, error) {
	var e Event
	err := db.conn.GetContext(ctx, &e,
		fmt.Sprintf("SELECT %s %s WHERE e.id = $1", eventColumns, eventFrom),
		id,
	)
	return e, mapError(err)
}

func (db *PgDiaYouthRepository) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	var id int64
	err := db.conn.QueryRowxContext(ctx,
		"INSERT INTO events (user_id, category_id, name, description, location, date, start_time, photo_path) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id",
		params.UserId,
		params.CategoryId,
		params.Name,
		params.Description,
		params.Location,
		params.Date,
		params.StartTime,
		params.PhotoPath,
	).Scan(&id)
	if err != nil {
		return Event{}, mapError(err)
	}

	return db.GetEvent(ctx, id)
}

func (db *PgDiaYouthRepository) UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE events SET category_id = $3, name = $4, description = $5, location = $6, date = $7, "+
			"start_time = $8, photo_path = $9 WHERE id = $1 AND user_id = $2",
		params.Id,
		params.UserId,
		params.CategoryId,
		params.Name,
		params.Description,
		params.Location,
		params.Date,
		params.StartTime,
		params.PhotoPath,
	)
	if err != nil {
		return Event{}, mapError(err)
	}
	if err := requireRows(res); err != nil {
		return Event{}, err
	}

	return db.GetEvent(ctx, params.Id)
}

func (db *PgDiaYouthRepository) DeleteEvent(ctx context.Context, id int64, userId string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM events WHERE id = $1 AND user_id = $2", id, userId)
	if err != nil {
		return mapError(err)
	}
	return requireRows(res)
}
