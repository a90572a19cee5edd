package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	insertAccountQuery = "INSERT INTO accounts (id, email, password_hash, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $4) RETURNING id, email, password_hash, created_at, updated_at"
	upsertProfileQuery = "INSERT INTO profiles (id, username, preference_event_category_id, updated_at) " +
		"VALUES ($1, $2, $3, $4) " +
		"ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, " +
		"preference_event_category_id = EXCLUDED.preference_event_category_id, updated_at = EXCLUDED.updated_at " +
		"RETURNING id, username, avatar_path, preference_event_category_id, updated_at"
)

func (db *PgDiaYouthRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	var a Account
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		if err := tx.GetContext(ctx, &a, insertAccountQuery,
			params.Id,
			params.Email,
			params.PasswordHash,
			now,
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, upsertProfileQuery,
			params.Id,
			params.Profile.Username,
			params.Profile.PreferenceEventCategoryId,
			now,
		)
		return err
	})

	return a, mapError(err)
}

func (db *PgDiaYouthRepository) GetAccountById(ctx context.Context, id string) (Account, error) {
	var a Account
	err := db.conn.GetContext(ctx, &a,
		"SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)
	return a, mapError(err)
}

func (db *PgDiaYouthRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := db.conn.GetContext(ctx, &a,
		"SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)
	return a, mapError(err)
}

func (db *PgDiaYouthRepository) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1",
		id,
		passwordHash,
		time.Now().UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	return requireRows(res)
}

func (db *PgDiaYouthRepository) UpsertProfile(ctx context.Context, params UpsertProfileParams) (Profile, error) {
	var p Profile
	err := db.conn.GetContext(ctx, &p, upsertProfileQuery,
		params.Id,
		params.Username,
		params.PreferenceEventCategoryId,
		time.Now().UTC(),
	)
	return p, mapError(err)
}

func (db *PgDiaYouthRepository) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := db.conn.GetContext(ctx, &p,
		"SELECT id, username, avatar_path, preference_event_category_id, updated_at FROM profiles WHERE id = $1",
		id,
	)
	return p, mapError(err)
}

func (db *PgDiaYouthRepository) SetProfileAvatar(ctx context.Context, id, avatarPath string) (Profile, error) {
	var p Profile
	err := db.conn.GetContext(ctx, &p,
		"UPDATE profiles SET avatar_path = $2, updated_at = $3 WHERE id = $1 "+
			"RETURNING id, username, avatar_path, preference_event_category_id, updated_at",
		id,
		avatarPath,
		time.Now().UTC(),
	)
	return p, mapError(err)
}

func (db *PgDiaYouthRepository) ListEventCategories(ctx context.Context) ([]Category, error) {
	categories := []Category{}
	err := db.conn.SelectContext(ctx, &categories, "SELECT id, name, color FROM event_categories ORDER BY id")
	return categories, mapError(err)
}

func (db *PgDiaYouthRepository) ListQuestionCategories(ctx context.Context) ([]Category, error) {
	categories := []Category{}
	err := db.conn.SelectContext(ctx, &categories, "SELECT id, name, color FROM question_categories ORDER BY id")
	return categories, mapError(err)
}
