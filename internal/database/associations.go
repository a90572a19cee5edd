package database

import (
	"context"
	"fmt"

	"github.com/npezzotti/diayouth/internal/association"
)

// AssociationStore keeps association rows in the kind's table. The table's
// (user_id, target) primary key makes Insert and Delete safe under
// concurrent duplicate calls.
type AssociationStore struct {
	db *PgDiaYouthRepository
}

func (db *PgDiaYouthRepository) Associations() *AssociationStore {
	return &AssociationStore{db: db}
}

func (s *AssociationStore) Exists(ctx context.Context, key association.Key) (bool, error) {
	var exists bool
	err := s.db.conn.GetContext(ctx, &exists,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1 AND %s = $2)", key.Kind.Table(), key.Kind.Column()),
		key.ActorId,
		key.TargetId,
	)
	return exists, err
}

func (s *AssociationStore) Insert(ctx context.Context, key association.Key) (bool, error) {
	res, err := s.db.conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (user_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING", key.Kind.Table(), key.Kind.Column()),
		key.ActorId,
		key.TargetId,
	)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return false, fmt.Errorf("%w: %s %d", association.ErrTargetNotFound, key.Kind.TargetTable(), key.TargetId)
		}
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *AssociationStore) Delete(ctx context.Context, key association.Key) (bool, error) {
	res, err := s.db.conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE user_id = $1 AND %s = $2", key.Kind.Table(), key.Kind.Column()),
		key.ActorId,
		key.TargetId,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *AssociationStore) ListTargets(ctx context.Context, actorId string, kind association.Kind) ([]int64, error) {
	ids := []int64{}
	err := s.db.conn.SelectContext(ctx, &ids,
		fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY %s", kind.Column(), kind.Table(), kind.Column()),
		actorId,
	)
	return ids, err
}

func (s *AssociationStore) Count(ctx context.Context, kind association.Kind, targetId int64) (int, error) {
	var n int
	err := s.db.conn.GetContext(ctx, &n,
		fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1", kind.Table(), kind.Column()),
		targetId,
	)
	return n, err
}
