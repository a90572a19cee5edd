package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/npezzotti/diayouth/internal/association"
	"github.com/tidwall/gjson"
)

// AssociationStore keeps association rows through the REST interface. The
// remote tables carry the same (user_id, target) primary key as the direct
// schema, so a duplicate insert surfaces as ErrDuplicate and maps to a
// no-op.
type AssociationStore struct {
	client *Client
}

func (c *Client) Associations() *AssociationStore {
	return &AssociationStore{client: c}
}

func keyFilter(key association.Key) map[string]string {
	return map[string]string{
		"user_id":         key.ActorId,
		key.Kind.Column(): strconv.FormatInt(key.TargetId, 10),
	}
}

func (s *AssociationStore) Exists(ctx context.Context, key association.Key) (bool, error) {
	n, err := s.client.Count(ctx, key.Kind.Table(), Query{Eq: keyFilter(key)})
	return n > 0, err
}

func (s *AssociationStore) Insert(ctx context.Context, key association.Key) (bool, error) {
	row := map[string]any{
		"user_id":         key.ActorId,
		key.Kind.Column(): key.TargetId,
	}

	err := s.client.Insert(ctx, key.Kind.Table(), row, nil)
	switch {
	case errors.Is(err, ErrDuplicate):
		return false, nil
	case errors.Is(err, ErrMissingReference):
		return false, fmt.Errorf("%w: %s %d", association.ErrTargetNotFound, key.Kind.TargetTable(), key.TargetId)
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *AssociationStore) Delete(ctx context.Context, key association.Key) (bool, error) {
	n, err := s.client.Delete(ctx, key.Kind.Table(), keyFilter(key))
	return n > 0, err
}

func (s *AssociationStore) ListTargets(ctx context.Context, actorId string, kind association.Kind) ([]int64, error) {
	var raw json.RawMessage
	q := Query{
		Columns:   kind.Column(),
		Eq:        map[string]string{"user_id": actorId},
		Order:     kind.Column(),
		Ascending: true,
	}
	if err := s.client.Select(ctx, kind.Table(), q, &raw); err != nil {
		return nil, err
	}

	rows := gjson.ParseBytes(raw).Array()
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id := row.Get(kind.Column()).Int(); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *AssociationStore) Count(ctx context.Context, kind association.Kind, targetId int64) (int, error) {
	return s.client.Count(ctx, kind.Table(), Query{
		Eq: map[string]string{kind.Column(): strconv.FormatInt(targetId, 10)},
	})
}
