package association

import (
	"context"
	"sort"
	"sync"
)

// Store persists association rows. Implementations must enforce at most one
// row per key: Insert reports false instead of failing when the row exists,
// Delete reports false when there was nothing to delete.
type Store interface {
	Exists(ctx context.Context, key Key) (bool, error)
	Insert(ctx context.Context, key Key) (bool, error)
	Delete(ctx context.Context, key Key) (bool, error)
	ListTargets(ctx context.Context, actorId string, kind Kind) ([]int64, error)
	Count(ctx context.Context, kind Kind, targetId int64) (int, error)
}

type pair struct {
	actor  string
	target int64
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[Kind]map[pair]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[Kind]map[pair]struct{})}
}

func (s *MemoryStore) Exists(ctx context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.rows[key.Kind][pair{key.ActorId, key.TargetId}]
	return ok, ctx.Err()
}

func (s *MemoryStore) Insert(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.rows[key.Kind]
	if !ok {
		rows = make(map[pair]struct{})
		s.rows[key.Kind] = rows
	}

	p := pair{key.ActorId, key.TargetId}
	if _, exists := rows[p]; exists {
		return false, nil
	}
	rows[p] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := pair{key.ActorId, key.TargetId}
	if _, exists := s.rows[key.Kind][p]; !exists {
		return false, nil
	}
	delete(s.rows[key.Kind], p)
	return true, nil
}

func (s *MemoryStore) ListTargets(ctx context.Context, actorId string, kind Kind) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []int64{}
	for p := range s.rows[kind] {
		if p.actor == actorId {
			ids = append(ids, p.target)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, ctx.Err()
}

func (s *MemoryStore) Count(ctx context.Context, kind Kind, targetId int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for p := range s.rows[kind] {
		if p.target == targetId {
			n++
		}
	}
	return n, ctx.Err()
}

// Len returns the number of rows of kind.
func (s *MemoryStore) Len(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[kind])
}
