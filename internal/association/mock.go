package association

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Exists(ctx context.Context, key Key) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
func (m *MockStore) Insert(ctx context.Context, key Key) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
func (m *MockStore) Delete(ctx context.Context, key Key) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
func (m *MockStore) ListTargets(ctx context.Context, actorId string, kind Kind) ([]int64, error) {
	args := m.Called(ctx, actorId, kind)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) Count(ctx context.Context, kind Kind, targetId int64) (int, error) {
	args := m.Called(ctx, kind, targetId)
	return args.Int(0), args.Error(1)
}
