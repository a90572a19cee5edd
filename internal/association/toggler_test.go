package association

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/diayouth/internal/retry"
	"github.com/npezzotti/diayouth/internal/stats"
	"github.com/npezzotti/diayouth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const actorA = "7f0c4a52-9d59-4b43-9a3b-0ad3c1f7e001"

// barrierStore holds every existence check until n callers have read, so
// all of them observe the same state before anyone mutates.
type barrierStore struct {
	*MemoryStore
	arrive sync.WaitGroup
}

func newBarrierStore(n int) *barrierStore {
	s := &barrierStore{MemoryStore: NewMemoryStore()}
	s.arrive.Add(n)
	return s
}

func (s *barrierStore) Exists(ctx context.Context, key Key) (bool, error) {
	exists, err := s.MemoryStore.Exists(ctx, key)
	s.arrive.Done()
	s.arrive.Wait()
	return exists, err
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxRetries: 2, InitialBackoff: time.Millisecond, Multiplier: 1}
}

func newTestToggler(t *testing.T, store Store, opts ...Option) *Toggler {
	opts = append([]Option{WithReadRetry(fastRetry())}, opts...)
	return NewToggler(store, testutil.TestLogger(t), opts...)
}

func TestToggle_Symmetry(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			store := NewMemoryStore()
			tg := newTestToggler(t, store)
			key := Key{ActorId: actorA, TargetId: 42, Kind: kind}

			res, err := tg.Toggle(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, Present, res.State, "expected toggle(absent) to be present")
			assert.True(t, res.Changed)

			res, err = tg.Toggle(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, Absent, res.State, "expected toggle(present) to be absent")
			assert.True(t, res.Changed)
			assert.Equal(t, 0, store.Len(kind))
		})
	}
}

func TestToggle_Idempotence(t *testing.T) {
	tcases := []struct {
		name    string
		initial bool
	}{
		{name: "starting absent", initial: false},
		{name: "starting present", initial: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore()
			key := Key{ActorId: actorA, TargetId: 7, Kind: QuestionLike}
			if tc.initial {
				_, err := store.Insert(context.Background(), key)
				require.NoError(t, err)
			}
			tg := newTestToggler(t, store)

			_, err := tg.Toggle(context.Background(), key)
			require.NoError(t, err)
			res, err := tg.Toggle(context.Background(), key)
			require.NoError(t, err)

			assert.Equal(t, StateOf(tc.initial), res.State, "expected two toggles to settle in the initial state")
			exists, err := store.Exists(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, tc.initial, exists)
		})
	}
}

func TestToggle_ConcurrentCallsLeaveAtMostOneRow(t *testing.T) {
	for _, n := range []int{2, 3, 10, 50} {
		store := NewMemoryStore()
		tg := newTestToggler(t, store)
		key := Key{ActorId: actorA, TargetId: 1, Kind: QuoteLike}

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tg.Toggle(context.Background(), key)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, store.Len(QuoteLike), 1, "expected at most one row after %d concurrent toggles", n)
	}
}

func TestToggle_EventJoinScenario(t *testing.T) {
	ctx := context.Background()
	key := Key{ActorId: actorA, TargetId: 100, Kind: EventJoin}

	t.Run("join then leave", func(t *testing.T) {
		store := NewMemoryStore()
		tg := newTestToggler(t, store)

		res, err := tg.Toggle(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, Present, res.State, "expected actor to be joined")
		n, err := store.Count(ctx, EventJoin, key.TargetId)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "expected one row")

		res, err = tg.Toggle(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, Absent, res.State, "expected actor to not be joined")
		n, err = store.Count(ctx, EventJoin, key.TargetId)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "expected zero rows")
	})

	t.Run("two devices join concurrently", func(t *testing.T) {
		store := newBarrierStore(2)
		tg := newTestToggler(t, store)

		results := make([]Result, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := tg.Toggle(ctx, key)
				assert.NoError(t, err)
				results[i] = res
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, store.Len(EventJoin), "expected exactly one row")
		assert.Equal(t, Present, results[0].State)
		assert.Equal(t, Present, results[1].State)
		assert.True(t, results[0].Changed != results[1].Changed, "expected exactly one insert to take effect")
	})

	t.Run("two devices toggle from observed state", func(t *testing.T) {
		store := NewMemoryStore()
		tg := newTestToggler(t, store)

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := tg.ToggleFrom(ctx, key, Absent)
				assert.NoError(t, err)
				assert.Equal(t, Present, res.State)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, store.Len(EventJoin), "expected exactly one row")
	})
}

// Device A checks and inserts before device B checks. Both displayed the row as
// absent, so both meant to join.
func TestToggle_TwoDevicesCheckAfterInsert(t *testing.T) {
	key := Key{ActorId: actorA, TargetId: 5, Kind: EventJoin}

	t.Run("store state flip undoes the first join", func(t *testing.T) {
		store := NewMemoryStore()
		tg := newTestToggler(t, store)

		res, err := tg.Toggle(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, Present, res.State)

		res, err = tg.Toggle(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, Absent, res.State)
		assert.Equal(t, 0, store.Len(EventJoin), "Toggle flips what the store holds, not what the device showed")
	})

	t.Run("observed state flip keeps one row", func(t *testing.T) {
		store := NewMemoryStore()
		tg := newTestToggler(t, store)

		res, err := tg.ToggleFrom(context.Background(), key, Absent)
		require.NoError(t, err)
		assert.Equal(t, Present, res.State)
		assert.True(t, res.Changed)

		res, err = tg.ToggleFrom(context.Background(), key, Absent)
		require.NoError(t, err)
		assert.Equal(t, Present, res.State)
		assert.False(t, res.Changed, "expected the second join to be a no-op")
		assert.Equal(t, 1, store.Len(EventJoin))
	})
}

func TestSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tg := newTestToggler(t, store)
	key := Key{ActorId: actorA, TargetId: 3, Kind: QuestionSave}

	res, err := tg.Set(ctx, key, Present)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	res, err = tg.Set(ctx, key, Present)
	require.NoError(t, err)
	assert.False(t, res.Changed, "expected second set to be a no-op")
	assert.Equal(t, Present, res.State)

	res, err = tg.Set(ctx, key, Absent)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	res, err = tg.Set(ctx, key, Absent)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, store.Len(QuestionSave))
}

func TestToggle_InvalidKey(t *testing.T) {
	tcases := []struct {
		name        string
		key         Key
		expectedErr error
	}{
		{
			name:        "empty actor",
			key:         Key{ActorId: "", TargetId: 1, Kind: EventLike},
			expectedErr: ErrUnauthenticated,
		},
		{
			name:        "unknown kind",
			key:         Key{ActorId: actorA, TargetId: 1, Kind: "event-hate"},
			expectedErr: ErrUnknownKind,
		},
		{
			name:        "invalid target",
			key:         Key{ActorId: actorA, TargetId: 0, Kind: EventLike},
			expectedErr: ErrInvalidTarget,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			store := &MockStore{}
			defer store.AssertExpectations(t)
			tg := newTestToggler(t, store)

			_, err := tg.Toggle(context.Background(), tc.key)
			assert.ErrorIs(t, err, tc.expectedErr)
			_, err = tg.Set(context.Background(), tc.key, Present)
			assert.ErrorIs(t, err, tc.expectedErr)
			_, err = tg.ToggleFrom(context.Background(), tc.key, Absent)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestToggle_StoreErrors(t *testing.T) {
	key := Key{ActorId: actorA, TargetId: 9, Kind: EventLike}
	errDown := errors.New("connection refused")

	t.Run("existence check is retried", func(t *testing.T) {
		store := &MockStore{}
		defer store.AssertExpectations(t)
		store.On("Exists", mock.Anything, key).Return(false, errDown).Once()
		store.On("Exists", mock.Anything, key).Return(false, nil).Once()
		store.On("Insert", mock.Anything, key).Return(true, nil).Once()

		res, err := newTestToggler(t, store).Toggle(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, Present, res.State)
	})

	t.Run("existence check failure aborts without mutation", func(t *testing.T) {
		store := &MockStore{}
		defer store.AssertExpectations(t)
		store.On("Exists", mock.Anything, key).Return(false, errDown).Times(3)

		_, err := newTestToggler(t, store).Toggle(context.Background(), key)
		assert.ErrorIs(t, err, errDown)
		store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("mutation is not retried", func(t *testing.T) {
		store := &MockStore{}
		defer store.AssertExpectations(t)
		store.On("Exists", mock.Anything, key).Return(true, nil).Once()
		store.On("Delete", mock.Anything, key).Return(false, errDown).Once()

		_, err := newTestToggler(t, store).Toggle(context.Background(), key)
		assert.ErrorIs(t, err, errDown)
	})

	t.Run("missing target", func(t *testing.T) {
		store := &MockStore{}
		defer store.AssertExpectations(t)
		store.On("Exists", mock.Anything, key).Return(false, nil).Once()
		store.On("Insert", mock.Anything, key).Return(false, ErrTargetNotFound).Once()

		_, err := newTestToggler(t, store).Toggle(context.Background(), key)
		assert.ErrorIs(t, err, ErrTargetNotFound)
	})
}

func TestToggle_UpdatesMembershipAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	members, err := NewMembership(16)
	require.NoError(t, err)

	var notified []Result
	tg := newTestToggler(t, store,
		WithMembership(members),
		WithNotifier(func(ctx context.Context, res Result) { notified = append(notified, res) }),
	)

	ids, err := tg.Members(ctx, actorA, EventLike)
	require.NoError(t, err)
	assert.Empty(t, ids)

	key := Key{ActorId: actorA, TargetId: 5, Kind: EventLike}
	_, err = tg.Toggle(ctx, key)
	require.NoError(t, err)

	present, loaded := members.Contains(key)
	assert.True(t, loaded, "expected membership set to stay loaded")
	assert.True(t, present, "expected membership set to contain the new target")

	_, err = tg.Set(ctx, key, Present)
	require.NoError(t, err)
	assert.Len(t, notified, 1, "expected no notification for a no-op")

	ids, err = tg.Members(ctx, actorA, EventLike)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
}

func TestToggle_RecordsStats(t *testing.T) {
	st := &stats.MockStatsUpdater{}
	defer st.AssertExpectations(t)
	st.On("RegisterMetric", mock.Anything).Times(3)
	st.On("Incr", metricCreated).Once()
	st.On("Incr", metricNoop).Once()

	tg := newTestToggler(t, NewMemoryStore(), WithStats(st))
	key := Key{ActorId: actorA, TargetId: 5, Kind: EventLike}

	_, err := tg.Set(context.Background(), key, Present)
	require.NoError(t, err)
	_, err = tg.Set(context.Background(), key, Present)
	require.NoError(t, err)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tg := newTestToggler(t, store)

	for _, actor := range []string{"a", "b", "c"} {
		_, err := tg.Set(ctx, Key{ActorId: actor, TargetId: 8, Kind: EventJoin}, Present)
		require.NoError(t, err)
	}

	n, err := tg.Count(ctx, EventJoin, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = tg.Count(ctx, "nope", 8)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
