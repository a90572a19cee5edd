package feed

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/diayouth/internal/stats"
	"github.com/npezzotti/diayouth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, topics ...string) *Hub {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(3)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	if len(topics) == 0 {
		topics = []string{"events", "event_like"}
	}
	return NewHub(testutil.TestLogger(t), su, topics)
}

func runHub(t *testing.T, h *Hub) {
	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})
}

func receive(t *testing.T, sub *Subscription) (Change, bool) {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		return c, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}, false
	}
}

func TestNewHub(t *testing.T) {
	h := newTestHub(t, "events", "quotes")

	assert.True(t, h.HasTopic("events"))
	assert.True(t, h.HasTopic("quotes"))
	assert.False(t, h.HasTopic("rooms"))
	assert.ElementsMatch(t, []string{"events", "quotes"}, h.Topics())
	assert.NotNil(t, h.subscribeChan)
	assert.NotNil(t, h.publishChan)
	assert.NotNil(t, h.done)
}

func TestHub_Subscribe(t *testing.T) {
	t.Run("unknown topic", func(t *testing.T) {
		h := newTestHub(t)
		runHub(t, h)

		_, err := h.Subscribe(context.Background(), "rooms")
		assert.ErrorIs(t, err, ErrUnknownTopic)
	})

	t.Run("receives published changes", func(t *testing.T) {
		h := newTestHub(t)
		runHub(t, h)

		sub, err := h.Subscribe(context.Background(), "events")
		require.NoError(t, err)
		defer sub.Close()

		assert.True(t, h.Publish(Change{Topic: "events", Type: Insert, RecordId: 3}))

		c, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, "events", c.Topic)
		assert.Equal(t, Insert, c.Type)
		assert.Equal(t, int64(3), c.RecordId)
		assert.False(t, c.Timestamp.IsZero(), "expected publish to stamp the change")
	})

	t.Run("other topics are not delivered", func(t *testing.T) {
		h := newTestHub(t)
		runHub(t, h)

		sub, err := h.Subscribe(context.Background(), "events")
		require.NoError(t, err)
		defer sub.Close()

		h.Publish(Change{Topic: "event_like", Type: Insert})
		h.Publish(Change{Topic: "events", Type: Delete})

		c, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, Delete, c.Type, "expected only the events change")
	})

	t.Run("filters by change type", func(t *testing.T) {
		h := newTestHub(t)
		runHub(t, h)

		sub, err := h.Subscribe(context.Background(), "events", Delete)
		require.NoError(t, err)
		defer sub.Close()

		h.Publish(Change{Topic: "events", Type: Insert})
		h.Publish(Change{Topic: "events", Type: Update})
		h.Publish(Change{Topic: "events", Type: Delete})

		c, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, Delete, c.Type)
	})

	t.Run("hub closed", func(t *testing.T) {
		h := newTestHub(t)
		go h.Run()
		require.NoError(t, h.Shutdown(context.Background()))

		_, err := h.Subscribe(context.Background(), "events")
		assert.ErrorIs(t, err, ErrHubClosed)
		assert.False(t, h.Publish(Change{Topic: "events"}))
	})
}

func TestSubscription_Close(t *testing.T) {
	t.Run("explicit close", func(t *testing.T) {
		h := newTestHub(t)
		runHub(t, h)

		sub, err := h.Subscribe(context.Background(), "events")
		require.NoError(t, err)

		sub.Close()
		sub.Close()

		_, ok := receive(t, sub)
		assert.False(t, ok, "expected changes channel to be closed")
	})

	t.Run("context cancel", func(t *testing.T) {
		h := newTestHub(t)
		runHub(t, h)

		ctx, cancel := context.WithCancel(context.Background())
		sub, err := h.Subscribe(ctx, "events")
		require.NoError(t, err)

		cancel()

		_, ok := receive(t, sub)
		assert.False(t, ok, "expected subscription to end with its context")
	})

	t.Run("hub shutdown", func(t *testing.T) {
		h := newTestHub(t)
		go h.Run()

		sub, err := h.Subscribe(context.Background(), "events")
		require.NoError(t, err)

		require.NoError(t, h.Shutdown(context.Background()))

		_, ok := receive(t, sub)
		assert.False(t, ok)

		// Close after shutdown must not block.
		sub.Close()
	})
}

func TestHub_broadcastDropsWhenFull(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(3)
	su.On("Incr", metricDropped).Once()
	defer su.AssertExpectations(t)

	h := NewHub(testutil.TestLogger(t), su, []string{"events"})
	sub := &Subscription{hub: h, topic: "events", ch: make(chan Change, 1), closed: make(chan struct{})}
	h.subs["events"] = map[*Subscription]struct{}{sub: {}}

	h.broadcast(Change{Topic: "events", Type: Insert, RecordId: 1})
	h.broadcast(Change{Topic: "events", Type: Insert, RecordId: 2})

	assert.Len(t, sub.ch, 1)
	c := <-sub.ch
	assert.Equal(t, int64(1), c.RecordId, "expected the first change to be kept")
}

func TestHubShutdown(t *testing.T) {
	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		h := newTestHub(t)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		go func() {
			<-h.stop
			// never acknowledge to simulate a hang
		}()

		err := h.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("second shutdown is a no-op", func(t *testing.T) {
		h := newTestHub(t)
		go h.Run()

		assert.NoError(t, h.Shutdown(context.Background()))
		assert.NoError(t, h.Shutdown(context.Background()))
	})
}

func TestParseChangeType(t *testing.T) {
	for in, want := range map[string]ChangeType{"insert": Insert, "UPDATE": Update, "Delete": Delete, "*": All} {
		got, ok := ParseChangeType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := ParseChangeType("truncate")
	assert.False(t, ok)
}
