package association

import (
	"context"
	"errors"
	"fmt"

	"github.com/npezzotti/diayouth/internal/retry"
	"github.com/npezzotti/diayouth/internal/stats"
	"github.com/sirupsen/logrus"
)

const (
	metricCreated = "association_rows_created"
	metricDeleted = "association_rows_deleted"
	metricNoop    = "association_noops"
)

// Notifier is told about every operation that changed the store.
type Notifier func(ctx context.Context, res Result)

type Toggler struct {
	store   Store
	log     *logrus.Logger
	members *Membership
	reads   retry.Policy
	stats   stats.StatsProvider
	notify  Notifier
}

type Option func(*Toggler)

func WithMembership(m *Membership) Option {
	return func(t *Toggler) { t.members = m }
}

// WithReadRetry sets the policy for existence checks and other reads.
func WithReadRetry(p retry.Policy) Option {
	return func(t *Toggler) { t.reads = p }
}

func WithStats(s stats.StatsProvider) Option {
	return func(t *Toggler) { t.stats = s }
}

func WithNotifier(n Notifier) Option {
	return func(t *Toggler) { t.notify = n }
}

func NewToggler(store Store, logger *logrus.Logger, opts ...Option) *Toggler {
	t := &Toggler{
		store: store,
		log:   logger,
		reads: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.stats != nil {
		t.stats.RegisterMetric(metricCreated)
		t.stats.RegisterMetric(metricDeleted)
		t.stats.RegisterMetric(metricNoop)
	}

	return t
}

// State reads the current membership state of key from the store.
func (t *Toggler) State(ctx context.Context, key Key) (State, error) {
	if err := key.Validate(); err != nil {
		return Absent, err
	}

	var exists bool
	err := retry.Do(ctx, t.reads, func(ctx context.Context) error {
		var err error
		exists, err = t.store.Exists(ctx, key)
		return err
	})
	if err != nil {
		t.logger(key).WithError(err).Error("association existence check failed")
		return Absent, fmt.Errorf("check %s: %w", key.Kind, err)
	}

	return StateOf(exists), nil
}

// Toggle flips the membership of key: an absent row is inserted, a present
// one deleted. If a concurrent caller changes the row between the check and
// the mutation, the mutation becomes a no-op and the result reports the
// state the store settled in.
func (t *Toggler) Toggle(ctx context.Context, key Key) (Result, error) {
	current, err := t.State(ctx, key)
	if err != nil {
		return Result{Key: key}, err
	}

	return t.apply(ctx, key, current.Flip())
}

// ToggleFrom flips the state the caller last observed rather than the state
// currently in the store. Two devices that both saw the row absent both ask
// for present, so their concurrent taps leave exactly one row.
func (t *Toggler) ToggleFrom(ctx context.Context, key Key, observed State) (Result, error) {
	if err := key.Validate(); err != nil {
		return Result{Key: key}, err
	}

	return t.apply(ctx, key, observed.Flip())
}

// Set makes the membership of key equal to want. It is idempotent.
func (t *Toggler) Set(ctx context.Context, key Key, want State) (Result, error) {
	if err := key.Validate(); err != nil {
		return Result{Key: key}, err
	}

	return t.apply(ctx, key, want)
}

func (t *Toggler) apply(ctx context.Context, key Key, want State) (Result, error) {
	var (
		changed bool
		err     error
	)
	if want == Present {
		changed, err = t.store.Insert(ctx, key)
	} else {
		changed, err = t.store.Delete(ctx, key)
	}

	if err != nil {
		l := t.logger(key).WithError(err).WithField("want", want)
		if errors.Is(err, ErrTargetNotFound) {
			l.Warn("association target does not exist")
		} else {
			l.Error("association mutation failed")
		}
		return Result{Key: key}, fmt.Errorf("set %s %s: %w", key.Kind, want, err)
	}

	res := Result{Key: key, State: want, Changed: changed}

	if t.members != nil {
		t.members.Apply(key, want)
	}

	switch {
	case !changed:
		t.incr(metricNoop)
		t.logger(key).WithField("state", want).Debug("association already in requested state")
	case want == Present:
		t.incr(metricCreated)
	default:
		t.incr(metricDeleted)
	}

	if changed && t.notify != nil {
		t.notify(ctx, res)
	}

	return res, nil
}

// Members returns the targets actorId has a row of kind for, from the
// membership cache when loaded.
func (t *Toggler) Members(ctx context.Context, actorId string, kind Kind) ([]int64, error) {
	if actorId == "" {
		return nil, ErrUnauthenticated
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var epoch uint64
	if t.members != nil {
		if ids, ok := t.members.Get(actorId, kind); ok {
			return ids, nil
		}
		epoch = t.members.Epoch()
	}

	var ids []int64
	err := retry.Do(ctx, t.reads, func(ctx context.Context) error {
		var err error
		ids, err = t.store.ListTargets(ctx, actorId, kind)
		return err
	})
	if err != nil {
		t.log.WithFields(logrus.Fields{"actor_id": actorId, "kind": kind}).WithError(err).Error("list association targets failed")
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	if t.members != nil {
		t.members.Load(actorId, kind, ids, epoch)
	}

	return ids, nil
}

// Count returns the number of rows of kind for targetId.
func (t *Toggler) Count(ctx context.Context, kind Kind, targetId int64) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var n int
	err := retry.Do(ctx, t.reads, func(ctx context.Context) error {
		var err error
		n, err = t.store.Count(ctx, kind, targetId)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Observe applies a change made by another writer to the membership cache.
func (t *Toggler) Observe(key Key, state State) {
	if t.members != nil {
		t.members.Apply(key, state)
	}
}

func (t *Toggler) logger(key Key) *logrus.Entry {
	return t.log.WithFields(logrus.Fields{
		"actor_id":  key.ActorId,
		"target_id": key.TargetId,
		"kind":      key.Kind,
	})
}

func (t *Toggler) incr(name string) {
	if t.stats != nil {
		t.stats.Incr(name)
	}
}
