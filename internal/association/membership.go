package association

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type setKey struct {
	actor string
	kind  Kind
}

// Membership caches, per actor and kind, the set of targets the actor has a
// row for. Entries are loaded lazily and updated in place after toggles so
// every screen reading the set sees the new state without a re-query.
type Membership struct {
	mu    sync.Mutex
	sets  *lru.Cache[setKey, map[int64]struct{}]
	epoch uint64
}

func NewMembership(size int) (*Membership, error) {
	sets, err := lru.New[setKey, map[int64]struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Membership{sets: sets}, nil
}

// Get returns the cached targets, sorted ascending.
func (m *Membership) Get(actorId string, kind Kind) ([]int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets.Get(setKey{actorId, kind})
	if !ok {
		return nil, false
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, true
}

// Contains reports whether target is in the cached set and whether the set
// is loaded at all.
func (m *Membership) Contains(key Key) (present, loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets.Get(setKey{key.ActorId, key.Kind})
	if !ok {
		return false, false
	}
	_, present = set[key.TargetId]
	return present, true
}

// Epoch returns a token for Load. A load started before a concurrent Apply
// would overwrite that Apply with stale data, so Load discards it.
func (m *Membership) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Load stores ids as the full set for actor and kind unless an Apply
// happened since epoch was taken. It reports whether the set was stored.
func (m *Membership) Load(actorId string, kind Kind, ids []int64, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch {
		return false
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	m.sets.Add(setKey{actorId, kind}, set)
	return true
}

// Apply records state for key in the cached set. Sets that are not loaded
// stay unloaded.
func (m *Membership) Apply(key Key, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	set, ok := m.sets.Get(setKey{key.ActorId, key.Kind})
	if !ok {
		return
	}

	if state == Present {
		set[key.TargetId] = struct{}{}
	} else {
		delete(set, key.TargetId)
	}
}

// ForgetTarget removes target from every cached set of kind, used when the
// target itself is deleted.
func (m *Membership) ForgetTarget(kind Kind, targetId int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	for _, k := range m.sets.Keys() {
		if k.kind != kind {
			continue
		}
		if set, ok := m.sets.Peek(k); ok {
			delete(set, targetId)
		}
	}
}

func (m *Membership) Len() int {
	return m.sets.Len()
}
