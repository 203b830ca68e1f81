package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ecoinvest/internal/domain/model"
	"github.com/okian/ecoinvest/internal/domain/scoring"
	"github.com/okian/ecoinvest/pkg/metrics"
)

// Snapshot is an immutable, fully ranked view of the store. Readers load it
// without taking the write lock.
type Snapshot struct {
	Ranked  []model.ScoredState // by rank
	Ordered []model.ScoredState // dataset order, ranks filled in
	Sectors []string
	byName  map[string]int // index into Ordered
}

// MemoryStore keeps states in a map and publishes a new Snapshot after
// every write.
type MemoryStore struct {
	mu     sync.Mutex
	byName map[string]model.ScoredState
	order  []string

	snapshot atomic.Pointer[Snapshot]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{byName: make(map[string]model.ScoredState)}
	s.publishLocked()
	return s
}

// Replace implements Store.
func (s *MemoryStore) Replace(_ context.Context, states []model.ScoredState) error {
	defer observeUpdate(time.Now())

	byName := make(map[string]model.ScoredState, len(states))
	order := make([]string, 0, len(states))
	for _, st := range states {
		if err := validate(st); err != nil {
			return err
		}
		if _, dup := byName[st.Name]; dup {
			return fmt.Errorf("%w: duplicate state %q", ErrInvalidState, st.Name)
		}
		byName[st.Name] = cloneScored(st)
		order = append(order, st.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName = byName
	s.order = order
	s.publishLocked()
	return nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, st model.ScoredState) error {
	defer observeUpdate(time.Now())
	if err := validate(st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byName[st.Name]
	switch {
	case !ok:
		s.order = append(s.order, st.Name)
	case st.UpdatedAt.Before(cur.UpdatedAt):
		metrics.RecordErrorByComponent("repository", "stale")
		return fmt.Errorf("%w: %s", ErrStale, st.Name)
	}
	s.byName[st.Name] = cloneScored(st)
	s.publishLocked()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, name string) (model.ScoredState, error) {
	defer observeQuery(time.Now())
	snap := s.snapshot.Load()
	i, ok := snap.byName[name]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.ScoredState{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cloneScored(snap.Ordered[i]), nil
}

// All implements Store.
func (s *MemoryStore) All(_ context.Context) ([]model.ScoredState, error) {
	defer observeQuery(time.Now())
	return cloneAll(s.snapshot.Load().Ranked), nil
}

// BySector implements Store.
func (s *MemoryStore) BySector(_ context.Context, sector string) ([]model.ScoredState, error) {
	defer observeQuery(time.Now())
	var matched []model.ScoredState
	for _, st := range s.snapshot.Load().Ordered {
		if st.Pursues(sector) {
			matched = append(matched, st)
		}
	}
	return cloneAll(scoring.ByCombinedESI(matched)), nil
}

// TopN implements Store.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]model.ScoredState, error) {
	defer observeQuery(time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	ranked := s.snapshot.Load().Ranked
	if n > len(ranked) {
		n = len(ranked)
	}
	return cloneAll(ranked[:n]), nil
}

// Sectors implements Store.
func (s *MemoryStore) Sectors(_ context.Context) ([]string, error) {
	return append([]string(nil), s.snapshot.Load().Sectors...), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	return len(s.snapshot.Load().Ordered)
}

// Snapshot returns the current published view.
func (s *MemoryStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// publishLocked rebuilds and publishes the snapshot. Caller holds s.mu.
func (s *MemoryStore) publishLocked() {
	ordered := make([]model.ScoredState, 0, len(s.order))
	for _, name := range s.order {
		ordered = append(ordered, s.byName[name])
	}
	snap := buildSnapshot(ordered)
	s.snapshot.Store(snap)

	metrics.RecordSnapshotRebuild()
	metrics.UpdateStatesTotal(len(ordered))
}

func buildSnapshot(ordered []model.ScoredState) *Snapshot {
	ranked := scoring.Rank(ordered)
	rankOf := make(map[string]float64, len(ranked))
	for _, st := range ranked {
		rankOf[st.Name] = st.Rank
	}

	snap := &Snapshot{
		Ranked:  ranked,
		Ordered: make([]model.ScoredState, len(ordered)),
		byName:  make(map[string]int, len(ordered)),
	}
	seen := make(map[string]struct{})
	for i, st := range ordered {
		st.Rank = rankOf[st.Name]
		snap.Ordered[i] = st
		snap.byName[st.Name] = i
		for _, sector := range st.Initiatives {
			if _, ok := seen[sector]; !ok {
				seen[sector] = struct{}{}
				snap.Sectors = append(snap.Sectors, sector)
			}
		}
	}
	sort.Strings(snap.Sectors)
	return snap
}

func validate(st model.ScoredState) error {
	if strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidState)
	}
	return nil
}

func cloneScored(st model.ScoredState) model.ScoredState {
	st.State = st.State.Clone()
	return st
}

func cloneAll(in []model.ScoredState) []model.ScoredState {
	out := make([]model.ScoredState, len(in))
	for i, st := range in {
		out[i] = cloneScored(st)
	}
	return out
}

func observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeUpdate(start time.Time) {
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}
