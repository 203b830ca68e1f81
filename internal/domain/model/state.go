// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"
)

// State holds the raw ESG and ESI inputs for one state and the sectors
// (sustainable initiatives) it pursues.
type State struct {
	Name          string
	NormalizedESI float64 // 0..1
	Environmental float64
	Social        float64
	Governance    float64
	Initiatives   []string
	// UpdatedAt is the timestamp of the last applied score update; zero for seed data.
	UpdatedAt time.Time
}

// Pursues reports whether the state lists sector among its initiatives.
// Matching is exact.
func (s State) Pursues(sector string) bool {
	return slices.Contains(s.Initiatives, sector)
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	s.Initiatives = slices.Clone(s.Initiatives)
	return s
}

// ScoredState is a State with its derived scores.
type ScoredState struct {
	State
	CombinedESI  float64
	PredictedESI float64
	// Rank is 1-based by PredictedESI descending; ties share the average rank.
	Rank float64
}

// ScoreUpdate replaces the inputs of one state. Nil Initiatives keeps the
// state's current list. TS orders updates for the same state: one older than
// the state's UpdatedAt is stale.
type ScoreUpdate struct {
	EventID       string
	State         string
	NormalizedESI float64
	Environmental float64
	Social        float64
	Governance    float64
	Initiatives   []string
	TS            time.Time
}

// Apply returns base with the update's scores and, when given, initiatives.
func (u ScoreUpdate) Apply(base State) State {
	out := base.Clone()
	out.Name = u.State
	out.NormalizedESI = u.NormalizedESI
	out.Environmental = u.Environmental
	out.Social = u.Social
	out.Governance = u.Governance
	if u.Initiatives != nil {
		out.Initiatives = slices.Clone(u.Initiatives)
	}
	out.UpdatedAt = u.TS
	return out
}

// StaleFor reports whether u is older than the last update applied to s.
func (u ScoreUpdate) StaleFor(s State) bool {
	return u.TS.Before(s.UpdatedAt)
}
