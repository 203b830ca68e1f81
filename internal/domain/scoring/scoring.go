// Package scoring derives Combined ESI, the predicted Combined ESI and ranks
// from raw state inputs.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/ecoinvest/internal/domain/model"
)

// Sentinel errors.
var (
	ErrNotFitted    = errors.New("predictor not fitted")
	ErrTooFewStates = errors.New("too few states to fit predictor")
	ErrInvalidInput = errors.New("invalid score input")
)

// CombinedESI averages the normalized ESI with the three ESG pillar scores.
func CombinedESI(s model.State) float64 {
	return (s.NormalizedESI + s.Environmental + s.Social + s.Governance) / 4
}

// Scorer turns a raw state into a scored one. Rank is left to the caller
// since it depends on every other state.
type Scorer interface {
	Score(ctx context.Context, s model.State) (model.ScoredState, error)
}

// ModelScorer scores with CombinedESI and a fitted Predictor.
type ModelScorer struct {
	predictor *Predictor
}

// NewModelScorer wraps a fitted predictor.
func NewModelScorer(p *Predictor) *ModelScorer {
	return &ModelScorer{predictor: p}
}

// Score computes both scores for s.
func (m *ModelScorer) Score(ctx context.Context, s model.State) (model.ScoredState, error) {
	if err := ctx.Err(); err != nil {
		return model.ScoredState{}, fmt.Errorf("score %s: %w", s.Name, err)
	}
	for _, v := range []float64{s.NormalizedESI, s.Environmental, s.Social, s.Governance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.ScoredState{}, fmt.Errorf("%w: %s has a non-finite score", ErrInvalidInput, s.Name)
		}
	}
	predicted, err := m.predictor.Predict(s)
	if err != nil {
		return model.ScoredState{}, err
	}
	return model.ScoredState{
		State:        s,
		CombinedESI:  CombinedESI(s),
		PredictedESI: predicted,
	}, nil
}

// Rank assigns 1-based ranks by PredictedESI descending, ties sharing the
// average of the positions they span, and returns the states ordered by rank.
// Equal ranks keep their input order. The input slice is not modified.
func Rank(states []model.ScoredState) []model.ScoredState {
	out := make([]model.ScoredState, len(states))
	copy(out, states)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PredictedESI > out[j].PredictedESI
	})
	for i := 0; i < len(out); {
		j := i + 1
		for j < len(out) && out[j].PredictedESI == out[i].PredictedESI {
			j++
		}
		// positions i+1..j share the mean rank
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			out[k].Rank = avg
		}
		i = j
	}
	return out
}

// ByCombinedESI returns states sorted by CombinedESI descending; ties keep
// input order.
func ByCombinedESI(states []model.ScoredState) []model.ScoredState {
	out := make([]model.ScoredState, len(states))
	copy(out, states)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedESI > out[j].CombinedESI
	})
	return out
}
