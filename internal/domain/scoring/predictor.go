package scoring

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/ecoinvest/internal/domain/model"
)

// Defaults for fitting.
const (
	defaultTrainRatio = 0.8
	defaultSeed       = 42
	defaultRidge      = 1e-3
	featureCount      = 4 // normalized ESI, environmental, social, governance
)

var errNotPositiveDefinite = errors.New("normal equations are not positive definite")

// Option configures Fit.
type Option func(*fitConfig)

type fitConfig struct {
	trainRatio float64
	seed       int64
	ridge      float64
}

// WithTrainRatio sets the share of states used for fitting, in (0, 1].
func WithTrainRatio(r float64) Option {
	return func(c *fitConfig) {
		if r > 0 && r <= 1 {
			c.trainRatio = r
		}
	}
}

// WithSeed sets the train/test shuffle seed.
func WithSeed(seed int64) Option {
	return func(c *fitConfig) { c.seed = seed }
}

// WithRidge sets the L2 penalty. The ESG pillars are often collinear, so a
// strictly positive penalty keeps the normal equations solvable.
func WithRidge(lambda float64) Option {
	return func(c *fitConfig) {
		if lambda > 0 {
			c.ridge = lambda
		}
	}
}

// Predictor is a linear model over the four score inputs plus an intercept,
// predicting Combined ESI.
type Predictor struct {
	coef      []float64 // intercept first
	trainSize int
	testSize  int
	testRMSE  float64
}

// Split shuffles states deterministically and returns train and test sets.
// The test set holds ceil(n*(1-ratio)) states, always leaving one to train on.
func Split(states []model.State, ratio float64, seed int64) (train, test []model.State) {
	n := len(states)
	nTest := int(math.Ceil(float64(n) * (1 - ratio)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n) //nolint:gosec // reproducible split
	for i, p := range perm {
		if i < nTest {
			test = append(test, states[p])
		} else {
			train = append(train, states[p])
		}
	}
	return train, test
}

// Fit trains a Predictor on a split of states with ridge-regularised least squares.
func Fit(states []model.State, opts ...Option) (*Predictor, error) {
	cfg := fitConfig{trainRatio: defaultTrainRatio, seed: defaultSeed, ridge: defaultRidge}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(states) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrTooFewStates, len(states))
	}

	train, test := Split(states, cfg.trainRatio, cfg.seed)
	cols := featureCount + 1

	x := mat.NewDense(len(train), cols, nil)
	y := mat.NewVecDense(len(train), nil)
	for i, s := range train {
		x.SetRow(i, features(s))
		y.SetVec(i, CombinedESI(s))
	}

	// (XᵀX + λI) β = Xᵀy
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	sym := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += cfg.ridge
			}
			sym.SetSym(i, j, v)
		}
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("fit predictor: %w", errNotPositiveDefinite)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		// A Condition error still carries a usable solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("fit predictor: %w", err)
		}
	}

	p := &Predictor{coef: make([]float64, cols), trainSize: len(train), testSize: len(test)}
	for i := range p.coef {
		p.coef[i] = beta.AtVec(i)
	}
	if len(test) > 0 {
		var sq float64
		for _, s := range test {
			pred, _ := p.Predict(s)
			d := pred - CombinedESI(s)
			sq += d * d
		}
		p.testRMSE = math.Sqrt(sq / float64(len(test)))
	}
	return p, nil
}

func features(s model.State) []float64 {
	return []float64{1, s.NormalizedESI, s.Environmental, s.Social, s.Governance}
}

// Predict returns the predicted Combined ESI for s.
func (p *Predictor) Predict(s model.State) (float64, error) {
	if p == nil || len(p.coef) == 0 {
		return 0, ErrNotFitted
	}
	var out float64
	for i, f := range features(s) {
		out += p.coef[i] * f
	}
	return out, nil
}

// Coefficients returns a copy of the fitted weights, intercept first.
func (p *Predictor) Coefficients() []float64 {
	return append([]float64(nil), p.coef...)
}

// TrainSize is the number of states the model was fitted on.
func (p *Predictor) TrainSize() int { return p.trainSize }

// TestSize is the number of held-out states.
func (p *Predictor) TestSize() int { return p.testSize }

// TestRMSE is the root mean squared error on the held-out states.
func (p *Predictor) TestRMSE() float64 { return p.testRMSE }
