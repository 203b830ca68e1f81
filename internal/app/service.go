// Package service wires the dataset, scoring model, store and update
// pipeline together and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/okian/ecoinvest/internal/adapters/mq/queue"
	"github.com/okian/ecoinvest/internal/adapters/mq/worker"
	"github.com/okian/ecoinvest/internal/adapters/repository"
	"github.com/okian/ecoinvest/internal/dataset"
	"github.com/okian/ecoinvest/internal/domain/dedupe"
	"github.com/okian/ecoinvest/internal/domain/model"
	"github.com/okian/ecoinvest/internal/domain/scoring"
	"github.com/okian/ecoinvest/internal/domain/types"
	"github.com/okian/ecoinvest/pkg/logger"
	"github.com/okian/ecoinvest/pkg/metrics"
)

// Service implements the API dependencies for the recommendation server.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	predictor *scoring.Predictor

	// configuration
	states        []model.State
	storeBackend  string
	workerCount   int
	queueSize     int
	dedupeSize    int
	topRegions    int
	maxTopRegions int
	trainRatio    float64
	splitSeed     int64

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of update workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the update queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDeduper replaces the in-memory idempotency cache; WithDedupeSize is
// then ignored.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithTopRegions sets the default length of the top regions list.
func WithTopRegions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topRegions = n
		}
	}
}

// WithMaxTopRegions caps the top regions limit callers may ask for.
func WithMaxTopRegions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTopRegions = n
		}
	}
}

// WithTrainRatio sets the share of states the predictor is fitted on.
func WithTrainRatio(r float64) Option {
	return func(s *Service) {
		if r > 0 && r <= 1 {
			s.trainRatio = r
		}
	}
}

// WithSplitSeed sets the train/test split seed.
func WithSplitSeed(seed int64) Option {
	return func(s *Service) { s.splitSeed = seed }
}

// WithDataset replaces the embedded seed dataset.
func WithDataset(states []model.State) Option {
	return func(s *Service) {
		if len(states) > 0 {
			s.states = states
		}
	}
}

// WithStore sets the backing store and the backend name reported in stats.
// A store that already holds states keeps them; an empty one is seeded.
func WithStore(store repository.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeBackend = backend
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with defaults. Call Start before use.
func New(opts ...Option) *Service {
	s := &Service{
		storeBackend:  "memory",
		workerCount:   runtime.NumCPU(),
		queueSize:     10_000,
		dedupeSize:    50_000,
		topRegions:    10,
		maxTopRegions: 100,
		trainRatio:    0.8,
		splitSeed:     42,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fits the predictor, seeds the store and starts the update workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.states == nil {
		seed, err := dataset.Seed()
		if err != nil {
			return fmt.Errorf("load seed dataset: %w", err)
		}
		s.states = seed
	}

	predictor, err := scoring.Fit(s.states, scoring.WithTrainRatio(s.trainRatio), scoring.WithSeed(s.splitSeed))
	if err != nil {
		return fmt.Errorf("fit predictor: %w", err)
	}
	s.predictor = predictor
	scorer := scoring.NewModelScorer(predictor)

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.store.Count(ctx) == 0 {
		scored := make([]model.ScoredState, 0, len(s.states))
		for _, st := range s.states {
			ss, err := scorer.Score(ctx, st)
			if err != nil {
				return err
			}
			scored = append(scored, ss)
		}
		if err := s.store.Replace(ctx, scored); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
	} else {
		s.logger.Info(ctx, "store already populated, keeping persisted states",
			logger.Int("states", s.store.Count(ctx)))
	}

	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	// Workers outlive the Start call, so they run on their own context.
	s.pool = worker.NewPool(s.workerCount, s.queue, scorer, s.store, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.String("store", s.storeBackend),
		logger.Int("states", s.store.Count(ctx)),
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Float64("predictor_test_rmse", predictor.TestRMSE()),
	)
	return nil
}

// Stop drains the update queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping recommendation service")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.started = false
	return errors.Join(errs...)
}

func (s *Service) ready() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Recommend returns the states pursuing sector, best Combined ESI first.
func (s *Service) Recommend(ctx context.Context, sector string) ([]types.Recommendation, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	matched, err := store.BySector(ctx, sector)
	if err != nil {
		metrics.RecordRecommendation("error")
		return nil, err
	}
	if len(matched) == 0 {
		metrics.RecordRecommendation("no_regions")
		return nil, fmt.Errorf("%w: %s", ErrNoRegions, sector)
	}
	metrics.RecordRecommendation("found")

	out := make([]types.Recommendation, len(matched))
	for i, st := range matched {
		out[i] = types.Recommendation{State: st.Name, CombinedESI: st.CombinedESI}
	}
	return out, nil
}

// States returns every state by rank.
func (s *Service) States(ctx context.Context) ([]types.Region, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	all, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	return toRegions(all), nil
}

// TopRegions returns the n best ranked states. n <= 0 uses the configured
// default; n above the configured maximum is ErrInvalidLimit.
func (s *Service) TopRegions(ctx context.Context, n int) ([]types.Region, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.topRegions
	}
	if n > s.maxTopRegions {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidLimit, n, s.maxTopRegions)
	}
	top, err := store.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	return toRegions(top), nil
}

// Sectors returns every initiative some state pursues.
func (s *Service) Sectors(ctx context.Context) ([]string, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	return store.Sectors(ctx)
}

// SubmitUpdate validates and enqueues a score update. Re-submitting an
// event ID is acknowledged as a duplicate without enqueueing.
func (s *Service) SubmitUpdate(ctx context.Context, req types.ScoreUpdateRequest) (types.AckResponse, error) {
	if _, err := s.ready(); err != nil {
		return types.AckResponse{}, err
	}
	u, err := toUpdate(req)
	if err != nil {
		return types.AckResponse{}, err
	}

	switch s.deduper.Reserve(ctx, u.EventID) {
	case dedupe.Seen:
		metrics.RecordUpdateDuplicate()
		return types.AckResponse{Status: "accepted", EventID: u.EventID, Duplicate: true}, nil
	case dedupe.Pending:
		return types.AckResponse{}, fmt.Errorf("%w: %s", ErrUpdateInFlight, u.EventID)
	}

	if err := s.queue.Enqueue(ctx, u); err != nil {
		// let the client retry the same event
		s.deduper.Release(ctx, u.EventID)
		if errors.Is(err, queue.ErrFull) {
			return types.AckResponse{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return types.AckResponse{}, err
	}
	s.deduper.Commit(ctx, u.EventID)

	metrics.RecordUpdateAccepted()
	s.logger.Debug(ctx, "update enqueued",
		logger.String("event_id", u.EventID),
		logger.String("state", u.State),
	)
	return types.AckResponse{Status: "accepted", EventID: u.EventID}, nil
}

// Stats reports pipeline counters, the fitted model and the Combined ESI
// distribution.
func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := types.Stats{
		Started:       s.started,
		StoreBackend:  s.storeBackend,
		WorkerCount:   s.workerCount,
		QueueCapacity: s.queueSize,
	}
	if !s.started {
		return out, nil
	}

	all, err := s.store.All(ctx)
	if err != nil {
		return out, err
	}
	sectors, err := s.store.Sectors(ctx)
	if err != nil {
		return out, err
	}
	out.States = len(all)
	out.Sectors = len(sectors)
	out.QueueLength = s.queue.Len(ctx)
	out.DedupeSize = s.deduper.Size()
	out.Model = types.ModelStats{
		TrainSize:    s.predictor.TrainSize(),
		TestSize:     s.predictor.TestSize(),
		TestRMSE:     s.predictor.TestRMSE(),
		Coefficients: s.predictor.Coefficients(),
	}

	combined := make([]float64, len(all))
	for i, st := range all {
		combined[i] = st.CombinedESI
	}
	out.CombinedESI, err = summarize(combined)
	if err != nil {
		return out, err
	}

	metrics.UpdateStatesTotal(out.States)
	metrics.UpdateQueueSize(out.QueueLength, out.QueueCapacity)
	return out, nil
}

func summarize(data []float64) (types.Summary, error) {
	if len(data) == 0 {
		return types.Summary{}, nil
	}
	var (
		sum types.Summary
		err error
	)
	if sum.Mean, err = stats.Mean(data); err != nil {
		return sum, fmt.Errorf("mean: %w", err)
	}
	if sum.Median, err = stats.Median(data); err != nil {
		return sum, fmt.Errorf("median: %w", err)
	}
	if sum.StdDev, err = stats.StandardDeviation(data); err != nil {
		return sum, fmt.Errorf("stddev: %w", err)
	}
	if sum.Min, err = stats.Min(data); err != nil {
		return sum, fmt.Errorf("min: %w", err)
	}
	if sum.Max, err = stats.Max(data); err != nil {
		return sum, fmt.Errorf("max: %w", err)
	}
	if sum.P90, err = stats.Percentile(data, 90); err != nil {
		return sum, fmt.Errorf("p90: %w", err)
	}
	return sum, nil
}

func toUpdate(req types.ScoreUpdateRequest) (model.ScoreUpdate, error) {
	name := strings.TrimSpace(req.State)
	if name == "" {
		return model.ScoreUpdate{}, fmt.Errorf("%w: state is required", ErrInvalidUpdate)
	}
	scores := []struct {
		field string
		v     *float64
	}{
		{"normalized_esi", req.NormalizedESI},
		{"environmental", req.Environmental},
		{"social", req.Social},
		{"governance", req.Governance},
	}
	for _, sc := range scores {
		if sc.v == nil {
			return model.ScoreUpdate{}, fmt.Errorf("%w: %s is required", ErrInvalidUpdate, sc.field)
		}
		if math.IsNaN(*sc.v) || math.IsInf(*sc.v, 0) {
			return model.ScoreUpdate{}, fmt.Errorf("%w: %s must be finite", ErrInvalidUpdate, sc.field)
		}
	}

	ts := time.Now().UTC()
	if req.TS != "" {
		parsed, err := time.Parse(time.RFC3339, req.TS)
		if err != nil {
			return model.ScoreUpdate{}, fmt.Errorf("%w: ts must be RFC3339", ErrInvalidUpdate)
		}
		ts = parsed
	}

	id := strings.TrimSpace(req.EventID)
	if id == "" {
		id = uuid.NewString()
	}

	return model.ScoreUpdate{
		EventID:       id,
		State:         name,
		NormalizedESI: *req.NormalizedESI,
		Environmental: *req.Environmental,
		Social:        *req.Social,
		Governance:    *req.Governance,
		Initiatives:   req.Initiatives,
		TS:            ts,
	}, nil
}

func toRegions(states []model.ScoredState) []types.Region {
	out := make([]types.Region, len(states))
	for i, st := range states {
		initiatives := st.Initiatives
		if initiatives == nil {
			initiatives = []string{}
		}
		out[i] = types.Region{
			State:         st.Name,
			NormalizedESI: st.NormalizedESI,
			Environmental: st.Environmental,
			Social:        st.Social,
			Governance:    st.Governance,
			CombinedESI:   st.CombinedESI,
			Initiatives:   initiatives,
			PredictedESI:  st.PredictedESI,
			Rank:          st.Rank,
		}
	}
	return out
}
