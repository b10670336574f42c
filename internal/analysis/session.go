package analysis

import (
	"context"
	"log"
	"sync"
	"time"

	"coding-agreement/internal/models"
	"coding-agreement/internal/service"
	"coding-agreement/internal/state"
)

// StatisticsSource is the external collaborator delivering comparison rows
// and full (unfiltered) Kappa results.
type StatisticsSource interface {
	FetchCrossTrainingComparisons(ctx context.Context, workspaceID int, trainingIDs []int) ([]models.CrossSourceComparison, error)
	FetchWithinTrainingComparisons(ctx context.Context, workspaceID, trainingID int) ([]models.WithinTrainingComparison, error)
	FetchKappaStatistics(ctx context.Context, workspaceID, trainingID int, weighted bool, level models.Level) (*models.KappaStatistics, error)
}

// Phase is the Kappa aggregator state
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
)

// Mode selects which comparison dataset and selection are active
type Mode string

const (
	ModeNone           Mode = ""
	ModeCrossTraining  Mode = "cross-training"
	ModeWithinTraining Mode = "within-training"
)

const (
	opCrossComparisons  = "cross_training_comparisons"
	opWithinComparisons = "within_training_comparisons"
	opKappa             = "kappa_statistics"
)

// Session is the analysis state of one workspace. Every mutation recomputes
// match statistics and the filtered Kappa copy synchronously before it
// returns. The lock is not held while the source is queried; generation
// counters drop results of fetches that were superseded in the meantime.
type Session struct {
	mu          sync.Mutex
	workspaceID int
	source      StatisticsSource
	metrics     MetricsRecorder

	mode       Mode
	trainings  *state.SourceSelection
	coders     *state.SourceSelection
	trainingID int

	// false until a fetch of trainingID succeeded
	codersDiscovered bool

	crossComparisons  []models.CrossSourceComparison
	withinComparisons []models.WithinTrainingComparison
	match             models.MatchStatistics
	outcomes          []models.RecordOutcome

	weighted bool
	level    models.Level
	phase    Phase
	original *models.KappaStatistics
	filtered *models.KappaStatistics

	crossGen  uint64
	withinGen uint64
	kappaGen  uint64

	notices []Notice
}

// NewSession creates an empty session. Kappa defaults to the weighted mean
// on code level.
func NewSession(workspaceID int, source StatisticsSource, metrics MetricsRecorder) *Session {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Session{
		workspaceID:       workspaceID,
		source:            source,
		metrics:           metrics,
		trainings:         state.NewSourceSelection(),
		coders:            state.NewSourceSelection(),
		crossComparisons:  []models.CrossSourceComparison{},
		withinComparisons: []models.WithinTrainingComparison{},
		outcomes:          []models.RecordOutcome{},
		weighted:          true,
		level:             models.LevelCode,
		phase:             PhaseUninitialized,
	}
}

// Snapshot is a consistent, read-only view of a session. The slices and the
// Kappa copy are replaced, never modified, by later mutations.
type Snapshot struct {
	WorkspaceID       int                               `json:"workspaceId"`
	Mode              Mode                              `json:"mode"`
	Phase             Phase                             `json:"phase"`
	TrainingID        int                               `json:"trainingId,omitempty"`
	Weighted          bool                              `json:"weighted"`
	Level             models.Level                      `json:"level"`
	ActiveTrainings   []int                             `json:"activeTrainings"`
	ActiveCoders      []int                             `json:"activeCoders"`
	MatchStatistics   models.MatchStatistics            `json:"matchStatistics"`
	Outcomes          []models.RecordOutcome            `json:"outcomes"`
	CrossComparisons  []models.CrossSourceComparison    `json:"crossComparisons"`
	WithinComparisons []models.WithinTrainingComparison `json:"withinComparisons"`
	Kappa             *models.KappaStatistics           `json:"kappa"`
}

// Snapshot returns the current view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		WorkspaceID:       s.workspaceID,
		Mode:              s.mode,
		Phase:             s.phase,
		TrainingID:        s.trainingID,
		Weighted:          s.weighted,
		Level:             s.level,
		ActiveTrainings:   s.trainings.IDs(),
		ActiveCoders:      s.coders.IDs(),
		MatchStatistics:   s.match,
		Outcomes:          s.outcomes,
		CrossComparisons:  s.crossComparisons,
		WithinComparisons: s.withinComparisons,
		Kappa:             s.filtered,
	}
}

// DrainNotices returns the pending notices and forgets them
func (s *Session) DrainNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// recompute must be called with s.mu held
func (s *Session) recompute() {
	switch s.mode {
	case ModeCrossTraining:
		s.match = service.CalculateMatchStatistics(s.crossComparisons, s.trainings)
		s.outcomes = service.ClassifyRecords(s.crossComparisons, s.trainings)
	case ModeWithinTraining:
		s.match = service.CalculateMatchStatistics(s.withinComparisons, s.coders)
		s.outcomes = service.ClassifyRecords(s.withinComparisons, s.coders)
	default:
		s.match = models.MatchStatistics{}
		s.outcomes = []models.RecordOutcome{}
	}
	s.metrics.ObserveRecompute("match")

	if s.original != nil {
		s.filtered = service.FilterKappaStatistics(s.original, s.coders, s.withinComparisons, models.WeightingFor(s.weighted))
		s.metrics.ObserveRecompute("kappa")
	}
}

func (s *Session) fail(operation string, err error, message string) *FetchError {
	log.Printf("[Session] workspace %d: %s failed: %v", s.workspaceID, operation, err)
	s.notices = append(s.notices, newErrorNotice(message))
	return &FetchError{Operation: operation, Err: err}
}

// LoadCrossTrainingComparisons fetches the comparison of the given trainings
// and makes exactly those trainings active. Fewer than two distinct ids is a
// PreconditionError. A failed fetch leaves an empty dataset and returns a
// FetchError.
func (s *Session) LoadCrossTrainingComparisons(ctx context.Context, trainingIDs []int) error {
	ids := distinct(trainingIDs)
	if len(ids) < 2 {
		return &PreconditionError{Requested: len(ids), Required: 2}
	}

	s.mu.Lock()
	s.crossGen++
	gen := s.crossGen
	s.mu.Unlock()

	start := time.Now()
	rows, err := s.source.FetchCrossTrainingComparisons(ctx, s.workspaceID, ids)
	s.metrics.ObserveFetch(opCrossComparisons, err == nil, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.crossGen {
		return nil
	}

	var fetchErr error
	if err != nil {
		s.crossComparisons = []models.CrossSourceComparison{}
		fetchErr = s.fail(opCrossComparisons, err, "Loading the training comparison failed")
	} else {
		s.crossComparisons = service.BuildCrossTrainingComparisons(rows)
	}
	s.mode = ModeCrossTraining
	s.trainings.SetAll(ids)
	s.recompute()
	return fetchErr
}

// LoadWithinTrainingComparisons fetches the coder comparison of one training.
// Switching to another training activates all discovered coders and drops the
// Kappa result of the previous training.
func (s *Session) LoadWithinTrainingComparisons(ctx context.Context, trainingID int) error {
	s.mu.Lock()
	s.withinGen++
	gen := s.withinGen
	s.mu.Unlock()

	start := time.Now()
	rows, err := s.source.FetchWithinTrainingComparisons(ctx, s.workspaceID, trainingID)
	s.metrics.ObserveFetch(opWithinComparisons, err == nil, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.withinGen {
		return nil
	}

	var fetchErr error
	if err != nil {
		s.withinComparisons = []models.WithinTrainingComparison{}
		fetchErr = s.fail(opWithinComparisons, err, "Loading the coder comparison failed")
	} else {
		s.withinComparisons = service.BuildWithinTrainingComparisons(rows)
	}

	newTraining := trainingID != s.trainingID
	if newTraining {
		s.trainingID = trainingID
		s.kappaGen++
		s.original = nil
		s.filtered = nil
		s.phase = PhaseUninitialized
	}
	// a reload keeps the user's selection once coders were discovered
	if newTraining || !s.codersDiscovered {
		s.coders.SetAll(service.DiscoverCoders(s.withinComparisons))
		s.codersDiscovered = err == nil
	}
	s.mode = ModeWithinTraining
	s.recompute()
	return fetchErr
}

// LoadKappa fetches the full Kappa result of the current training using the
// current weighting and level.
func (s *Session) LoadKappa(ctx context.Context) error {
	return s.fetchKappa(ctx, nil)
}

// fetchKappa runs Loading → Ready. On failure the session returns to Ready
// with the last good original, or to Uninitialized if there is none, and
// revert (if any) is applied under the lock.
func (s *Session) fetchKappa(ctx context.Context, revert func()) error {
	s.mu.Lock()
	if s.trainingID == 0 {
		if revert != nil {
			revert()
		}
		s.mu.Unlock()
		return ErrNoTraining
	}
	s.kappaGen++
	gen := s.kappaGen
	trainingID, weighted, level := s.trainingID, s.weighted, s.level
	s.phase = PhaseLoading
	s.mu.Unlock()

	start := time.Now()
	stats, err := s.source.FetchKappaStatistics(ctx, s.workspaceID, trainingID, weighted, level)
	s.metrics.ObserveFetch(opKappa, err == nil, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.kappaGen {
		return nil
	}

	if err != nil || stats == nil {
		if err == nil {
			err = ErrEmptyKappaResult
		}
		if revert != nil {
			revert()
		}
		if s.original != nil {
			s.phase = PhaseReady
		} else {
			s.phase = PhaseUninitialized
		}
		return s.fail(opKappa, err, "Loading the Kappa statistics failed")
	}

	s.original = stats
	s.phase = PhaseReady
	s.recompute()
	return nil
}

// ToggleActiveSource toggles a training (cross-training mode) or a coder
// (within-training mode) and recomputes.
func (s *Session) ToggleActiveSource(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.activeSelection().Toggle(id)
	s.recompute()
	return active
}

// SetActiveSources replaces the active sources of the current mode
func (s *Session) SetActiveSources(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSelection().SetAll(ids)
	s.recompute()
}

// ClearActiveSources deactivates every source of the current mode
func (s *Session) ClearActiveSources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSelection().Clear()
	s.recompute()
}

// activeSelection must be called with s.mu held
func (s *Session) activeSelection() *state.SourceSelection {
	if s.mode == ModeCrossTraining {
		return s.trainings
	}
	return s.coders
}

// SetWeighting switches between the weighted and the arithmetic mean. The
// upstream result depends on it, so a loaded training is fetched again; if
// that fetch fails the previous setting is restored so the displayed
// statistics stay consistent with it.
func (s *Session) SetWeighting(ctx context.Context, weighted bool) error {
	s.mu.Lock()
	prev := s.weighted
	if prev == weighted {
		s.mu.Unlock()
		return nil
	}
	s.weighted = weighted
	loaded := s.trainingID != 0
	s.mu.Unlock()

	if !loaded {
		return nil
	}
	return s.fetchKappa(ctx, func() { s.weighted = prev })
}

// SetLevel switches between code and score level Kappa, refetching like SetWeighting
func (s *Session) SetLevel(ctx context.Context, level models.Level) error {
	s.mu.Lock()
	prev := s.level
	if prev == level {
		s.mu.Unlock()
		return nil
	}
	s.level = level
	loaded := s.trainingID != 0
	s.mu.Unlock()

	if !loaded {
		return nil
	}
	return s.fetchKappa(ctx, func() { s.level = prev })
}

func distinct(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
