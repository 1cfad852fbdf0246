// Package service runs the scoring triggers: publishing a result, recomputing
// one race and recomputing a whole pool. Every trigger goes through
// RecalculateRace, which is the only caller of the scoring engine.
package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/padraicbc/racepool/metrics"
	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/store"
)

var (
	// ErrRulesNotConfigured means no ruleset applies to the race.
	ErrRulesNotConfigured = errors.New("rules not configured")
	// ErrResultNotPublished means the race has no official result yet.
	ErrResultNotPublished = errors.New("official result not published")
	// ErrPredictionsLocked means the race no longer accepts predictions.
	ErrPredictionsLocked = errors.New("predictions locked")
	// ErrInvalidResult rejects a malformed official result.
	ErrInvalidResult = errors.New("invalid official result")
	// ErrInvalidPrediction rejects a malformed prediction at submission.
	ErrInvalidPrediction = errors.New("invalid prediction")
	// ErrPartialWrite means some score rows could not be persisted.
	ErrPartialWrite = errors.New("some scores were not saved")
)

// Store is the persistence the service needs. *store.Store implements it.
type Store interface {
	Race(ctx context.Context, raceID int64) (*models.Race, error)
	PublishedRaces(ctx context.Context, poolID int64) ([]models.Race, error)
	ActiveRuleset(ctx context.Context, poolID int64, sequence int) (*models.Ruleset, error)
	SaveResult(ctx context.Context, raceID int64, result scoring.OfficialResult) error
	OfficialResult(ctx context.Context, raceID int64) (*scoring.OfficialResult, error)
	Predictions(ctx context.Context, raceID int64) ([]models.Prediction, error)
	UpsertPrediction(ctx context.Context, p *models.Prediction) error
	SaveScores(ctx context.Context, poolID, raceID int64, scores []scoring.Score) (store.SaveReport, error)
	RaceScores(ctx context.Context, raceID int64) ([]models.Score, error)
	Leaderboard(ctx context.Context, poolID int64) ([]store.Standing, error)
}

var _ Store = (*store.Store)(nil)

// Scorer serializes recomputation per race and delegates the arithmetic to
// the scoring engine.
type Scorer struct {
	store   Store
	log     *zap.Logger
	metrics metrics.Recorder

	mu    sync.Mutex
	races map[int64]*raceMutex
}

// raceMutex is dropped from Scorer.races once nobody holds or waits on it.
type raceMutex struct {
	sync.Mutex
	refs int
}

// New creates a Scorer. A nil recorder disables metrics.
func New(st Store, log *zap.Logger, rec metrics.Recorder) *Scorer {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Scorer{
		store:   st,
		log:     log.Named("scorer"),
		metrics: rec,
		races:   map[int64]*raceMutex{},
	}
}

// lockRace blocks until the caller is the only recompute of raceID and
// returns the matching unlock.
func (s *Scorer) lockRace(raceID int64) (unlock func()) {
	s.mu.Lock()
	l, ok := s.races[raceID]
	if !ok {
		l = &raceMutex{}
		s.races[raceID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.races, raceID)
		}
		s.mu.Unlock()
	}
}

func wrapNotFound(err error, as error) error {
	if errors.Is(err, store.ErrNotFound) {
		return as
	}
	return err
}
