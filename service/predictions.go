package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/store"
)

// locked reports whether the race stopped taking predictions at now. The
// ruleset may be nil, in which case the race locks at its start time.
func locked(race *models.Race, rs *models.Ruleset, now time.Time) bool {
	if race.Published {
		return true
	}
	cutoff := race.StartsAt
	if rs != nil {
		cutoff = cutoff.Add(-time.Duration(rs.LockMinutesBeforeStart) * time.Minute)
	}
	return !now.Before(cutoff)
}

// rulesFor returns the active ruleset of a race, nil when none is configured.
func (s *Scorer) rulesFor(ctx context.Context, race *models.Race) (*models.Ruleset, error) {
	rs, err := s.store.ActiveRuleset(ctx, race.PoolID, race.Sequence)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rs, err
}

// SubmitPrediction stores or replaces a participant's picks until the race
// locks.
func (s *Scorer) SubmitPrediction(ctx context.Context, p *models.Prediction, now time.Time) error {
	if p.MemberID == nil && p.AccountID == nil {
		return fmt.Errorf("%w: no participant", ErrInvalidPrediction)
	}
	if err := validatePicks(p); err != nil {
		return err
	}

	race, err := s.store.Race(ctx, p.RaceID)
	if err != nil {
		return fmt.Errorf("load race %d: %w", p.RaceID, err)
	}
	rs, err := s.rulesFor(ctx, race)
	if err != nil {
		return err
	}
	if locked(race, rs, now) {
		return ErrPredictionsLocked
	}

	if err := s.store.UpsertPrediction(ctx, p); err != nil {
		return err
	}
	key, _ := p.Participant().Resolve()
	s.log.Debug("prediction saved", zap.Int64("race_id", p.RaceID), zap.String("participant", key.String()))
	return nil
}

func validatePicks(p *models.Prediction) error {
	if p.WinnerPick == nil && len(p.ExactaPick) == 0 && len(p.TrifectaPick) == 0 {
		return fmt.Errorf("%w: no picks", ErrInvalidPrediction)
	}
	if p.WinnerPick != nil && *p.WinnerPick == "" {
		return fmt.Errorf("%w: empty winner pick", ErrInvalidPrediction)
	}
	if err := orderedPick("exacta", p.ExactaPick, 2); err != nil {
		return err
	}
	return orderedPick("trifecta", p.TrifectaPick, 3)
}

// orderedPick checks an exacta or trifecta pick: absent, or exactly n distinct
// non-empty outcomes.
func orderedPick(name string, pick []string, n int) error {
	if len(pick) == 0 {
		return nil
	}
	if len(pick) != n {
		return fmt.Errorf("%w: %s needs %d picks, got %d", ErrInvalidPrediction, name, n, len(pick))
	}
	seen := make(map[string]struct{}, n)
	for _, o := range pick {
		if o == "" {
			return fmt.Errorf("%w: %s has an empty pick", ErrInvalidPrediction, name)
		}
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: %s picks %q twice", ErrInvalidPrediction, name, o)
		}
		seen[o] = struct{}{}
	}
	return nil
}

// RacePredictions lists a race's predictions as seen by viewer. Under a
// sealed ruleset only the viewer's own prediction is visible until the race
// locks.
func (s *Scorer) RacePredictions(ctx context.Context, raceID int64, viewer scoring.ParticipantKey, now time.Time) ([]models.Prediction, error) {
	race, err := s.store.Race(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("load race %d: %w", raceID, err)
	}
	rs, err := s.rulesFor(ctx, race)
	if err != nil {
		return nil, err
	}
	preds, err := s.store.Predictions(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if rs == nil || !rs.SealedUntilClose || locked(race, rs, now) {
		return preds, nil
	}

	me, ok := viewer.Resolve()
	out := []models.Prediction{}
	if !ok {
		return out, nil
	}
	for _, p := range preds {
		if owns(me, viewer, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// owns reports whether p belongs to the viewer, either by its resolved key or
// by the account id stored alongside a membership.
func owns(me scoring.ResolvedKey, viewer scoring.ParticipantKey, p models.Prediction) bool {
	if k, _ := p.Participant().Resolve(); k == me {
		return true
	}
	return viewer.AccountID != "" && p.Participant().AccountID == viewer.AccountID
}

// RaceScores returns the stored scores of a race.
func (s *Scorer) RaceScores(ctx context.Context, raceID int64) ([]models.Score, error) {
	return s.store.RaceScores(ctx, raceID)
}

// Leaderboard returns a pool's standings. A pool with no ruleset at all
// reports ErrRulesNotConfigured rather than an empty board.
func (s *Scorer) Leaderboard(ctx context.Context, poolID int64) ([]store.Standing, error) {
	if _, err := s.store.ActiveRuleset(ctx, poolID, math.MaxInt32); err != nil {
		return nil, wrapNotFound(err, ErrRulesNotConfigured)
	}
	return s.store.Leaderboard(ctx, poolID)
}
