package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/racepool/logger"
	"github.com/padraicbc/racepool/metrics"
	"github.com/padraicbc/racepool/scoring"
)

// RaceOutcome summarises one recompute.
type RaceOutcome struct {
	PoolID   int64             `json:"poolID"`
	RaceID   int64             `json:"raceID"`
	Scores   []scoring.Score   `json:"scores"`
	Written  int               `json:"written"`
	Deleted  int               `json:"deleted"`
	Failures map[string]string `json:"failures,omitempty"`
}

// RecalculateRace loads everything the engine needs for one race, evaluates
// it and persists the scores. A race without an official result is never
// evaluated. When some rows fail to save the outcome is still returned
// together with an error wrapping ErrPartialWrite.
func (s *Scorer) RecalculateRace(ctx context.Context, raceID int64) (*RaceOutcome, error) {
	defer s.lockRace(raceID)()

	start := time.Now()
	out, err := s.recalculate(ctx, raceID)

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrRulesNotConfigured):
		outcome = metrics.OutcomeNoRules
	case errors.Is(err, ErrResultNotPublished):
		outcome = metrics.OutcomeNoResult
	case errors.Is(err, ErrPartialWrite):
		outcome = metrics.OutcomeWriteErrors
	case err != nil:
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveRecompute(outcome, time.Since(start))
	return out, err
}

func (s *Scorer) recalculate(ctx context.Context, raceID int64) (*RaceOutcome, error) {
	race, err := s.store.Race(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("load race %d: %w", raceID, err)
	}
	fields := logger.Race(race.PoolID, race.ID)

	result, err := s.store.OfficialResult(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("race %d: %w", raceID, wrapNotFound(err, ErrResultNotPublished))
	}
	rs, err := s.store.ActiveRuleset(ctx, race.PoolID, race.Sequence)
	if err != nil {
		return nil, fmt.Errorf("race %d: %w", raceID, wrapNotFound(err, ErrRulesNotConfigured))
	}
	preds, err := s.store.Predictions(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("load predictions for race %d: %w", raceID, err)
	}

	picks := make([]scoring.Prediction, len(preds))
	for i := range preds {
		picks[i] = preds[i].Picks()
	}

	engine := scoring.Engine{PoolID: race.PoolID, RaceID: race.ID}
	scores, err := engine.Evaluate(rs.Rules(), *result, picks)
	if err != nil {
		return nil, fmt.Errorf("race %d ruleset %d: %w: %w", raceID, rs.ID, ErrRulesNotConfigured, err)
	}
	if skipped := len(picks) - len(scores); skipped > 0 {
		s.log.Warn("predictions without participant key skipped", append(fields, zap.Int("skipped", skipped))...)
	}

	report, err := s.store.SaveScores(ctx, race.PoolID, race.ID, scores)
	if err != nil {
		return nil, fmt.Errorf("save scores for race %d: %w", raceID, err)
	}
	s.metrics.AddScoresWritten(report.Written)

	out := &RaceOutcome{
		PoolID:  race.PoolID,
		RaceID:  race.ID,
		Scores:  scores,
		Written: report.Written,
		Deleted: report.Deleted,
	}

	if werr := report.Err(); werr != nil {
		s.metrics.AddScoreFailures(len(report.Failed))
		out.Failures = make(map[string]string, len(report.Failed))
		for k, e := range report.Failed {
			out.Failures[k] = e.Error()
			s.log.Error("score not saved", append(fields, zap.String("participant", k), zap.Error(e))...)
		}
		return out, fmt.Errorf("race %d: %w: %w", raceID, ErrPartialWrite, werr)
	}

	s.log.Info("race scored", append(fields,
		zap.Int64("ruleset_id", rs.ID),
		zap.Int("predictions", len(preds)),
		zap.Int("written", report.Written),
		zap.Int("deleted", report.Deleted),
	)...)
	return out, nil
}

// PublishResult stores the official result and recomputes the race before
// returning.
func (s *Scorer) PublishResult(ctx context.Context, raceID int64, result scoring.OfficialResult) (*RaceOutcome, error) {
	if err := validateResult(result); err != nil {
		return nil, err
	}
	if err := s.store.SaveResult(ctx, raceID, result); err != nil {
		return nil, fmt.Errorf("publish result for race %d: %w", raceID, err)
	}
	s.log.Info("result published", zap.Int64("race_id", raceID), zap.Strings("order", result.Order), zap.Bool("first_place_tie", result.FirstPlaceTie))
	return s.RecalculateRace(ctx, raceID)
}

// RecalculatePool recomputes every published race of a pool. A failing race
// does not stop the others; all errors are joined.
func (s *Scorer) RecalculatePool(ctx context.Context, poolID int64) ([]*RaceOutcome, error) {
	races, err := s.store.PublishedRaces(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list published races for pool %d: %w", poolID, err)
	}

	outs := make([]*RaceOutcome, 0, len(races))
	var errs []error
	for _, r := range races {
		out, err := s.RecalculateRace(ctx, r.ID)
		if out != nil {
			outs = append(outs, out)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.log.Info("pool recomputed", zap.Int64("pool_id", poolID), zap.Int("races", len(races)), zap.Int("failed", len(errs)))
	return outs, errors.Join(errs...)
}

func validateResult(r scoring.OfficialResult) error {
	if len(r.Order) == 0 || len(r.Order) > 4 {
		return fmt.Errorf("%w: order must list 1 to 4 outcomes", ErrInvalidResult)
	}
	if r.FirstPlaceTie && len(r.Order) < 2 {
		return fmt.Errorf("%w: a first place tie needs two outcomes", ErrInvalidResult)
	}
	seen := map[string]bool{}
	for _, o := range r.Order {
		if o == "" {
			return fmt.Errorf("%w: empty outcome", ErrInvalidResult)
		}
		if seen[o] {
			return fmt.Errorf("%w: %q listed twice", ErrInvalidResult, o)
		}
		seen[o] = true
	}
	return nil
}
