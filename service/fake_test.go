package service

import (
	"context"
	"sync"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/store"
)

// fakeStore is an in-memory Store. Every method takes the mutex so it can
// back concurrency tests; the *Func hooks override behaviour per test.
type fakeStore struct {
	mu sync.Mutex

	races       map[int64]*models.Race
	rulesets    []*models.Ruleset
	results     map[int64]scoring.OfficialResult
	predictions map[int64][]models.Prediction
	scores      map[int64]map[string]scoring.Score

	saveCalls int
	trace     []string

	SaveScoresFunc func(poolID, raceID int64, scores []scoring.Score) (store.SaveReport, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		races:       map[int64]*models.Race{},
		results:     map[int64]scoring.OfficialResult{},
		predictions: map[int64][]models.Prediction{},
		scores:      map[int64]map[string]scoring.Score{},
	}
}

func (f *fakeStore) record(step string) { f.trace = append(f.trace, step) }

func (f *fakeStore) Race(_ context.Context, raceID int64) (*models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Race")
	r, ok := f.races[raceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) PublishedRaces(_ context.Context, poolID int64) ([]models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Race
	for id := int64(1); id <= int64(len(f.races)); id++ {
		if r, ok := f.races[id]; ok && r.PoolID == poolID && r.Published {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveRuleset(_ context.Context, poolID int64, sequence int) (*models.Ruleset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Ruleset
	for _, rs := range f.rulesets {
		if rs.PoolID != poolID || rs.EffectiveFromRaceSequence > sequence {
			continue
		}
		if best == nil || rs.EffectiveFromRaceSequence >= best.EffectiveFromRaceSequence {
			best = rs
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) SaveResult(_ context.Context, raceID int64, result scoring.OfficialResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SaveResult")
	r, ok := f.races[raceID]
	if !ok {
		return store.ErrNotFound
	}
	r.Published = true
	f.results[raceID] = result
	return nil
}

func (f *fakeStore) OfficialResult(_ context.Context, raceID int64) (*scoring.OfficialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[raceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &res, nil
}

func (f *fakeStore) Predictions(_ context.Context, raceID int64) ([]models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Predictions")
	return append([]models.Prediction(nil), f.predictions[raceID]...), nil
}

func (f *fakeStore) UpsertPrediction(_ context.Context, p *models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertPrediction")
	key, _ := p.Participant().Resolve()
	preds := f.predictions[p.RaceID]
	for i := range preds {
		if k, _ := preds[i].Participant().Resolve(); k == key {
			preds[i] = *p
			return nil
		}
	}
	f.predictions[p.RaceID] = append(preds, *p)
	return nil
}

func (f *fakeStore) SaveScores(_ context.Context, poolID, raceID int64, scores []scoring.Score) (store.SaveReport, error) {
	f.mu.Lock()
	f.record("SaveScores")
	f.saveCalls++
	hook := f.SaveScoresFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(poolID, raceID, scores)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rows := map[string]scoring.Score{}
	for _, sc := range scores {
		rows[sc.Participant.String()] = sc
	}
	deleted := 0
	for k := range f.scores[raceID] {
		if _, ok := rows[k]; !ok {
			deleted++
		}
	}
	f.scores[raceID] = rows
	return store.SaveReport{Written: len(rows), Deleted: deleted}, nil
}

func (f *fakeStore) RaceScores(_ context.Context, raceID int64) ([]models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Score
	for _, sc := range f.scores[raceID] {
		out = append(out, models.Score{RaceID: raceID, PoolID: sc.PoolID, PointsTotal: sc.PointsTotal, Breakdown: sc.Breakdown})
	}
	return out, nil
}

func (f *fakeStore) Leaderboard(_ context.Context, poolID int64) ([]store.Standing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := map[string]int{}
	for _, rows := range f.scores {
		for k, sc := range rows {
			if sc.PoolID == poolID {
				totals[k] += sc.PointsTotal
			}
		}
	}
	out := []store.Standing{}
	for k, pts := range totals {
		out = append(out, store.Standing{DisplayName: k, Points: pts})
	}
	return out, nil
}

var _ Store = (*fakeStore)(nil)
