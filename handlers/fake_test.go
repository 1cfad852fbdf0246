package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/service"
	"github.com/padraicbc/racepool/store"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]*models.User
	members  map[string]*models.Member
	races    map[int64]*models.Race
	rulesets []*models.Ruleset
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]*models.User{},
		members: map[string]*models.Member{},
		races:   map[int64]*models.Race{},
	}
}

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) UserByName(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) SaveUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.users[u.Username]; ok {
		u.ID = old.ID
	} else {
		u.ID = f.id()
	}
	f.users[u.Username] = u
	return nil
}

func (f *fakeStore) CreatePool(_ context.Context, name string) (*models.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Pool{ID: f.id(), Name: name}, nil
}

func (f *fakeStore) AddAccountMember(_ context.Context, poolID, accountID int64, displayName string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.PoolID == poolID && m.AccountID != nil && *m.AccountID == accountID {
			return m, nil
		}
	}
	m := &models.Member{ID: "member-" + displayName, PoolID: poolID, AccountID: &accountID, DisplayName: displayName}
	f.members[m.ID] = m
	return m, nil
}

func (f *fakeStore) AddGuestMember(_ context.Context, poolID int64, displayName string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &models.Member{ID: "guest-" + displayName, PoolID: poolID, DisplayName: displayName, Guest: true}
	f.members[m.ID] = m
	return m, nil
}

func (f *fakeStore) MemberByAccount(_ context.Context, poolID, accountID int64) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.PoolID == poolID && m.AccountID != nil && *m.AccountID == accountID {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) Member(_ context.Context, id string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) CreateRace(_ context.Context, r *models.Race) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	f.races[r.ID] = r
	return nil
}

func (f *fakeStore) Race(_ context.Context, raceID int64) (*models.Race, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.races[raceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) CreateRuleset(_ context.Context, rs *models.Ruleset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs.ID = f.id()
	f.rulesets = append(f.rulesets, rs)
	return nil
}

// fakeScorer records what the handlers pass down and returns canned values.
type fakeScorer struct {
	mu sync.Mutex

	published   []scoring.OfficialResult
	submitted   []*models.Prediction
	viewers     []scoring.ParticipantKey
	recomputed  []int64
	outcome     *service.RaceOutcome
	outcomes    []*service.RaceOutcome
	predictions []models.Prediction
	scores      []models.Score
	standings   []store.Standing
	err         error
}

func (f *fakeScorer) PublishResult(_ context.Context, raceID int64, result scoring.OfficialResult) (*service.RaceOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, result)
	return f.outcome, f.err
}

func (f *fakeScorer) RecalculateRace(_ context.Context, raceID int64) (*service.RaceOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputed = append(f.recomputed, raceID)
	return f.outcome, f.err
}

func (f *fakeScorer) RecalculatePool(_ context.Context, poolID int64) ([]*service.RaceOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes, f.err
}

func (f *fakeScorer) SubmitPrediction(_ context.Context, p *models.Prediction, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, p)
	return nil
}

func (f *fakeScorer) RacePredictions(_ context.Context, raceID int64, viewer scoring.ParticipantKey, _ time.Time) ([]models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewers = append(f.viewers, viewer)
	return f.predictions, f.err
}

func (f *fakeScorer) RaceScores(_ context.Context, raceID int64) ([]models.Score, error) {
	return f.scores, f.err
}

func (f *fakeScorer) Leaderboard(_ context.Context, poolID int64) ([]store.Standing, error) {
	return f.standings, f.err
}

var (
	_ Store  = (*fakeStore)(nil)
	_ Scorer = (*fakeScorer)(nil)
)
