// Package store is the PostgreSQL repository for pools, races, rulesets,
// predictions and derived scores.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a bun connection.
type Store struct {
	db *bun.DB
}

// New creates a Store on db.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// UserByName looks up an account by username.
func (s *Store) UserByName(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	err := s.db.NewSelect().Model(u).Where("username = ?", username).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// SaveUser inserts an account or replaces the password of an existing one.
func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	_, err := s.db.NewInsert().Model(u).
		On("CONFLICT (username) DO UPDATE SET password = EXCLUDED.password").
		Returning("id").
		Exec(ctx)
	return err
}

// CreatePool inserts a new pool.
func (s *Store) CreatePool(ctx context.Context, name string) (*models.Pool, error) {
	p := &models.Pool{Name: name, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(p).Returning("id").Exec(ctx); err != nil {
		return nil, fmt.Errorf("create pool %q: %w", name, err)
	}
	return p, nil
}

// AddAccountMember enrolls a registered account in a pool. Enrolling twice
// returns the existing membership. Predictions and scores the account made in
// the pool before it was enrolled are moved onto the membership in the same
// transaction, so the account never counts as two participants in one race.
func (s *Store) AddAccountMember(ctx context.Context, poolID, accountID int64, displayName string) (*models.Member, error) {
	m := &models.Member{
		ID:          uuid.NewString(),
		PoolID:      poolID,
		AccountID:   &accountID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(m).
			On("CONFLICT (pool_id, account_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("add member to pool %d: %w", poolID, err)
		}
		if err := tx.NewSelect().Model(m).
			Where("pool_id = ?", poolID).
			Where("account_id = ?", accountID).
			Scan(ctx); err != nil {
			return notFound(err)
		}
		return adoptAccountRows(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// adoptAccountRows re-keys the account-only predictions and scores of an
// enrolled account in its pool onto the membership. Where the membership
// already has a row for the race the account-only row is dropped.
func adoptAccountRows(ctx context.Context, tx bun.Tx, m *models.Member) error {
	poolRaces := tx.NewSelect().Model((*models.Race)(nil)).Column("id").Where("pool_id = ?", m.PoolID)

	_, err := tx.NewDelete().Model((*models.Prediction)(nil)).
		Where("member_id IS NULL").
		Where("account_id = ?", *m.AccountID).
		Where("race_id IN (?)", poolRaces).
		Where("EXISTS (SELECT 1 FROM predictions o WHERE o.race_id = pd.race_id AND o.member_id = ?)", m.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("drop shadowed predictions of account %d: %w", *m.AccountID, err)
	}
	_, err = tx.NewUpdate().Model((*models.Prediction)(nil)).
		Set("member_id = ?", m.ID).
		Where("member_id IS NULL").
		Where("account_id = ?", *m.AccountID).
		Where("race_id IN (?)", poolRaces).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("re-key predictions of account %d: %w", *m.AccountID, err)
	}

	_, err = tx.NewDelete().Model((*models.Score)(nil)).
		Where("account_id = ?", *m.AccountID).
		Where("pool_id = ?", m.PoolID).
		Where("EXISTS (SELECT 1 FROM scores o WHERE o.race_id = s.race_id AND o.member_id = ?)", m.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("drop shadowed scores of account %d: %w", *m.AccountID, err)
	}
	_, err = tx.NewUpdate().Model((*models.Score)(nil)).
		Set("member_id = ?", m.ID).
		Set("account_id = NULL").
		Where("account_id = ?", *m.AccountID).
		Where("pool_id = ?", m.PoolID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("re-key scores of account %d: %w", *m.AccountID, err)
	}
	return nil
}

// AddGuestMember enrolls a guest with no account. Guests get a fresh
// membership id every time.
func (s *Store) AddGuestMember(ctx context.Context, poolID int64, displayName string) (*models.Member, error) {
	m := &models.Member{
		ID:          uuid.NewString(),
		PoolID:      poolID,
		DisplayName: displayName,
		Guest:       true,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return nil, fmt.Errorf("add guest to pool %d: %w", poolID, err)
	}
	return m, nil
}

// MemberByAccount finds the membership of an account in a pool.
func (s *Store) MemberByAccount(ctx context.Context, poolID, accountID int64) (*models.Member, error) {
	m := &models.Member{}
	err := s.db.NewSelect().Model(m).
		Where("pool_id = ?", poolID).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// Member loads a membership by id.
func (s *Store) Member(ctx context.Context, id string) (*models.Member, error) {
	m := &models.Member{}
	if err := s.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// CreateRace inserts a race into a pool's calendar.
func (s *Store) CreateRace(ctx context.Context, r *models.Race) error {
	if _, err := s.db.NewInsert().Model(r).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("create race: %w", err)
	}
	return nil
}

// Race loads a race by id.
func (s *Store) Race(ctx context.Context, raceID int64) (*models.Race, error) {
	r := &models.Race{}
	if err := s.db.NewSelect().Model(r).Where("id = ?", raceID).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// PublishedRaces lists a pool's races that have an official result, in
// calendar order.
func (s *Store) PublishedRaces(ctx context.Context, poolID int64) ([]models.Race, error) {
	var races []models.Race
	err := s.db.NewSelect().Model(&races).
		Where("pool_id = ?", poolID).
		Where("published").
		Order("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return races, nil
}

// CreateRuleset stores a new ruleset version.
func (s *Store) CreateRuleset(ctx context.Context, rs *models.Ruleset) error {
	if _, err := s.db.NewInsert().Model(rs).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("create ruleset: %w", err)
	}
	return nil
}

// ActiveRuleset returns the ruleset in force for the race at sequence: the
// newest version whose EffectiveFromRaceSequence is not after it.
func (s *Store) ActiveRuleset(ctx context.Context, poolID int64, sequence int) (*models.Ruleset, error) {
	rs := &models.Ruleset{}
	err := s.db.NewSelect().Model(rs).
		Where("pool_id = ?", poolID).
		Where("effective_from_race_sequence <= ?", sequence).
		Order("effective_from_race_sequence DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return rs, nil
}

// SaveResult stores the official result and marks the race published.
func (s *Store) SaveResult(ctx context.Context, raceID int64, result scoring.OfficialResult) error {
	row := &models.Result{
		RaceID:        raceID,
		FinishOrder:   result.Order,
		FirstPlaceTie: result.FirstPlaceTie,
		PublishedAt:   time.Now().UTC(),
	}
	if row.FinishOrder == nil {
		row.FinishOrder = []string{}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(row).
			On("CONFLICT (race_id) DO UPDATE").
			Set("finish_order = EXCLUDED.finish_order").
			Set("first_place_tie = EXCLUDED.first_place_tie").
			Set("published_at = EXCLUDED.published_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("save result for race %d: %w", raceID, err)
		}
		res, err := tx.NewUpdate().Model((*models.Race)(nil)).
			Set("published = true").
			Where("id = ?", raceID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark race %d published: %w", raceID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// OfficialResult loads the published result of a race.
func (s *Store) OfficialResult(ctx context.Context, raceID int64) (*scoring.OfficialResult, error) {
	row := &models.Result{}
	if err := s.db.NewSelect().Model(row).Where("race_id = ?", raceID).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return &scoring.OfficialResult{Order: row.FinishOrder, FirstPlaceTie: row.FirstPlaceTie}, nil
}

// Predictions returns every prediction for a race in submission order.
func (s *Store) Predictions(ctx context.Context, raceID int64) ([]models.Prediction, error) {
	var preds []models.Prediction
	err := s.db.NewSelect().Model(&preds).
		Where("race_id = ?", raceID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return preds, nil
}

// UpsertPrediction inserts a prediction or replaces the participant's picks.
// A prediction keyed by a membership that also carries the account id
// supersedes any account-only prediction that account made for the race.
func (s *Store) UpsertPrediction(ctx context.Context, p *models.Prediction) error {
	p.UpdatedAt = time.Now().UTC()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if p.MemberID != nil && p.AccountID != nil {
			_, err := tx.NewDelete().Model((*models.Prediction)(nil)).
				Where("race_id = ?", p.RaceID).
				Where("member_id IS NULL").
				Where("account_id = ?", *p.AccountID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		_, err := tx.NewInsert().Model(p).
			On("CONFLICT (race_id, (" + ParticipantExpr + ")) DO UPDATE").
			Set("account_id = EXCLUDED.account_id").
			Set("winner_pick = EXCLUDED.winner_pick").
			Set("exacta_pick = EXCLUDED.exacta_pick").
			Set("trifecta_pick = EXCLUDED.trifecta_pick").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("id").
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("save prediction for race %d: %w", p.RaceID, err)
	}
	return nil
}
