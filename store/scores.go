package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
)

// ParticipantExpr is the participant identity the prediction and score
// unique indexes are built on. It matches scoring.ResolvedKey.String.
const ParticipantExpr = `COALESCE('m:' || member_id, 'a:' || account_id::text)`

// SaveReport describes one SaveScores call. Failed holds the participants
// whose row could not be written; their previous row, if any, is kept.
type SaveReport struct {
	Written int
	Deleted int
	Failed  map[string]error
}

// Err joins the per-participant failures, nil when there are none.
func (r SaveReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Failed))
	for k := range r.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, fmt.Errorf("%s: %w", k, r.Failed[k]))
	}
	return errors.Join(errs...)
}

func (r *SaveReport) fail(key string, err error) {
	if r.Failed == nil {
		r.Failed = map[string]error{}
	}
	r.Failed[key] = err
}

// scoreRow maps an engine score onto the scores table, setting exactly one
// of the two key columns.
func scoreRow(poolID, raceID int64, sc scoring.Score, now time.Time) (*models.Score, error) {
	row := &models.Score{
		PoolID:      poolID,
		RaceID:      raceID,
		PointsTotal: sc.PointsTotal,
		Breakdown:   sc.Breakdown,
		UpdatedAt:   now,
	}
	switch sc.Participant.Kind {
	case scoring.KindMembership:
		id := sc.Participant.ID
		row.MemberID = &id
	case scoring.KindAccount:
		id, err := strconv.ParseInt(sc.Participant.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("account id %q: %w", sc.Participant.ID, err)
		}
		row.AccountID = &id
	default:
		return nil, fmt.Errorf("unresolved participant key")
	}
	return row, nil
}

// SaveScores replaces the stored scores of a race with scores. The whole call
// runs in one transaction holding a per-race advisory lock, so concurrent
// recomputes of the same race queue up instead of interleaving. Each row is an
// upsert on (race_id, participant); a row that fails is rolled back to its
// savepoint and reported without aborting the rest. Rows of participants that
// are no longer in scores are deleted.
func (s *Store) SaveScores(ctx context.Context, poolID, raceID int64, scores []scoring.Score) (SaveReport, error) {
	var report SaveReport
	now := time.Now().UTC()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		report = SaveReport{}
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", raceID); err != nil {
			return fmt.Errorf("lock race %d: %w", raceID, err)
		}

		keep := make([]string, 0, len(scores))
		for _, sc := range scores {
			key := sc.Participant.String()
			row, err := scoreRow(poolID, raceID, sc, now)
			if err != nil {
				report.fail(key, err)
				continue
			}
			keep = append(keep, key)

			if _, err := tx.ExecContext(ctx, "SAVEPOINT score_write"); err != nil {
				return err
			}
			_, err = tx.NewInsert().Model(row).
				On("CONFLICT (race_id, (" + ParticipantExpr + ")) DO UPDATE").
				Set("pool_id = EXCLUDED.pool_id").
				Set("points_total = EXCLUDED.points_total").
				Set("breakdown = EXCLUDED.breakdown").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT score_write"); rbErr != nil {
					return fmt.Errorf("rollback after %v: %w", err, rbErr)
				}
				report.fail(key, err)
				continue
			}
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT score_write"); err != nil {
				return err
			}
			report.Written++
		}

		del := tx.NewDelete().Model((*models.Score)(nil)).Where("race_id = ?", raceID)
		if len(keep) > 0 {
			del = del.Where(ParticipantExpr+" NOT IN (?)", bun.In(keep))
		}
		res, err := del.Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete stale scores for race %d: %w", raceID, err)
		}
		n, _ := res.RowsAffected()
		report.Deleted = int(n)
		return nil
	})
	if err != nil {
		return SaveReport{}, err
	}
	return report, nil
}

// RaceScores returns the stored scores of a race, best first.
func (s *Store) RaceScores(ctx context.Context, raceID int64) ([]models.Score, error) {
	var scores []models.Score
	err := s.db.NewSelect().Model(&scores).
		Where("race_id = ?", raceID).
		Order("points_total DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// Standing is one row of a pool leaderboard.
type Standing struct {
	MemberID    *string `bun:"member_id" json:"memberID,omitempty"`
	AccountID   *int64  `bun:"account_id" json:"accountID,omitempty"`
	DisplayName string  `bun:"display_name" json:"displayName"`
	Points      int     `bun:"points" json:"points"`
	Races       int     `bun:"races" json:"races"`
}

const leaderboardSQL = `
SELECT
	s.member_id, s.account_id,
	COALESCE(m.display_name, u.username, '') AS display_name,
	SUM(s.points_total)::integer AS points,
	COUNT(*)::integer AS races
FROM scores s
LEFT JOIN members m ON m.id = s.member_id
LEFT JOIN users   u ON u.id = s.account_id
WHERE s.pool_id = ?
GROUP BY s.member_id, s.account_id, m.display_name, u.username
ORDER BY points DESC, display_name ASC
`

// Leaderboard sums every stored score of a pool per participant.
func (s *Store) Leaderboard(ctx context.Context, poolID int64) ([]Standing, error) {
	var rows []Standing
	if err := s.db.NewRaw(leaderboardSQL, poolID).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
