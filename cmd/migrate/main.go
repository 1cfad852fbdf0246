// cmd/migrate/main.go
// Imports pools from the legacy MySQL pool database into PostgreSQL and then
// rescores every published race with the current engine.
//
// Usage:
//
//	MYSQL_DSN="user:pass@tcp(host:3306)/pools?parseTime=true" \
//	DB_PASS="pgpass" \
//	go run ./cmd/migrate
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"

	"github.com/padraicbc/racepool/config"
	bundb "github.com/padraicbc/racepool/db"
	applog "github.com/padraicbc/racepool/logger"
	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/service"
	"github.com/padraicbc/racepool/store"
)

const batchSize = 500

func main() {
	ctx := context.Background()

	cfg := config.Load()

	// --- MySQL ---
	if cfg.MySQLDSN == "" {
		log.Fatal("MYSQL_DSN required, e.g.: user:pass@tcp(host:3306)/pools?parseTime=true")
	}
	myDB, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("open mysql: %v", err)
	}
	defer myDB.Close()
	myDB.SetMaxOpenConns(4)
	if err := myDB.PingContext(ctx); err != nil {
		log.Fatalf("ping mysql: %v", err)
	}
	log.Println("connected to MySQL")

	// --- PostgreSQL ---
	pgDB := bundb.Setup(cfg)
	defer pgDB.Close()
	log.Println("connected to PostgreSQL")

	if err := bundb.CreateTables(ctx, pgDB); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	steps := []struct {
		name string
		fn   func() (int, error)
	}{
		{"users", func() (int, error) { return copyRows(ctx, myDB, pgDB, usersQuery, scanUser) }},
		{"pools", func() (int, error) { return copyRows(ctx, myDB, pgDB, poolsQuery, scanPool) }},
		{"members", func() (int, error) { return copyRows(ctx, myDB, pgDB, membersQuery, scanMember) }},
		{"rulesets", func() (int, error) { return copyRows(ctx, myDB, pgDB, rulesetsQuery, scanRuleset) }},
		{"races", func() (int, error) { return copyRows(ctx, myDB, pgDB, racesQuery, scanRace) }},
		{"results", func() (int, error) { return copyRows(ctx, myDB, pgDB, resultsQuery, scanResult) }},
		{"predictions", func() (int, error) { return copyRows(ctx, myDB, pgDB, predictionsQuery, scanPrediction) }},
	}

	for _, s := range steps {
		n, err := s.fn()
		if err != nil {
			log.Fatalf("migrate %s: %v", s.name, err)
		}
		log.Printf("%-15s  %d rows migrated", s.name, n)
	}

	resetSequences(ctx, pgDB)

	if err := rescore(ctx, pgDB, cfg.Debug); err != nil {
		log.Fatalf("rescore: %v", err)
	}
	log.Println("migration complete")
}

// rescore recomputes every published race so imported pools carry scores
// produced by the current engine rather than the legacy totals.
func rescore(ctx context.Context, pgDB *bun.DB, debug bool) error {
	zl, err := applog.New(debug)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	var pools []models.Pool
	if err := pgDB.NewSelect().Model(&pools).Order("id").Scan(ctx); err != nil {
		return err
	}

	scorer := service.New(store.New(pgDB), zl, nil)
	for _, p := range pools {
		outs, err := scorer.RecalculatePool(ctx, p.ID)
		if err != nil {
			// Pools with races but no rules are reported and left unscored.
			log.Printf("pool %d (%s): %v", p.ID, p.Name, err)
		}
		written := 0
		for _, o := range outs {
			written += o.Written
		}
		log.Printf("pool %-4d %d races rescored, %d scores written", p.ID, len(outs), written)
	}
	return nil
}

// --- helpers ---

func nullStr(n sql.NullString) *string {
	if !n.Valid || n.String == "" {
		return nil
	}
	return &n.String
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// splitList splits the legacy comma-separated pick and order columns.
func splitList(n sql.NullString) []string {
	if !n.Valid || strings.TrimSpace(n.String) == "" {
		return nil
	}
	parts := strings.Split(n.String, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// bulkInsert inserts a batch, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, pgDB *bun.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := pgDB.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

// copyRows streams query results from MySQL through scan and writes them to
// PostgreSQL in batches. scan may return ok=false to skip a row.
func copyRows[T any](ctx context.Context, myDB *sql.DB, pgDB *bun.DB, query string, scan func(*sql.Rows) (T, bool, error)) (int, error) {
	rows, err := myDB.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	batch := make([]T, 0, batchSize)
	total := 0
	for rows.Next() {
		r, ok, err := scan(rows)
		if err != nil {
			return total, err
		}
		if !ok {
			continue
		}
		batch = append(batch, r)
		if len(batch) >= batchSize {
			if err := bulkInsert(ctx, pgDB, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := bulkInsert(ctx, pgDB, batch); err != nil {
		return total, err
	}
	return total + len(batch), rows.Err()
}

// --- per-table mappings ---

const usersQuery = "SELECT id, username, password FROM users"

func scanUser(rows *sql.Rows) (models.User, bool, error) {
	var u models.User
	err := rows.Scan(&u.ID, &u.Username, &u.Password)
	u.CreatedAt = time.Now().UTC()
	return u, err == nil, err
}

const poolsQuery = "SELECT id, name, created_at FROM pools"

func scanPool(rows *sql.Rows) (models.Pool, bool, error) {
	var p models.Pool
	err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt)
	return p, err == nil, err
}

const membersQuery = "SELECT id, pool_id, user_id, display_name, is_guest FROM pool_members"

func scanMember(rows *sql.Rows) (models.Member, bool, error) {
	var (
		m       models.Member
		account sql.NullInt64
	)
	if err := rows.Scan(&m.ID, &m.PoolID, &account, &m.DisplayName, &m.Guest); err != nil {
		return m, false, err
	}
	m.AccountID = nullInt(account)
	m.CreatedAt = time.Now().UTC()
	return m, true, nil
}

const rulesetsQuery = `SELECT id, pool_id, pts_first, pts_second, pts_third, pts_fourth,
        pts_exclusive_winner, modalities, lock_minutes, sealed, from_race_seq
 FROM pool_rules`

func scanRuleset(rows *sql.Rows) (models.Ruleset, bool, error) {
	var (
		rs                      models.Ruleset
		first, second, third    int
		fourth                  sql.NullInt64
		modalities              sql.NullString
		lockMinutes, fromRaceSq sql.NullInt64
	)
	if err := rows.Scan(&rs.ID, &rs.PoolID, &first, &second, &third, &fourth,
		&rs.ExclusiveWinnerPoints, &modalities, &lockMinutes, &rs.SealedUntilClose, &fromRaceSq); err != nil {
		return rs, false, err
	}
	rs.PointsTable = map[int]int{1: first, 2: second, 3: third}
	if fourth.Valid {
		rs.PointsTable[4] = int(fourth.Int64)
	}
	for _, m := range splitList(modalities) {
		rs.EnabledModalities = append(rs.EnabledModalities, scoring.Modality(strings.ToLower(m)))
	}
	if len(rs.EnabledModalities) == 0 {
		rs.EnabledModalities = scoring.Modalities
	}
	rs.LockMinutesBeforeStart = int(lockMinutes.Int64)
	rs.EffectiveFromRaceSequence = int(fromRaceSq.Int64)
	rs.CreatedAt = time.Now().UTC()

	if err := rs.Rules().Validate(); err != nil {
		log.Printf("skipping ruleset %d of pool %d: %v", rs.ID, rs.PoolID, err)
		return rs, false, nil
	}
	return rs, true, nil
}

const racesQuery = "SELECT id, pool_id, seq, name, starts_at, COALESCE(result_order, '') <> '' FROM races"

func scanRace(rows *sql.Rows) (models.Race, bool, error) {
	var r models.Race
	err := rows.Scan(&r.ID, &r.PoolID, &r.Sequence, &r.Name, &r.StartsAt, &r.Published)
	r.StartsAt = r.StartsAt.UTC()
	return r, err == nil, err
}

const resultsQuery = `SELECT id, result_order, first_place_tie, COALESCE(result_at, starts_at)
 FROM races WHERE COALESCE(result_order, '') <> ''`

func scanResult(rows *sql.Rows) (models.Result, bool, error) {
	var (
		r     models.Result
		order sql.NullString
	)
	if err := rows.Scan(&r.RaceID, &order, &r.FirstPlaceTie, &r.PublishedAt); err != nil {
		return r, false, err
	}
	r.FinishOrder = finishOrder(r.RaceID, order)
	return r, len(r.FinishOrder) > 0, nil
}

// finishOrder parses a legacy result order. Only four places are scored, so
// longer orders are cut to four and logged.
func finishOrder(raceID int64, order sql.NullString) []string {
	out := splitList(order)
	if len(out) > 4 {
		log.Printf("race %d: finish order has %d entries, keeping the first 4", raceID, len(out))
		out = out[:4]
	}
	return out
}

const predictionsQuery = `SELECT id, race_id, member_id, user_id, winner, exacta, trifecta, updated_at
 FROM predictions`

func scanPrediction(rows *sql.Rows) (models.Prediction, bool, error) {
	var (
		p                models.Prediction
		member, winner   sql.NullString
		account          sql.NullInt64
		exacta, trifecta sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.RaceID, &member, &account, &winner, &exacta, &trifecta, &p.UpdatedAt); err != nil {
		return p, false, err
	}
	p.MemberID = nullStr(member)
	p.AccountID = nullInt(account)
	if p.MemberID == nil && p.AccountID == nil {
		log.Printf("skipping prediction %d: no participant", p.ID)
		return p, false, nil
	}
	p.WinnerPick = nullStr(winner)
	p.ExactaPick = splitList(exacta)
	p.TrifectaPick = splitList(trifecta)
	return p, true, nil
}

// resetSequences advances each PG sequence to MAX(id) so new inserts don't conflict.
func resetSequences(ctx context.Context, pgDB *bun.DB) {
	tables := []string{"users", "pools", "rulesets", "races", "predictions"}
	for _, t := range tables {
		q := fmt.Sprintf(
			"SELECT setval('%s_id_seq', COALESCE((SELECT MAX(id) FROM %s), 1))",
			t, t,
		)
		if _, err := pgDB.ExecContext(ctx, q); err != nil {
			log.Printf("reset seq %s: %v", t, err)
		}
	}
	log.Println("sequences reset")
}
