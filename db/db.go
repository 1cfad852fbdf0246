package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/padraicbc/racepool/config"
	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/store"
)

// Setup opens a PostgreSQL connection using the provided config.
func Setup(cfg *config.Config) *bun.DB {
	db, err := Open(context.Background(), cfg.PostgresDSN(), cfg.Debug)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	return db
}

// Open connects to dsn and pings it.
func Open(ctx context.Context, dsn string, debug bool) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// CreateTables creates all tables in dependency order.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Pool)(nil),
		(*models.Member)(nil),
		(*models.Race)(nil),
		(*models.Ruleset)(nil),
		(*models.Result)(nil),
		(*models.Prediction)(nil),
		(*models.Score)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	stmts := []string{
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'predictions_one_key') THEN ALTER TABLE predictions ADD CONSTRAINT predictions_one_key CHECK (member_id IS NOT NULL OR account_id IS NOT NULL); END IF; END $$`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'scores_one_key') THEN ALTER TABLE scores ADD CONSTRAINT scores_one_key CHECK ((member_id IS NULL) <> (account_id IS NULL)); END IF; END $$`,
		`CREATE UNIQUE INDEX IF NOT EXISTS predictions_race_participant ON predictions (race_id, (` + store.ParticipantExpr + `))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS scores_race_participant ON scores (race_id, (` + store.ParticipantExpr + `))`,
		`CREATE INDEX IF NOT EXISTS scores_pool_id ON scores (pool_id)`,
		`CREATE INDEX IF NOT EXISTS rulesets_pool_effective ON rulesets (pool_id, effective_from_race_sequence)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}

	return nil
}
