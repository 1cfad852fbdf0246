package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/racepool/scoring"
)

// Ruleset is a stored version of a pool's scoring rules. Versions are never
// edited; a new row with a later EffectiveFromRaceSequence supersedes them.
type Ruleset struct {
	bun.BaseModel `bun:"table:rulesets,alias:rs"`

	ID                        int64              `bun:"id,pk,autoincrement" json:"id"`
	PoolID                    int64              `bun:"pool_id,notnull" json:"poolID"`
	PointsTable               map[int]int        `bun:"points_table,notnull,type:jsonb" json:"pointsTable"`
	ExclusiveWinnerPoints     int                `bun:"exclusive_winner_points,notnull" json:"exclusiveWinnerPoints"`
	EnabledModalities         []scoring.Modality `bun:"enabled_modalities,notnull,type:jsonb" json:"enabledModalities"`
	LockMinutesBeforeStart    int                `bun:"lock_minutes_before_start,notnull,default:0" json:"lockMinutesBeforeStart"`
	SealedUntilClose          bool               `bun:"sealed_until_close,notnull,default:false" json:"sealedUntilClose"`
	EffectiveFromRaceSequence int                `bun:"effective_from_race_sequence,notnull,default:0" json:"effectiveFromRaceSequence"`
	CreatedAt                 time.Time          `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Rules converts the row into the engine's ruleset.
func (r *Ruleset) Rules() *scoring.Ruleset {
	return &scoring.Ruleset{
		PointsTable:               r.PointsTable,
		ExclusiveWinnerPoints:     r.ExclusiveWinnerPoints,
		EnabledModalities:         r.EnabledModalities,
		LockMinutesBeforeStart:    r.LockMinutesBeforeStart,
		SealedUntilClose:          r.SealedUntilClose,
		EffectiveFromRaceSequence: r.EffectiveFromRaceSequence,
	}
}
