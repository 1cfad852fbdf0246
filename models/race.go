package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Race is one race in a pool's calendar. Sequence orders races within the
// pool and decides which ruleset version applies.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	PoolID    int64     `bun:"pool_id,notnull,unique:races_pool_sequence" json:"poolID"`
	Sequence  int       `bun:"sequence,notnull,unique:races_pool_sequence" json:"sequence"`
	Name      string    `bun:"name,notnull" json:"name"`
	StartsAt  time.Time `bun:"starts_at,notnull" json:"startsAt"`
	Published bool      `bun:"published,notnull,default:false" json:"published"`
}

// Result is the official finishing order of a race.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	RaceID        int64     `bun:"race_id,pk" json:"raceID"`
	FinishOrder   []string  `bun:"finish_order,notnull,type:jsonb" json:"order"`
	FirstPlaceTie bool      `bun:"first_place_tie,notnull,default:false" json:"firstPlaceTie"`
	PublishedAt   time.Time `bun:"published_at,notnull,default:current_timestamp" json:"publishedAt"`
}
