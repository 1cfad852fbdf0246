package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/racepool/scoring"
)

// Score is derived state written only by the recompute path.
type Score struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ID          int64             `bun:"id,pk,autoincrement" json:"id"`
	PoolID      int64             `bun:"pool_id,notnull" json:"poolID"`
	RaceID      int64             `bun:"race_id,notnull" json:"raceID"`
	MemberID    *string           `bun:"member_id" json:"memberID,omitempty"`
	AccountID   *int64            `bun:"account_id" json:"accountID,omitempty"`
	PointsTotal int               `bun:"points_total,notnull" json:"pointsTotal"`
	Breakdown   scoring.Breakdown `bun:"breakdown,notnull,type:jsonb" json:"breakdown"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
