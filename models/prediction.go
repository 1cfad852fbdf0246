package models

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/racepool/scoring"
)

// Prediction holds one participant's picks for a race. Exactly one of
// MemberID and AccountID identifies the participant; MemberID wins when both
// are present.
type Prediction struct {
	bun.BaseModel `bun:"table:predictions,alias:pd"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	RaceID       int64     `bun:"race_id,notnull" json:"raceID"`
	MemberID     *string   `bun:"member_id" json:"memberID,omitempty"`
	AccountID    *int64    `bun:"account_id" json:"accountID,omitempty"`
	WinnerPick   *string   `bun:"winner_pick" json:"winnerPick,omitempty"`
	ExactaPick   []string  `bun:"exacta_pick,type:jsonb" json:"exactaPick,omitempty"`
	TrifectaPick []string  `bun:"trifecta_pick,type:jsonb" json:"trifectaPick,omitempty"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Participant returns the prediction's participant key.
func (p *Prediction) Participant() scoring.ParticipantKey {
	var k scoring.ParticipantKey
	if p.MemberID != nil {
		k.MembershipID = *p.MemberID
	}
	if p.AccountID != nil {
		k.AccountID = strconv.FormatInt(*p.AccountID, 10)
	}
	return k
}

// Picks converts the row into the engine's prediction.
func (p *Prediction) Picks() scoring.Prediction {
	out := scoring.Prediction{
		Participant:  p.Participant(),
		ExactaPick:   p.ExactaPick,
		TrifectaPick: p.TrifectaPick,
	}
	if p.WinnerPick != nil {
		out.WinnerPick = *p.WinnerPick
	}
	return out
}
