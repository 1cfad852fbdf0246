// Package scoring turns an official race result, the pool's active ruleset and
// the submitted predictions into per-participant point breakdowns.
//
// Everything here is pure: no storage, no clocks, no shared state. Callers load
// the inputs and persist the output.
package scoring

import (
	"errors"
	"fmt"
)

// Modality is a betting category with its own matching rule.
type Modality string

const (
	Winner   Modality = "winner"
	Exacta   Modality = "exacta"
	Trifecta Modality = "trifecta"
	Place    Modality = "place"
)

// Modalities lists every known modality in breakdown order.
var Modalities = []Modality{Winner, Exacta, Trifecta, Place}

var (
	// ErrNoRuleset means the pool has no active ruleset for the race.
	ErrNoRuleset = errors.New("scoring: no ruleset")
	// ErrNoPointsTable means the ruleset carries no points table.
	ErrNoPointsTable = errors.New("scoring: ruleset has no points table")
)

// Ruleset is one version of a pool's scoring rules.
type Ruleset struct {
	// PointsTable maps finish rank (1..4) to points. Rank 4 is optional.
	PointsTable           map[int]int `json:"pointsTable"`
	ExclusiveWinnerPoints int         `json:"exclusiveWinnerPoints"`
	EnabledModalities     []Modality  `json:"enabledModalities"`

	// Scheduling and visibility; not read by Evaluate.
	LockMinutesBeforeStart    int  `json:"lockMinutesBeforeStart"`
	SealedUntilClose          bool `json:"sealedUntilClose"`
	EffectiveFromRaceSequence int  `json:"effectiveFromRaceSequence"`
}

// Enabled reports whether m is switched on for this ruleset.
func (r *Ruleset) Enabled(m Modality) bool {
	for _, e := range r.EnabledModalities {
		if e == m {
			return true
		}
	}
	return false
}

// Points returns the table value for rank, 0 when the rank is not configured.
func (r *Ruleset) Points(rank int) int {
	return r.PointsTable[rank]
}

// Validate checks a ruleset before it is stored.
func (r *Ruleset) Validate() error {
	if r == nil {
		return ErrNoRuleset
	}
	if len(r.PointsTable) == 0 {
		return ErrNoPointsTable
	}
	for rank, pts := range r.PointsTable {
		if rank < 1 || rank > 4 {
			return fmt.Errorf("scoring: points table rank %d out of range 1..4", rank)
		}
		if pts < 0 {
			return fmt.Errorf("scoring: negative points for rank %d", rank)
		}
	}
	for _, rank := range []int{1, 2, 3} {
		if _, ok := r.PointsTable[rank]; !ok {
			return fmt.Errorf("scoring: points table missing rank %d", rank)
		}
	}
	if r.ExclusiveWinnerPoints < 0 {
		return errors.New("scoring: negative exclusive winner points")
	}
	if r.LockMinutesBeforeStart < 0 {
		return errors.New("scoring: negative lock window")
	}
	for _, m := range r.EnabledModalities {
		switch m {
		case Winner, Exacta, Trifecta, Place:
		default:
			return fmt.Errorf("scoring: unknown modality %q", m)
		}
	}
	return nil
}

// OfficialResult is the published finishing order, 1st place first.
// With FirstPlaceTie the first two entries share 1st place.
type OfficialResult struct {
	Order         []string `json:"order"`
	FirstPlaceTie bool     `json:"firstPlaceTie,omitempty"`
}

// ParticipantKey identifies who a prediction belongs to. MembershipID covers
// registered and guest members; AccountID is only used when it is empty.
type ParticipantKey struct {
	MembershipID string `json:"membershipId,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
}

// KeyKind says which identifier a ResolvedKey came from.
type KeyKind string

const (
	KindMembership KeyKind = "membership"
	KindAccount    KeyKind = "account"
)

// ResolvedKey is a participant key reduced to exactly one identifier.
type ResolvedKey struct {
	Kind KeyKind `json:"kind"`
	ID   string  `json:"id"`
}

// String renders the key in the form the scores table indexes on.
func (k ResolvedKey) String() string {
	switch k.Kind {
	case KindMembership:
		return "m:" + k.ID
	case KindAccount:
		return "a:" + k.ID
	}
	return ""
}

// Resolve picks the membership id, falling back to the account id.
// ok is false when neither is set.
func (p ParticipantKey) Resolve() (key ResolvedKey, ok bool) {
	switch {
	case p.MembershipID != "":
		return ResolvedKey{Kind: KindMembership, ID: p.MembershipID}, true
	case p.AccountID != "":
		return ResolvedKey{Kind: KindAccount, ID: p.AccountID}, true
	}
	return ResolvedKey{}, false
}

// Prediction is one participant's picks for one race.
type Prediction struct {
	Participant  ParticipantKey `json:"participantKey"`
	WinnerPick   string         `json:"winnerPick,omitempty"`
	ExactaPick   []string       `json:"exactaPick,omitempty"`
	TrifectaPick []string       `json:"trifectaPick,omitempty"`
}

// Breakdown holds the points per modality. A nil field means the participant
// made no usable pick for that modality.
type Breakdown struct {
	Winner   *int  `json:"winner,omitempty"`
	Exacta   *int  `json:"exacta,omitempty"`
	Trifecta *int  `json:"trifecta,omitempty"`
	Place    []int `json:"place,omitempty"`
}

// Total sums every value in the breakdown, flattening Place.
func (b Breakdown) Total() int {
	total := 0
	for _, p := range []*int{b.Winner, b.Exacta, b.Trifecta} {
		if p != nil {
			total += *p
		}
	}
	for _, v := range b.Place {
		total += v
	}
	return total
}

// Score is the derived result for one participant in one race.
type Score struct {
	PoolID      int64       `json:"poolId"`
	RaceID      int64       `json:"raceId"`
	Participant ResolvedKey `json:"participantKey"`
	PointsTotal int         `json:"pointsTotal"`
	Breakdown   Breakdown   `json:"breakdown"`
}
