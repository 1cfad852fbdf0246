package scoring

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pts(n int) *int { return &n }

func member(id string) ParticipantKey { return ParticipantKey{MembershipID: id} }

func standardRules(mods ...Modality) *Ruleset {
	if len(mods) == 0 {
		mods = Modalities
	}
	return &Ruleset{
		PointsTable:           map[int]int{1: 5, 2: 3, 3: 1, 4: 0},
		ExclusiveWinnerPoints: 25,
		EnabledModalities:     mods,
	}
}

func TestEvaluate_ConfigurationErrors(t *testing.T) {
	_, err := Evaluate(nil, OfficialResult{Order: []string{"A"}}, []Prediction{{Participant: member("m1"), WinnerPick: "A"}})
	assert.ErrorIs(t, err, ErrNoRuleset)

	_, err = Evaluate(&Ruleset{EnabledModalities: Modalities}, OfficialResult{Order: []string{"A"}}, nil)
	assert.ErrorIs(t, err, ErrNoPointsTable)
}

func TestEvaluate_NoPredictions(t *testing.T) {
	scores, err := Evaluate(standardRules(), OfficialResult{Order: []string{"A", "B", "C"}}, nil)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

func TestEvaluate_WinnerExclusivity(t *testing.T) {
	rs := standardRules(Winner)
	result := OfficialResult{Order: []string{"A", "B", "C", "D"}}

	shared, err := Evaluate(rs, result, []Prediction{
		{Participant: member("m1"), WinnerPick: "A"},
		{Participant: member("m2"), WinnerPick: "A"},
	})
	require.NoError(t, err)
	require.Len(t, shared, 2)
	for _, s := range shared {
		assert.Equal(t, pts(5), s.Breakdown.Winner)
		assert.Equal(t, 5, s.PointsTotal)
	}

	unique, err := Evaluate(rs, result, []Prediction{
		{Participant: member("m1"), WinnerPick: "A"},
		{Participant: member("m2"), WinnerPick: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, pts(25), unique[0].Breakdown.Winner)
	assert.Equal(t, pts(0), unique[1].Breakdown.Winner)
}

func TestEvaluate_WinnerMissingPickOmitted(t *testing.T) {
	scores, err := Evaluate(standardRules(Winner), OfficialResult{Order: []string{"A"}}, []Prediction{
		{Participant: member("m1")},
	})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Nil(t, scores[0].Breakdown.Winner)
	assert.Equal(t, 0, scores[0].PointsTotal)
}

func TestEvaluate_WinnerUnderTie(t *testing.T) {
	result := OfficialResult{Order: []string{"A", "B", "C"}, FirstPlaceTie: true}
	scores, err := Evaluate(standardRules(Winner), result, []Prediction{
		{Participant: member("m1"), WinnerPick: "B"},
		{Participant: member("m2"), WinnerPick: "A"},
		{Participant: member("m3"), WinnerPick: "A"},
		{Participant: member("m4"), WinnerPick: "C"},
	})
	require.NoError(t, err)
	assert.Equal(t, pts(25), scores[0].Breakdown.Winner)
	assert.Equal(t, pts(5), scores[1].Breakdown.Winner)
	assert.Equal(t, pts(5), scores[2].Breakdown.Winner)
	assert.Equal(t, pts(0), scores[3].Breakdown.Winner)
}

func TestEvaluate_ExactaAndTrifecta(t *testing.T) {
	rs := standardRules(Exacta, Trifecta)
	tests := []struct {
		name     string
		result   OfficialResult
		pred     Prediction
		exacta   *int
		trifecta *int
	}{
		{
			name:     "exact match",
			result:   OfficialResult{Order: []string{"A", "B", "C", "D"}},
			pred:     Prediction{ExactaPick: []string{"A", "B"}, TrifectaPick: []string{"A", "B", "C"}},
			exacta:   pts(8),
			trifecta: pts(9),
		},
		{
			name:     "wrong order",
			result:   OfficialResult{Order: []string{"A", "B", "C"}},
			pred:     Prediction{ExactaPick: []string{"B", "A"}, TrifectaPick: []string{"A", "C", "B"}},
			exacta:   pts(0),
			trifecta: pts(0),
		},
		{
			name:     "tie never matches",
			result:   OfficialResult{Order: []string{"A", "B", "C"}, FirstPlaceTie: true},
			pred:     Prediction{ExactaPick: []string{"A", "B"}, TrifectaPick: []string{"A", "B", "C"}},
			exacta:   pts(0),
			trifecta: pts(0),
		},
		{
			name:     "short official order",
			result:   OfficialResult{Order: []string{"A", "B"}},
			pred:     Prediction{ExactaPick: []string{"A", "B"}, TrifectaPick: []string{"A", "B", "C"}},
			exacta:   pts(8),
			trifecta: pts(0),
		},
		{
			name:   "malformed arrays are no pick",
			result: OfficialResult{Order: []string{"A", "B", "C"}},
			pred:   Prediction{ExactaPick: []string{"A"}, TrifectaPick: []string{"A", "B", "C", "D"}},
		},
		{
			name:   "empty entries are no pick",
			result: OfficialResult{Order: []string{"A", "B", "C"}},
			pred:   Prediction{ExactaPick: []string{"A", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pred.Participant = member("m1")
			scores, err := Evaluate(rs, tt.result, []Prediction{tt.pred})
			require.NoError(t, err)
			require.Len(t, scores, 1)
			assert.Equal(t, tt.exacta, scores[0].Breakdown.Exacta)
			assert.Equal(t, tt.trifecta, scores[0].Breakdown.Trifecta)
		})
	}
}

func TestEvaluate_PlaceTieRemapping(t *testing.T) {
	rs := &Ruleset{
		PointsTable:           map[int]int{1: 5, 2: 3, 3: 2, 4: 1},
		ExclusiveWinnerPoints: 25,
		EnabledModalities:     []Modality{Place},
	}
	result := OfficialResult{Order: []string{"A", "B", "C", "D"}, FirstPlaceTie: true}

	scores, err := Evaluate(rs, result, []Prediction{
		{Participant: member("m1"), TrifectaPick: []string{"A", "C", "D"}},
		{Participant: member("m2"), WinnerPick: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 1}, scores[0].Breakdown.Place)
	assert.Equal(t, 8, scores[0].PointsTotal)

	// B is a co-winner picked by one participant only.
	scores, err = Evaluate(rs, result, []Prediction{
		{Participant: member("m1"), ExactaPick: []string{"B", "C"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 2}, scores[0].Breakdown.Place)
}

func TestEvaluate_PlaceWithoutTie(t *testing.T) {
	rs := standardRules(Place)
	scores, err := Evaluate(rs, OfficialResult{Order: []string{"A", "B", "C"}}, []Prediction{
		{Participant: member("m1"), TrifectaPick: []string{"D", "C", "B"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, scores[0].Breakdown.Place)
	assert.Equal(t, 4, scores[0].PointsTotal)
}

func TestEvaluate_RankFourDefaultsToZero(t *testing.T) {
	rs := &Ruleset{
		PointsTable:       map[int]int{1: 5, 2: 3, 3: 1},
		EnabledModalities: []Modality{Place},
	}
	scores, err := Evaluate(rs, OfficialResult{Order: []string{"A", "B", "C", "D"}}, []Prediction{
		{Participant: member("m1"), WinnerPick: "D"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, scores[0].Breakdown.Place)
}

func TestEvaluate_PlaceDeduplicates(t *testing.T) {
	rs := standardRules(Place)
	scores, err := Evaluate(rs, OfficialResult{Order: []string{"A", "B", "C"}}, []Prediction{
		{
			Participant:  member("m1"),
			WinnerPick:   "A",
			ExactaPick:   []string{"A", "B"},
			TrifectaPick: []string{"A", "B", "C"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 3, 1}, scores[0].Breakdown.Place)
}

func TestEvaluate_PlaceSharedWinnerScenario(t *testing.T) {
	rs := standardRules(Place)
	result := OfficialResult{Order: []string{"H1", "H2", "H3", "H4"}}

	scores, err := Evaluate(rs, result, []Prediction{
		{Participant: member("p1"), WinnerPick: "H1"},
		{Participant: member("p2"), ExactaPick: []string{"H1", "H2"}},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, []int{5}, scores[0].Breakdown.Place)
	assert.Equal(t, 5, scores[0].PointsTotal)
	assert.Equal(t, []int{5, 3}, scores[1].Breakdown.Place)
	assert.Equal(t, 8, scores[1].PointsTotal)
}

func TestEvaluate_WinnerAndPlaceCountSeparately(t *testing.T) {
	// Only m1 picks A to win, but m2 has A in its exacta, so A is exclusive
	// for winner and shared for place.
	rs := standardRules(Winner, Place)
	scores, err := Evaluate(rs, OfficialResult{Order: []string{"A", "B", "C"}}, []Prediction{
		{Participant: member("m1"), WinnerPick: "A"},
		{Participant: member("m2"), ExactaPick: []string{"B", "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, pts(25), scores[0].Breakdown.Winner)
	assert.Equal(t, []int{5}, scores[0].Breakdown.Place)
	assert.Equal(t, []int{3, 5}, scores[1].Breakdown.Place)
	assert.Equal(t, 30, scores[0].PointsTotal)
}

func TestEvaluate_DisabledModalitiesOmitted(t *testing.T) {
	scores, err := Evaluate(standardRules(Trifecta), OfficialResult{Order: []string{"A", "B", "C"}}, []Prediction{
		{Participant: member("m1"), WinnerPick: "A", ExactaPick: []string{"A", "B"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Breakdown{}, scores[0].Breakdown)
	assert.Equal(t, 0, scores[0].PointsTotal)
}

func TestEvaluate_EmptyOfficialOrder(t *testing.T) {
	scores, err := Evaluate(standardRules(), OfficialResult{}, []Prediction{
		{Participant: member("m1"), WinnerPick: "A", ExactaPick: []string{"A", "B"}, TrifectaPick: []string{"A", "B", "C"}},
	})
	require.NoError(t, err)
	b := scores[0].Breakdown
	assert.Equal(t, pts(0), b.Winner)
	assert.Equal(t, pts(0), b.Exacta)
	assert.Equal(t, pts(0), b.Trifecta)
	assert.Equal(t, []int{0, 0, 0}, b.Place)
}

func TestEvaluate_ParticipantKeys(t *testing.T) {
	scores, err := Evaluate(standardRules(Winner), OfficialResult{Order: []string{"A"}}, []Prediction{
		{Participant: ParticipantKey{MembershipID: "m1", AccountID: "42"}, WinnerPick: "A"},
		{Participant: ParticipantKey{AccountID: "43"}, WinnerPick: "A"},
		{Participant: ParticipantKey{}, WinnerPick: "A"},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, ResolvedKey{Kind: KindMembership, ID: "m1"}, scores[0].Participant)
	assert.Equal(t, ResolvedKey{Kind: KindAccount, ID: "43"}, scores[1].Participant)
	// The unattributable prediction does not count towards exclusivity.
	assert.Equal(t, pts(5), scores[0].Breakdown.Winner)
}

func TestEngine_StampsIDs(t *testing.T) {
	e := Engine{PoolID: 3, RaceID: 17}
	scores, err := e.Evaluate(standardRules(), OfficialResult{Order: []string{"A"}}, []Prediction{
		{Participant: member("m1"), WinnerPick: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), scores[0].PoolID)
	assert.Equal(t, int64(17), scores[0].RaceID)
}

func TestEvaluate_IdempotentAndSumInvariant(t *testing.T) {
	rs := standardRules()
	result := OfficialResult{Order: []string{"A", "B", "C", "D"}, FirstPlaceTie: true}
	preds := []Prediction{
		{Participant: member("m1"), WinnerPick: "A", ExactaPick: []string{"A", "B"}, TrifectaPick: []string{"B", "A", "C"}},
		{Participant: member("m2"), WinnerPick: "B", TrifectaPick: []string{"C", "D", "E"}},
		{Participant: ParticipantKey{AccountID: "7"}, ExactaPick: []string{"D", "A"}},
		{Participant: member("m4"), WinnerPick: "E", ExactaPick: []string{"A"}},
	}

	first, err := Evaluate(rs, result, preds)
	require.NoError(t, err)
	second, err := Evaluate(rs, result, preds)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("evaluate not deterministic (-first +second):\n%s", diff)
	}
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	for _, s := range first {
		assert.Equal(t, s.Breakdown.Total(), s.PointsTotal, s.Participant.String())
	}
}

func TestBreakdown_JSON(t *testing.T) {
	b := Breakdown{Winner: pts(0), Place: []int{5, 3}}
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"winner":0,"place":[5,3]}`, string(raw))
}

func TestRuleset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rs      *Ruleset
		wantErr bool
	}{
		{"valid", standardRules(), false},
		{"nil", nil, true},
		{"no table", &Ruleset{}, true},
		{"missing rank 3", &Ruleset{PointsTable: map[int]int{1: 5, 2: 3}}, true},
		{"rank out of range", &Ruleset{PointsTable: map[int]int{1: 5, 2: 3, 3: 1, 5: 1}}, true},
		{"negative points", &Ruleset{PointsTable: map[int]int{1: 5, 2: -3, 3: 1}}, true},
		{"unknown modality", &Ruleset{PointsTable: map[int]int{1: 5, 2: 3, 3: 1}, EnabledModalities: []Modality{"quinella"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rs.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
