package scoring

// Evaluate scores every prediction against the official result. It is
// Engine{}.Evaluate without pool or race ids stamped on the output.
func Evaluate(rs *Ruleset, result OfficialResult, predictions []Prediction) ([]Score, error) {
	return Engine{}.Evaluate(rs, result, predictions)
}

// Engine evaluates one race of one pool. It holds no state beyond the ids it
// copies onto each Score, so a zero value or a shared value is safe to use
// from any number of goroutines.
type Engine struct {
	PoolID int64
	RaceID int64
}

// Evaluate returns one Score per attributable prediction, in input order.
// Only a missing ruleset or points table is an error; bad picks just score
// nothing for the affected modality.
func (e Engine) Evaluate(rs *Ruleset, result OfficialResult, predictions []Prediction) ([]Score, error) {
	if rs == nil {
		return nil, ErrNoRuleset
	}
	if len(rs.PointsTable) == 0 {
		return nil, ErrNoPointsTable
	}

	f := newFinish(result)
	picks := make([][]string, len(predictions))
	winnerPickCounts := map[string]int{}
	placeWinnerCounts := map[string]int{}

	for i, p := range predictions {
		if _, ok := p.Participant.Resolve(); !ok {
			continue
		}
		if p.WinnerPick != "" {
			winnerPickCounts[p.WinnerPick]++
		}
		picks[i] = combinedPicks(p)
		for _, o := range picks[i] {
			if f.isWinner(o) {
				placeWinnerCounts[o]++
			}
		}
	}

	scores := make([]Score, 0, len(predictions))
	for i, p := range predictions {
		key, ok := p.Participant.Resolve()
		if !ok {
			continue
		}

		var b Breakdown
		if rs.Enabled(Winner) && p.WinnerPick != "" {
			pts := 0
			if f.isWinner(p.WinnerPick) {
				pts = winnerPoints(rs, winnerPickCounts[p.WinnerPick])
			}
			b.Winner = &pts
		}
		if rs.Enabled(Exacta) {
			if pick, ok := wellFormed(p.ExactaPick, 2); ok {
				pts := 0
				if f.ordered(pick) {
					pts = rs.Points(1) + rs.Points(2)
				}
				b.Exacta = &pts
			}
		}
		if rs.Enabled(Trifecta) {
			if pick, ok := wellFormed(p.TrifectaPick, 3); ok {
				pts := 0
				if f.ordered(pick) {
					pts = rs.Points(1) + rs.Points(2) + rs.Points(3)
				}
				b.Trifecta = &pts
			}
		}
		if rs.Enabled(Place) && len(picks[i]) > 0 {
			b.Place = make([]int, len(picks[i]))
			for j, o := range picks[i] {
				b.Place[j] = f.placePoints(rs, o, placeWinnerCounts)
			}
		}

		scores = append(scores, Score{
			PoolID:      e.PoolID,
			RaceID:      e.RaceID,
			Participant: key,
			PointsTotal: b.Total(),
			Breakdown:   b,
		})
	}
	return scores, nil
}

// winnerPoints applies the exclusivity bonus: a correct pick nobody else made
// earns ExclusiveWinnerPoints instead of the rank-1 value.
func winnerPoints(rs *Ruleset, pickedBy int) int {
	if pickedBy == 1 {
		return rs.ExclusiveWinnerPoints
	}
	return rs.Points(1)
}

// wellFormed returns pick when it has exactly n non-empty entries.
func wellFormed(pick []string, n int) ([]string, bool) {
	if len(pick) != n {
		return nil, false
	}
	for _, o := range pick {
		if o == "" {
			return nil, false
		}
	}
	return pick, true
}

// combinedPicks is the union of winner, exacta and trifecta picks with
// duplicates removed, first occurrence kept.
func combinedPicks(p Prediction) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(o string) {
		if _, dup := seen[o]; dup {
			return
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}

	if p.WinnerPick != "" {
		add(p.WinnerPick)
	}
	if pick, ok := wellFormed(p.ExactaPick, 2); ok {
		for _, o := range pick {
			add(o)
		}
	}
	if pick, ok := wellFormed(p.TrifectaPick, 3); ok {
		for _, o := range pick {
			add(o)
		}
	}
	return out
}

// finish is an official result with tie-aware rank lookup.
type finish struct {
	order []string
	tie   bool
}

func newFinish(r OfficialResult) finish {
	return finish{order: r.Order, tie: r.FirstPlaceTie && len(r.Order) >= 2}
}

func (f finish) isWinner(o string) bool {
	if len(f.order) > 0 && f.order[0] == o {
		return true
	}
	return f.tie && f.order[1] == o
}

// ordered reports an exact prefix match of the official order. Under a first
// place tie the order is ambiguous and nothing matches.
func (f finish) ordered(pick []string) bool {
	if f.tie || len(f.order) < len(pick) {
		return false
	}
	for i, o := range pick {
		if f.order[i] != o {
			return false
		}
	}
	return true
}

// rank maps an outcome to its effective finishing rank, 0 when unplaced.
// Under a tie positions 0 and 1 are both rank 1 and there is no rank 2.
func (f finish) rank(o string) int {
	for i, got := range f.order {
		if got != o {
			continue
		}
		switch {
		case i == 0:
			return 1
		case f.tie && i == 1:
			return 1
		default:
			return i + 1
		}
	}
	return 0
}

func (f finish) placePoints(rs *Ruleset, o string, winnerCounts map[string]int) int {
	switch r := f.rank(o); r {
	case 0:
		return 0
	case 1:
		return winnerPoints(rs, winnerCounts[o])
	default:
		return rs.Points(r)
	}
}
