package model

// Recompute returns a copy of parent whose totals are the sums of the
// children's totals. An empty slice yields zero totals.
func Recompute(parent Aggregated, children []Aggregated) Aggregated {
	var total Hours
	for _, c := range children {
		total = total.Add(c.Totals())
	}
	return parent.WithTotals(total)
}

// RecomputeNodes is Recompute over untyped children. Children that carry no
// totals are ignored.
func RecomputeNodes(parent Aggregated, children []Node) Aggregated {
	agg := make([]Aggregated, 0, len(children))
	for _, c := range children {
		if a, ok := c.(Aggregated); ok {
			agg = append(agg, a)
		}
	}
	return Recompute(parent, agg)
}

// FeedsParent reports whether nodes of level contribute to their parent's
// totals. Only DTRs roll up into Timesheets; DTR hours are set directly.
func FeedsParent(level Level) bool {
	return level == LevelDTR
}
