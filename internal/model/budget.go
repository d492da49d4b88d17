package model

// Budget tracks monetary limits for a run. Mutated only by the cost
// monitor; everyone else reads point-in-time snapshots.
type Budget struct {
	MaxTotal        float64
	MaxPerIteration float64
	Spent           float64
	Reserved        float64
	IterationSpent  float64
}

// Remaining returns budget not yet spent or reserved.
func (b Budget) Remaining() float64 {
	return b.MaxTotal - b.Spent - b.Reserved
}

// IterationRemaining returns the unspent portion of the per-iteration
// ceiling, or the total remaining when no per-iteration ceiling is set.
func (b Budget) IterationRemaining() float64 {
	if b.MaxPerIteration <= 0 {
		return b.Remaining()
	}
	r := b.MaxPerIteration - b.IterationSpent
	if total := b.Remaining(); total < r {
		return total
	}
	return r
}
