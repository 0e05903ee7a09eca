package selector

import (
	"fmt"
	"math/rand/v2"
)

// SelectionConfig contains everything needed to run one batch
type SelectionConfig struct {
	// BatchPool is the eligible candidates that passed this batch's label filters
	BatchPool []Candidate

	// State is the series state the run starts from; it is updated in place
	State *SelectionState

	// Quota is the number of candidates to pick (NumberOfEntriesToSelect)
	Quota int

	// AllowRestarts lets the run continue into a new cycle when the current one completes
	// with quota remaining. Without it the run stops at the boundary.
	AllowRestarts bool

	// Rand is the random source for weighted draws. Seed it for reproducible runs.
	Rand *rand.Rand
}

// SelectionOutcome represents the result of a run
type SelectionOutcome struct {
	// State is the final series state after the run
	State *SelectionState

	// PickedCount is the number of candidates selected
	PickedCount int

	// StopReason explains why drawing stopped
	StopReason StopReason
}

// Select runs tiered weighted sampling without replacement until the quota is met,
// the batch pool runs dry or the cycle completes without permission to restart.
//
// Each draw takes the lowest wave that still has a drawable candidate, so no candidate from a
// later wave is picked while an earlier one is available. Within a tier the chance of a
// candidate is proportional to its eligibility weight times its owner's LatestWeight.
// A pick makes every candidate of the same owner undrawable until the cycle completes.
func Select(config SelectionConfig) (*SelectionOutcome, error) {
	if config.Quota <= 0 {
		return nil, fmt.Errorf("quota must be positive, got %d", config.Quota)
	}
	if config.State == nil {
		return nil, fmt.Errorf("selection state is required")
	}
	if config.Rand == nil {
		return nil, fmt.Errorf("random source is required")
	}

	state := config.State
	batchTiers := tiers(config.BatchPool)
	picked := 0
	stopReason := StopQuotaFilled

	// Main selection loop
	for picked < config.Quota {
		// Every eligible user in the series has been selected this cycle
		if state.SeriesExhausted() {
			state.CompleteCycle()
			if !config.AllowRestarts {
				stopReason = StopCycleBoundary
				break
			}
			state.Restart()
			continue
		}

		tier := firstDrawableTier(state, batchTiers)
		if tier == nil {
			stopReason = StopPoolExhausted
			break
		}

		candidate, err := drawWeighted(state, tier, config.Rand)
		if err != nil {
			return nil, err
		}

		state.Pick(candidate.ID, candidate.UserID)
		picked++
	}

	// The last pick may have exhausted the series even though the quota is also met
	if state.SeriesExhausted() {
		state.CompleteCycle()
	}

	return &SelectionOutcome{
		State:       state,
		PickedCount: picked,
		StopReason:  stopReason,
	}, nil
}

// firstDrawableTier returns the drawable candidates of the lowest wave that has any
func firstDrawableTier(state *SelectionState, batchTiers [][]Candidate) []Candidate {
	for _, tier := range batchTiers {
		drawable := make([]Candidate, 0, len(tier))
		for _, candidate := range tier {
			if state.IsDrawable(candidate) {
				drawable = append(drawable, candidate)
			}
		}
		if len(drawable) > 0 {
			return drawable
		}
	}
	return nil
}

// drawWeighted picks one candidate with probability proportional to its draw weight
func drawWeighted(state *SelectionState, tier []Candidate, rng *rand.Rand) (Candidate, error) {
	weights := make([]float64, len(tier))
	total := 0.0
	for i, candidate := range tier {
		w := drawWeight(state, candidate)
		if w < 0 {
			return Candidate{}, fmt.Errorf("candidate %s has negative draw weight %f", candidate.ID, w)
		}
		weights[i] = w
		total += w
	}

	// Every remaining weight is zero: fall back to a uniform draw
	if total == 0 {
		return tier[rng.IntN(len(tier))], nil
	}

	target := rng.Float64() * total
	cumulative := 0.0
	for i, candidate := range tier {
		cumulative += weights[i]
		if target < cumulative {
			return candidate, nil
		}
	}

	// Floating point rounding can leave target == total; take the last weighted candidate
	for i := len(tier) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return tier[i], nil
		}
	}
	return tier[len(tier)-1], nil
}

func drawWeight(state *SelectionState, candidate Candidate) float64 {
	userWeight := 1.0
	if user, ok := state.Users[candidate.UserID]; ok {
		userWeight = user.LatestWeight
	}
	return candidate.Weight * userWeight
}
