package eligibility

import "github.com/jakechorley/creator-selection/pkg/core/model"

// Resolve computes a candidate's eligibility from its owner's active plans.
//
// Every option whose PlanID is active is a match. With no match the candidate is ineligible.
// Otherwise the governing match is the one with the highest PriorityModifier, ties going to
// the option configured first. Weight, priority group and wave all come from that one match,
// so a lower wave on a lighter match does not move the candidate into an earlier tier.
func Resolve(activePlans []string, cfg model.EligibilityConfiguration) model.EligibilityResult {
	active := make(map[string]bool, len(activePlans))
	for _, plan := range activePlans {
		active[plan] = true
	}

	var governing *model.EligibilityOption
	for i := range cfg.Options {
		option := &cfg.Options[i]
		if !active[option.PlanID] {
			continue
		}
		// Strictly greater keeps the earliest option on ties
		if governing == nil || option.PriorityModifier > governing.PriorityModifier {
			governing = option
		}
	}

	if governing == nil {
		return model.EligibilityResult{IsEligible: false}
	}

	result := model.EligibilityResult{
		IsEligible:      true,
		EffectiveWeight: governing.PriorityModifier,
		PriorityGroup:   governing.PriorityGroup,
	}
	if governing.SelectionWave != nil {
		wave := *governing.SelectionWave
		result.SelectionWave = &wave
	}
	return result
}
