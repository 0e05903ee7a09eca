package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/creator-selection/pkg/core/model"
)

func testConfiguration() model.EligibilityConfiguration {
	return model.EligibilityConfiguration{
		ID:      "config-1",
		Version: 1,
		Options: []model.EligibilityOption{
			{PlanID: "bronze", PriorityGroup: "supporters", PriorityModifier: 1.0, SelectionWave: Wave(2)},
			{PlanID: "silver", PriorityGroup: "supporters", PriorityModifier: 2.0, SelectionWave: Wave(3)},
			{PlanID: "gold", PriorityGroup: "patrons", PriorityModifier: 2.0, SelectionWave: Wave(1)},
			{PlanID: "follower", PriorityGroup: "public", PriorityModifier: 0.5},
		},
	}
}

func TestResolve_NoActivePlans(t *testing.T) {
	result := Resolve(nil, testConfiguration())

	assert.False(t, result.IsEligible)
	assert.Zero(t, result.EffectiveWeight)
	assert.Nil(t, result.SelectionWave)
}

func TestResolve_NoMatchingPlans(t *testing.T) {
	result := Resolve([]string{"platinum", "unknown"}, testConfiguration())

	assert.False(t, result.IsEligible, "Plans not in the configuration should not qualify")
}

func TestResolve_SingleMatch(t *testing.T) {
	result := Resolve([]string{"bronze"}, testConfiguration())

	require.True(t, result.IsEligible)
	assert.Equal(t, 1.0, result.EffectiveWeight)
	assert.Equal(t, "supporters", result.PriorityGroup)
	require.NotNil(t, result.SelectionWave)
	assert.Equal(t, 2, *result.SelectionWave)
}

func TestResolve_HighestModifierGoverns(t *testing.T) {
	result := Resolve([]string{"bronze", "silver"}, testConfiguration())

	require.True(t, result.IsEligible)
	assert.Equal(t, 2.0, result.EffectiveWeight)
	require.NotNil(t, result.SelectionWave)
	assert.Equal(t, 3, *result.SelectionWave, "Wave follows the governing match, not the lowest wave")
}

func TestResolve_TieGoesToEarliestOption(t *testing.T) {
	// silver and gold both have modifier 2.0; silver is configured first
	result := Resolve([]string{"gold", "silver"}, testConfiguration())

	require.True(t, result.IsEligible)
	assert.Equal(t, "supporters", result.PriorityGroup)
	require.NotNil(t, result.SelectionWave)
	assert.Equal(t, 3, *result.SelectionWave)
}

func TestResolve_NilWave(t *testing.T) {
	result := Resolve([]string{"follower"}, testConfiguration())

	require.True(t, result.IsEligible)
	assert.Equal(t, 0.5, result.EffectiveWeight)
	assert.Nil(t, result.SelectionWave)
}

func TestResolve_ResultWaveIsCopied(t *testing.T) {
	cfg := testConfiguration()
	result := Resolve([]string{"bronze"}, cfg)

	*cfg.Options[0].SelectionWave = 9

	require.NotNil(t, result.SelectionWave)
	assert.Equal(t, 2, *result.SelectionWave, "Result must not alias the configuration")
}
