package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/arbor"
)

func newTestManager(t *testing.T, mutate func(*common.Config)) *Manager {
	t.Helper()
	cfg := common.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewManager(cfg, arbor.NewLogger())
}

func TestValidateDefaultProfile(t *testing.T) {
	m := newTestManager(t, nil)
	w := models.DefaultWeightings()

	warnings, err := m.Validate(&w, interfaces.WeightingOptions{RequireAllWeights: true})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateRejectsBadFields(t *testing.T) {
	m := newTestManager(t, nil)

	cases := map[string]models.Weightings{
		"negative":  {MarketOpportunity: -5, Team: 30, Traction: 30, Product: 25, CompetitivePosition: 20},
		"above_cap": {MarketOpportunity: 120, Team: 0, Traction: 0, Product: 0, CompetitivePosition: 0},
		"nan":       {MarketOpportunity: math.NaN(), Team: 25, Traction: 25, Product: 25, CompetitivePosition: 25},
		"inf":       {MarketOpportunity: math.Inf(1), Team: 25, Traction: 25, Product: 25, CompetitivePosition: 25},
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Validate(&w, interfaces.WeightingOptions{RequireAllWeights: true})
			require.Error(t, err)
		})
	}
}

func TestValidateSumTolerance(t *testing.T) {
	m := newTestManager(t, nil)

	within := models.Weightings{MarketOpportunity: 25, Team: 25, Traction: 20, Product: 15, CompetitivePosition: 14.99}
	_, err := m.Validate(&within, interfaces.WeightingOptions{RequireAllWeights: true})
	require.NoError(t, err, "99.99 with the default 0.01 tolerance is valid")

	outside := models.Weightings{MarketOpportunity: 25, Team: 25, Traction: 20, Product: 15, CompetitivePosition: 14.5}
	_, err = m.Validate(&outside, interfaces.WeightingOptions{RequireAllWeights: true})
	require.Error(t, err)
}

func TestValidateZeroWeights(t *testing.T) {
	m := newTestManager(t, nil)
	w := models.Weightings{MarketOpportunity: 100}

	warnings, err := m.Validate(&w, interfaces.WeightingOptions{})
	require.NoError(t, err)
	assert.Len(t, warnings, 4)

	warnings, err = m.Validate(&w, interfaces.WeightingOptions{AllowZeroWeights: true})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	warnings, err = m.Validate(&w, interfaces.WeightingOptions{AllowZeroWeights: true, RequireAllWeights: true})
	require.NoError(t, err, "an all-in vector summing to 100 is complete")
	assert.Empty(t, warnings)
}

func TestValidatePartialSpec(t *testing.T) {
	m := newTestManager(t, nil)
	w := models.Weightings{MarketOpportunity: 50, Team: 30}

	_, err := m.Validate(&w, interfaces.WeightingOptions{AllowZeroWeights: true})
	require.NoError(t, err, "partial vectors are deferred to the normalizer")

	_, err = m.Validate(&w, interfaces.WeightingOptions{AllowZeroWeights: true, RequireAllWeights: true})
	require.Error(t, err)

	overshoot := models.Weightings{MarketOpportunity: 90, Team: 30}
	_, err = m.Validate(&overshoot, interfaces.WeightingOptions{AllowZeroWeights: true})
	require.Error(t, err, "partial vectors may not overshoot 100")
}

func TestValidateNil(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Validate(nil, interfaces.WeightingOptions{})
	require.Error(t, err)
}

func TestNormalizeFillsAndScales(t *testing.T) {
	m := newTestManager(t, nil)

	out := m.Normalize(&models.Weightings{MarketOpportunity: 50})
	assert.InDelta(t, 40, out.MarketOpportunity, 1e-9)
	assert.InDelta(t, 20, out.Team, 1e-9)
	assert.InDelta(t, 16, out.Traction, 1e-9)
	assert.InDelta(t, 12, out.Product, 1e-9)
	assert.InDelta(t, 12, out.CompetitivePosition, 1e-9)
	assert.InDelta(t, 100, out.Sum(), 1e-9)
}

func TestNormalizeAllZeroReturnsDefaults(t *testing.T) {
	m := newTestManager(t, nil)

	out := m.Normalize(&models.Weightings{})
	assert.Equal(t, models.DefaultWeightings(), *out)

	out = m.Normalize(nil)
	assert.Equal(t, models.DefaultWeightings(), *out)
}

func TestNormalizeSatisfiesValidatorAndIsIdempotent(t *testing.T) {
	m := newTestManager(t, nil)

	inputs := []models.Weightings{
		{MarketOpportunity: 50},
		{MarketOpportunity: 200, Team: 10},
		{MarketOpportunity: 25, Team: 25, Traction: 20, Product: 15, CompetitivePosition: 15},
		{MarketOpportunity: -10, Team: math.NaN()},
	}
	for _, w := range inputs {
		once := m.Normalize(&w)
		_, err := m.Validate(once, interfaces.WeightingOptions{AllowZeroWeights: true, RequireAllWeights: true})
		require.NoError(t, err)

		twice := m.Normalize(once)
		assert.InDelta(t, once.MarketOpportunity, twice.MarketOpportunity, 1e-9)
		assert.InDelta(t, once.Team, twice.Team, 1e-9)
		assert.InDelta(t, once.Traction, twice.Traction, 1e-9)
		assert.InDelta(t, once.Product, twice.Product, 1e-9)
		assert.InDelta(t, once.CompetitivePosition, twice.CompetitivePosition, 1e-9)
	}
}

func TestProfileRegistry(t *testing.T) {
	m := newTestManager(t, nil)

	def, err := m.GetProfile(DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWeightings(), *def)

	aggressive := models.Weightings{MarketOpportunity: 40, Team: 20, Traction: 20, Product: 10, CompetitivePosition: 10}
	require.NoError(t, m.SaveProfile("aggressive", &aggressive))

	stored, err := m.GetProfile("aggressive")
	require.NoError(t, err)
	assert.Equal(t, aggressive, *stored)

	// Returned profiles are copies.
	stored.Team = 99
	again, err := m.GetProfile("aggressive")
	require.NoError(t, err)
	assert.Equal(t, 20.0, again.Team)

	assert.Equal(t, []string{"aggressive", "default"}, m.ListProfiles())

	require.NoError(t, m.DeleteProfile("aggressive"))
	_, err = m.GetProfile("aggressive")
	require.Error(t, err)
}

func TestProfileRegistryProtectsDefault(t *testing.T) {
	m := newTestManager(t, nil)
	w := models.DefaultWeightings()

	require.Error(t, m.SaveProfile(DefaultProfileName, &w))
	require.Error(t, m.DeleteProfile(DefaultProfileName))
	require.Error(t, m.SaveProfile("", &w))
	require.Error(t, m.DeleteProfile("never_saved"))
}

func TestProfileRegistryRejectsInvalidVector(t *testing.T) {
	m := newTestManager(t, nil)
	short := models.Weightings{MarketOpportunity: 10, Team: 10, Traction: 10, Product: 10, CompetitivePosition: 10}
	require.Error(t, m.SaveProfile("short", &short))
}

func TestLoadProfilesFromDir(t *testing.T) {
	dir := t.TempDir()
	valid := "market_opportunity: 40\nteam: 20\ntraction: 20\nproduct: 10\ncompetitive_position: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "growth.yaml"), []byte(valid), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("market_opportunity: ["), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(valid), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	m := newTestManager(t, func(cfg *common.Config) {
		cfg.Scoring.ProfilesDir = dir
	})

	assert.Equal(t, []string{"default", "growth"}, m.ListProfiles())

	growth, err := m.GetProfile("growth")
	require.NoError(t, err)
	assert.Equal(t, 40.0, growth.MarketOpportunity)

	// The file named default must not shadow the protected profile.
	def, err := m.GetProfile(DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWeightings(), *def)
}
