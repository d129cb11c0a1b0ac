// -----------------------------------------------------------------------
// Weighting Manager - validation, normalization, and named profiles for
// the five-component weight vector
// -----------------------------------------------------------------------

package scoring

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"
)

var _ interfaces.WeightingService = (*Manager)(nil)

// DefaultProfileName is the protected profile every deployment carries.
const DefaultProfileName = "default"

// sumSlack absorbs float representation error in the sum check so a
// vector summing to 99.99 under a 0.01 tolerance stays valid.
const sumSlack = 1e-9

// Manager validates and normalizes weight vectors and keeps the named
// profile registry. The default profile is immutable and non-deletable.
type Manager struct {
	mu        sync.RWMutex
	profiles  map[string]models.Weightings
	tolerance float64
	allowZero bool
	logger    arbor.ILogger
}

// NewManager builds the registry with the default profile and any
// profiles found in the configured directory. Unreadable profile files
// are skipped with a warning.
func NewManager(cfg *common.Config, logger arbor.ILogger) *Manager {
	tolerance := cfg.Scoring.WeightingTolerance
	if tolerance <= 0 {
		tolerance = 0.01
	}

	m := &Manager{
		profiles:  map[string]models.Weightings{DefaultProfileName: models.DefaultWeightings()},
		tolerance: tolerance,
		allowZero: cfg.Scoring.AllowZeroWeights,
		logger:    logger,
	}

	if dir := cfg.Scoring.ProfilesDir; dir != "" {
		m.loadProfilesDir(dir)
	}

	return m
}

type weightField struct {
	name  string
	value float64
}

func fields(w *models.Weightings) []weightField {
	return []weightField{
		{"market_opportunity", w.MarketOpportunity},
		{"team", w.Team},
		{"traction", w.Traction},
		{"product", w.Product},
		{"competitive_position", w.CompetitivePosition},
	}
}

// Validate checks the vector field by field, then the sum. Zero fields
// produce warnings rather than errors; with RequireAllWeights disabled a
// partial vector is accepted as long as it does not overshoot 100, on
// the expectation that Normalize fills the gaps.
func (m *Manager) Validate(w *models.Weightings, opts interfaces.WeightingOptions) ([]string, error) {
	if w == nil {
		return nil, resilience.New(resilience.CategoryValidation, "weightings_missing",
			"no weight vector supplied")
	}

	var warnings []string
	zeros := 0
	for _, f := range fields(w) {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return nil, resilience.New(resilience.CategoryValidation, "weight_not_finite",
				fmt.Sprintf("weight %s is not a finite number", f.name))
		}
		if f.value < 0 {
			return nil, resilience.New(resilience.CategoryValidation, "weight_negative",
				fmt.Sprintf("weight %s is negative (%.2f)", f.name, f.value))
		}
		if f.value > 100 {
			return nil, resilience.New(resilience.CategoryValidation, "weight_above_cap",
				fmt.Sprintf("weight %s exceeds 100 (%.2f)", f.name, f.value))
		}
		if f.value == 0 {
			zeros++
			if !opts.AllowZeroWeights {
				warnings = append(warnings, fmt.Sprintf("component %s carries zero weight", f.name))
			}
		}
	}

	sum := w.Sum()
	if opts.RequireAllWeights || zeros == 0 {
		if math.Abs(sum-100) > m.tolerance+sumSlack {
			return warnings, resilience.New(resilience.CategoryValidation, "weight_sum_invalid",
				fmt.Sprintf("weights sum to %.4f, expected 100 within %.4f", sum, m.tolerance))
		}
	} else if sum > 100+m.tolerance+sumSlack {
		return warnings, resilience.New(resilience.CategoryValidation, "weight_sum_invalid",
			fmt.Sprintf("partial weights sum to %.4f, which overshoots 100", sum))
	}

	return warnings, nil
}

// Normalize fills zero fields from the default profile and rescales so
// the vector sums to exactly 100. Nil or all-zero input returns the
// default profile unchanged.
func (m *Manager) Normalize(w *models.Weightings) *models.Weightings {
	defaults := models.DefaultWeightings()
	if w == nil {
		return &defaults
	}

	out := *w
	sanitize := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	out.MarketOpportunity = sanitize(out.MarketOpportunity)
	out.Team = sanitize(out.Team)
	out.Traction = sanitize(out.Traction)
	out.Product = sanitize(out.Product)
	out.CompetitivePosition = sanitize(out.CompetitivePosition)

	if out.MarketOpportunity == 0 {
		out.MarketOpportunity = defaults.MarketOpportunity
	}
	if out.Team == 0 {
		out.Team = defaults.Team
	}
	if out.Traction == 0 {
		out.Traction = defaults.Traction
	}
	if out.Product == 0 {
		out.Product = defaults.Product
	}
	if out.CompetitivePosition == 0 {
		out.CompetitivePosition = defaults.CompetitivePosition
	}

	scale := 100 / out.Sum()
	out.MarketOpportunity *= scale
	out.Team *= scale
	out.Traction *= scale
	out.Product *= scale
	out.CompetitivePosition *= scale
	return &out
}

// GetProfile returns a copy of a stored profile.
func (m *Manager) GetProfile(name string) (*models.Weightings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.profiles[name]
	if !ok {
		return nil, resilience.New(resilience.CategoryValidation, "profile_unknown",
			fmt.Sprintf("no weighting profile named %q", name))
	}
	out := w
	return &out, nil
}

// SaveProfile validates and stores a user profile. The default name is
// reserved.
func (m *Manager) SaveProfile(name string, w *models.Weightings) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return resilience.New(resilience.CategoryValidation, "profile_name_missing",
			"profile name is required")
	}
	if name == DefaultProfileName {
		return resilience.New(resilience.CategoryValidation, "profile_protected",
			"the default profile cannot be overwritten")
	}

	warnings, err := m.Validate(w, interfaces.WeightingOptions{
		AllowZeroWeights:  m.allowZero,
		RequireAllWeights: true,
	})
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		m.logger.Warn().
			Str("profile", name).
			Msg(warning)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[name] = *w

	m.logger.Info().
		Str("profile", name).
		Float64("sum", w.Sum()).
		Msg("Weighting profile saved")
	return nil
}

// DeleteProfile removes a user profile. The default is non-deletable.
func (m *Manager) DeleteProfile(name string) error {
	if name == DefaultProfileName {
		return resilience.New(resilience.CategoryValidation, "profile_protected",
			"the default profile cannot be deleted")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[name]; !ok {
		return resilience.New(resilience.CategoryValidation, "profile_unknown",
			fmt.Sprintf("no weighting profile named %q", name))
	}
	delete(m.profiles, name)

	m.logger.Info().
		Str("profile", name).
		Msg("Weighting profile deleted")
	return nil
}

// ListProfiles returns the registered profile names sorted ascending.
func (m *Manager) ListProfiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadProfilesDir reads one YAML profile per file; the file base name
// becomes the profile name.
func (m *Manager) loadProfilesDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.logger.Warn().
			Str("dir", dir).
			Err(err).
			Msg("Weighting profiles directory is unreadable")
		return
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if name == DefaultProfileName {
			m.logger.Warn().
				Str("file", entry.Name()).
				Msg("Skipping profile file shadowing the default profile")
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			m.logger.Warn().
				Str("file", entry.Name()).
				Err(err).
				Msg("Failed to read weighting profile")
			continue
		}

		var w models.Weightings
		if err := yaml.Unmarshal(data, &w); err != nil {
			m.logger.Warn().
				Str("file", entry.Name()).
				Err(err).
				Msg("Failed to parse weighting profile")
			continue
		}
		if _, err := m.Validate(&w, interfaces.WeightingOptions{AllowZeroWeights: m.allowZero, RequireAllWeights: true}); err != nil {
			m.logger.Warn().
				Str("file", entry.Name()).
				Err(err).
				Msg("Weighting profile failed validation")
			continue
		}

		m.profiles[name] = w
		loaded++
	}

	if loaded > 0 {
		m.logger.Info().
			Str("dir", dir).
			Int("profiles", loaded).
			Msg("Loaded weighting profiles")
	}
}
