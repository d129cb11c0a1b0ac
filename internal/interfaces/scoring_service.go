// -----------------------------------------------------------------------
// Scoring Interfaces - Weight profiles and component score calculation
// -----------------------------------------------------------------------

package interfaces

import (
	"github.com/ternarybob/aestimo/internal/models"
)

// WeightingOptions relaxes individual validation rules.
type WeightingOptions struct {
	// AllowZeroWeights suppresses the warning for zero-valued components.
	AllowZeroWeights bool

	// RequireAllWeights, when false, accepts partial weight vectors; the
	// normalizer fills the gaps from the default profile.
	RequireAllWeights bool
}

// WeightingService validates, normalizes, and stores named weight profiles.
// The default profile is protected: it cannot be modified or deleted.
type WeightingService interface {
	// Validate checks every field is finite, within [0,100], and the sum is
	// within tolerance of 100. Returns warnings for zero fields unless
	// allowed by options.
	Validate(w *models.Weightings, opts WeightingOptions) ([]string, error)

	// Normalize fills missing fields from defaults then scales the vector so
	// it sums to exactly 100. An all-zero input returns the default profile.
	Normalize(w *models.Weightings) *models.Weightings

	// GetProfile returns a stored profile by name.
	GetProfile(name string) (*models.Weightings, error)

	// SaveProfile stores a user profile after validation. Writing the
	// default profile name fails with a validation error.
	SaveProfile(name string, w *models.Weightings) error

	// DeleteProfile removes a user profile. The default is non-deletable.
	DeleteProfile(name string) error

	// ListProfiles returns profile names sorted ascending.
	ListProfiles() []string
}

// ScoreService computes the weighted composite score.
type ScoreService interface {
	// Calculate derives the five raw component scores (0-100), applies the
	// weightings, and sums the weighted components into the total. A nil
	// benchmarks argument triggers the neutral-percentile assumption and
	// caps confidence at 0.7.
	Calculate(result *models.AnalysisResult, benchmarks *models.BenchmarkData, w *models.Weightings) (*models.ScoreBreakdown, error)
}
