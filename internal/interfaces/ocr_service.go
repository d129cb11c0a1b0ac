package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// OCRService defines the vision capability used when a document's text
// layer is unusable. Two detection strategies exist: DetectDocument for
// dense multi-column layouts and DetectText for sparse text. ExtractText
// tries them in that order and returns the first non-empty result.
type OCRService interface {
	// DetectDocument runs dense document detection over image or PDF bytes.
	// Returns the page/block hierarchy with confidences and bounding boxes.
	DetectDocument(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error)

	// DetectText runs sparse text detection. Used as the fallback when
	// document detection yields nothing.
	DetectText(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error)

	// ExtractText applies the fallback ordering and appends a warning when
	// the winning result's confidence is below the configured threshold.
	ExtractText(ctx context.Context, data []byte, languageHints []string) (*models.OCRResult, error)

	// HealthCheck verifies the vision backend is reachable.
	HealthCheck(ctx context.Context) error
}
