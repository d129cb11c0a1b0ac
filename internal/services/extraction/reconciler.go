// -----------------------------------------------------------------------
// Entity Reconciler - merges pattern and AI entities, validates numeric
// sanity, and enforces the confidence threshold
// -----------------------------------------------------------------------

package extraction

import (
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/arbor"
)

var _ interfaces.EntityReconciler = (*Reconciler)(nil)

// Reconciler merges the two extractor outputs into one canonical entity
// set per analysis run.
type Reconciler struct {
	confidenceThreshold float64
	validateNumerics    bool
	logger              arbor.ILogger
}

// NewReconciler creates the reconciler from configuration.
func NewReconciler(cfg *common.Config, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		confidenceThreshold: cfg.Extraction.ConfidenceThreshold,
		validateNumerics:    cfg.Extraction.ValidateNumericValues,
		logger:              logger,
	}
}

type entityKey struct {
	name   string
	source string
}

// Reconcile deduplicates entities sharing (name, source document). On
// conflict the higher confidence wins; equal confidences prefer the AI
// value. An entity whose counterpart was also present is marked merged.
// Invalid numerics and entities below the confidence threshold are
// dropped afterwards.
func (r *Reconciler) Reconcile(patternEntities, aiEntities []models.ExtractedEntity) []models.ExtractedEntity {
	index := make(map[entityKey]int, len(patternEntities)+len(aiEntities))
	kept := make([]models.ExtractedEntity, 0, len(patternEntities)+len(aiEntities))

	add := func(entity models.ExtractedEntity) {
		key := entityKey{name: entity.Name, source: entity.SourceDocumentID}
		pos, exists := index[key]
		if !exists {
			index[key] = len(kept)
			kept = append(kept, entity)
			return
		}
		winner := pickEntity(kept[pos], entity)
		winner.ExtractionMethod = models.EntityMethodMerged
		kept[pos] = winner
	}

	for _, entity := range patternEntities {
		add(entity)
	}
	for _, entity := range aiEntities {
		add(entity)
	}

	out := make([]models.ExtractedEntity, 0, len(kept))
	dropped := 0
	for _, entity := range kept {
		if entity.Confidence < r.confidenceThreshold {
			dropped++
			r.logger.Debug().
				Str("metric", entity.Name).
				Float64("confidence", entity.Confidence).
				Msg("Entity below confidence threshold")
			continue
		}
		if r.validateNumerics {
			if value, ok := entity.NumericValue(); ok && !validateMetric(entity.Name, value) {
				dropped++
				r.logger.Warn().
					Str("metric", entity.Name).
					Float64("value", value).
					Msg("Entity failed range validation")
				continue
			}
		}
		out = append(out, entity)
	}

	r.logger.Debug().
		Int("pattern", len(patternEntities)).
		Int("ai", len(aiEntities)).
		Int("kept", len(out)).
		Int("dropped", dropped).
		Msg("Entity reconciliation completed")

	return out
}

// pickEntity resolves a duplicate pair: higher confidence wins, equal
// confidences prefer the AI extraction.
func pickEntity(current, incoming models.ExtractedEntity) models.ExtractedEntity {
	switch {
	case incoming.Confidence > current.Confidence:
		return incoming
	case incoming.Confidence < current.Confidence:
		return current
	case incoming.ExtractionMethod == models.EntityMethodAI:
		return incoming
	default:
		return current
	}
}
