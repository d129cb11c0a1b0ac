package ocr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/ternarybob/aestimo/internal/models"
)

// visionFenceRegex strips a markdown code fence when the model wraps its
// JSON despite the response schema.
var visionFenceRegex = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// textDetectionWire is the sparse detection response shape.
type textDetectionWire struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// decodeDocumentResult parses a document detection response into the OCR
// result hierarchy and derives page text and confidences from the blocks.
func decodeDocumentResult(response string) (*models.OCRResult, error) {
	payload := cleanVisionPayload(response)
	if payload == "" {
		return nil, fmt.Errorf("vision response was empty")
	}

	var result models.OCRResult
	repaired, err := unmarshalDetection(payload, &result)
	if err != nil {
		return nil, err
	}
	if repaired {
		result.Warnings = append(result.Warnings, "OCR response required JSON repair")
	}

	finalizeDocumentResult(&result)
	return &result, nil
}

// decodeTextResult parses a sparse detection response. The result carries
// no page structure.
func decodeTextResult(response string) (*models.OCRResult, error) {
	payload := cleanVisionPayload(response)
	if payload == "" {
		return nil, fmt.Errorf("vision response was empty")
	}

	var wire textDetectionWire
	repaired, err := unmarshalDetection(payload, &wire)
	if err != nil {
		return nil, err
	}

	result := &models.OCRResult{
		Text:       wire.Text,
		Confidence: wire.Confidence,
		Language:   wire.Language,
	}
	if repaired {
		result.Warnings = append(result.Warnings, "OCR response required JSON repair")
	}
	return result, nil
}

// finalizeDocumentResult fills the derived fields of a document detection:
// pages sort by number, page text falls back to the joined block texts,
// and missing confidences average up from the level below.
func finalizeDocumentResult(result *models.OCRResult) {
	sort.SliceStable(result.Pages, func(i, j int) bool {
		return result.Pages[i].PageNumber < result.Pages[j].PageNumber
	})

	var pageTexts []string
	var confidenceSum float64
	for i := range result.Pages {
		page := &result.Pages[i]

		if strings.TrimSpace(page.Text) == "" && len(page.Blocks) > 0 {
			blockTexts := make([]string, 0, len(page.Blocks))
			for _, block := range page.Blocks {
				if strings.TrimSpace(block.Text) != "" {
					blockTexts = append(blockTexts, block.Text)
				}
			}
			page.Text = strings.Join(blockTexts, "\n")
		}

		if page.Confidence == 0 && len(page.Blocks) > 0 {
			var sum float64
			var counted int
			for _, block := range page.Blocks {
				if block.Confidence > 0 {
					sum += block.Confidence
					counted++
				}
			}
			if counted > 0 {
				page.Confidence = sum / float64(counted)
			}
		}

		if strings.TrimSpace(page.Text) != "" {
			pageTexts = append(pageTexts, page.Text)
		}
		confidenceSum += page.Confidence
	}

	if result.Text == "" {
		result.Text = strings.Join(pageTexts, "\n\n")
	}
	if result.Confidence == 0 && len(result.Pages) > 0 {
		result.Confidence = confidenceSum / float64(len(result.Pages))
	}
}

// cleanVisionPayload trims the response and unwraps a surrounding markdown
// fence if one is present.
func cleanVisionPayload(response string) string {
	trimmed := strings.TrimSpace(response)
	if matches := visionFenceRegex.FindStringSubmatch(trimmed); len(matches) == 2 {
		return strings.TrimSpace(matches[1])
	}
	return trimmed
}

// unmarshalDetection decodes strictly first and falls back to JSON repair.
// The returned flag reports whether repair was needed.
func unmarshalDetection(payload string, v interface{}) (bool, error) {
	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return false, nil
	}

	repairedPayload, repairErr := jsonrepair.RepairJSON(payload)
	if repairErr != nil {
		return false, fmt.Errorf("vision response is not valid JSON: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repairedPayload), v); err != nil {
		return false, fmt.Errorf("vision response did not match the expected shape: %w", err)
	}
	return true, nil
}
