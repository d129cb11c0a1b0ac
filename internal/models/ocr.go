package models

// BoundingBox locates a detected text block on a page. Units follow the
// vision provider's coordinate space (top-left origin).
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// OCRBlock is a single detected text block with its position and confidence.
type OCRBlock struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// OCRPage holds the detected text for one page of a scanned document.
type OCRPage struct {
	PageNumber int        `json:"page_number"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Blocks     []OCRBlock `json:"blocks,omitempty"`
}

// OCRResult is the full output of a vision extraction pass.
type OCRResult struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Pages      []OCRPage `json:"pages,omitempty"`
	Language   string    `json:"language,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// HasText reports whether the pass produced any non-whitespace content.
func (r *OCRResult) HasText() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Text {
		if c != ' ' && c != '\n' && c != '\t' && c != '\r' {
			return true
		}
	}
	return false
}
