package parsers

import (
	"sort"
	"strings"

	"github.com/ternarybob/aestimo/internal/models"
)

const (
	// blockRowTolerance groups blocks whose vertical positions differ by no
	// more than this into one reading row.
	blockRowTolerance = 20.0

	// headingTopBand is the page region in which a title-pattern block
	// counts as a heading regardless of spacing.
	headingTopBand = 100.0

	// headingGapBelow is the vertical whitespace under a block that marks
	// it as a heading outside the top band.
	headingGapBelow = 10.0
)

// sectionsFromBlocks converts OCR page blocks into document sections.
// Blocks are ordered top-to-bottom then left-to-right with a row
// tolerance; a block becomes a heading when it matches the shared title
// patterns and either sits in the top band of the page or has clear
// vertical whitespace before the next block. Everything else accumulates
// into the current section.
func sectionsFromBlocks(result *models.OCRResult, sourceDocument string) []models.DocumentSection {
	if result == nil {
		return nil
	}

	var sections []models.DocumentSection
	var title string
	var confidence float64
	var pageNumber int
	var content []string
	started := false

	flush := func() {
		if !started {
			return
		}
		body := strings.TrimSpace(strings.Join(content, "\n"))
		if title == "" {
			title = synthesizeTitle(body)
			confidence = synthesizedConfidence
		}
		sections = append(sections, models.DocumentSection{
			Title:          title,
			Content:        body,
			PageNumber:     pageNumber,
			SourceDocument: sourceDocument,
			Confidence:     confidence,
		})
		title, confidence, content, started = "", 0, nil, false
	}

	for _, page := range result.Pages {
		ordered := orderBlocks(page.Blocks)
		for i, block := range ordered {
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}

			if isBlockHeading(block, nextBlockBelow(ordered, i)) {
				flush()
				title = text
				confidence = headingConfidence(text)
				pageNumber = page.PageNumber
				started = true
				continue
			}

			if !started {
				pageNumber = page.PageNumber
				started = true
			}
			content = append(content, text)
		}
	}
	flush()

	return sections
}

// orderBlocks sorts blocks into reading order: rows built top-to-bottom
// with the row tolerance, blocks within a row left-to-right.
func orderBlocks(blocks []models.OCRBlock) []models.OCRBlock {
	ordered := make([]models.OCRBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BoundingBox.Y < ordered[j].BoundingBox.Y
	})

	// Greedy row grouping: a block joins the current row while its top
	// stays within the tolerance of the row anchor.
	var rows [][]models.OCRBlock
	for _, block := range ordered {
		if n := len(rows); n > 0 && block.BoundingBox.Y-rows[n-1][0].BoundingBox.Y <= blockRowTolerance {
			rows[n-1] = append(rows[n-1], block)
			continue
		}
		rows = append(rows, []models.OCRBlock{block})
	}

	out := ordered[:0]
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].BoundingBox.X < row[j].BoundingBox.X
		})
		out = append(out, row...)
	}
	return out
}

// nextBlockBelow finds the first following block positioned under the
// current one. Blocks on the same row do not count.
func nextBlockBelow(ordered []models.OCRBlock, i int) *models.OCRBlock {
	current := ordered[i]
	for j := i + 1; j < len(ordered); j++ {
		if ordered[j].BoundingBox.Y-current.BoundingBox.Y > blockRowTolerance {
			return &ordered[j]
		}
	}
	return nil
}

// isBlockHeading applies the heading rule for OCR blocks: the text must
// match the shared title patterns, and the block must sit in the top band
// of the page or be followed by clear vertical whitespace.
func isBlockHeading(block models.OCRBlock, below *models.OCRBlock) bool {
	text := strings.TrimSpace(block.Text)
	if text == "" || strings.Contains(text, "\n") {
		return false
	}
	if !looksLikeHeading(text) {
		return false
	}

	if block.BoundingBox.Y <= headingTopBand {
		return true
	}
	if below == nil {
		return true
	}
	gap := below.BoundingBox.Y - (block.BoundingBox.Y + block.BoundingBox.Height)
	return gap >= headingGapBelow
}
