// -----------------------------------------------------------------------
// Parser Base - shared text normalization, section heuristics, language
// detection, and extraction quality scoring used by every format parser
// -----------------------------------------------------------------------

package parsers

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
)

const (
	// maxHeadingLength is the longest line still considered a heading.
	maxHeadingLength = 100

	// maxHeadingWords bounds title-case heading detection so capitalized
	// sentences without terminal punctuation do not register as headings.
	maxHeadingWords = 12

	// synthesizedTitleLength caps titles derived from body content.
	synthesizedTitleLength = 50

	// baseHeadingConfidence is the starting score for an identified heading.
	baseHeadingConfidence = 0.5

	// synthesizedConfidence marks sections whose title was derived from
	// content rather than a detected heading.
	synthesizedConfidence = 0.3
)

var (
	spaceRunRegex        = regexp.MustCompile(`[ \t]+`)
	numberedHeadingRegex = regexp.MustCompile(`^\d+\.\s+[A-Z]`)
	numberedPrefixRegex  = regexp.MustCompile(`^\d+\.\s+`)
)

// businessVocabulary is the heading vocabulary of investor-facing
// documents. A match raises heading confidence.
var businessVocabulary = []string{
	"executive summary",
	"problem",
	"solution",
	"market",
	"business model",
	"traction",
	"team",
	"financials",
	"funding",
	"competition",
	"appendix",
	"product",
	"go to market",
	"unit economics",
	"use of funds",
	"roadmap",
	"ask",
}

// englishStopwords is the fixed set behind the language heuristic. Three
// distinct whole-word hits classify a document as English.
var englishStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "with": true, "this": true,
	"have": true, "from": true, "that": true, "was": true, "were": true,
	"will": true, "our": true, "has": true, "its": true, "can": true,
}

// parseResult is the per-format extraction outcome before document
// assembly. OCRRequired is advisory; only the PDF parser acts on it,
// other formats surface it as a warning.
type parseResult struct {
	text        string
	sections    []models.DocumentSection
	pageCount   int
	ocrRequired bool
	language    string
	encoding    string
	method      models.ExtractionMethod
	warnings    []string
}

// normalizeText applies the shared cleanup pass: CRLF and CR become LF,
// runs of spaces and tabs collapse to one space, every line is trimmed,
// and runs of three or more blank lines collapse to two.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunRegex.ReplaceAllString(line, " "))
		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// isAllCapsHeading reports whether a line is an all-capitals heading
// candidate: at most 100 chars, at least two letters, no lowercase.
func isAllCapsHeading(line string) bool {
	if utf8.RuneCountInString(line) > maxHeadingLength {
		return false
	}
	letters := 0
	for _, r := range line {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

// isNumberedHeading reports whether a line starts with a numbered heading
// marker such as "3. Market".
func isNumberedHeading(line string) bool {
	return utf8.RuneCountInString(line) <= maxHeadingLength && numberedHeadingRegex.MatchString(line)
}

// minor words may stay lowercase inside a title-case heading.
var minorTitleWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "for": true, "to": true,
	"with": true, "at": true, "by": true, "from": true,
}

// isTitleCaseHeading reports whether a line reads as a title-case heading
// candidate: short, no sentence-terminal punctuation, every significant
// word capitalized. Context (a following body line) is checked by the
// caller.
func isTitleCaseHeading(line string) bool {
	if utf8.RuneCountInString(line) > maxHeadingLength {
		return false
	}
	if hasSentenceTerminal(line) {
		return false
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > maxHeadingWords {
		return false
	}
	for i, word := range words {
		r, _ := utf8.DecodeRuneInString(word)
		if unicode.IsLetter(r) {
			if unicode.IsUpper(r) {
				continue
			}
			if i > 0 && minorTitleWords[strings.ToLower(word)] {
				continue
			}
			return false
		}
		// Non-letter tokens (numbers, symbols) neither qualify nor
		// disqualify a title.
	}
	first, _ := utf8.DecodeRuneInString(words[0])
	return unicode.IsUpper(first)
}

// looksLikeHeading reports whether the line matches any of the shared
// title patterns, independent of surrounding context.
func looksLikeHeading(line string) bool {
	return isAllCapsHeading(line) || isNumberedHeading(line) || isTitleCaseHeading(line)
}

// hasSentenceTerminal reports whether a string ends with sentence-closing
// punctuation.
func hasSentenceTerminal(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// headingConfidence scores an identified heading: base 0.5, +0.3 for a
// business-vocabulary match, +0.2 for a numbered heading, +0.1 for proper
// capitalization, capped at 1.0.
func headingConfidence(title string) float64 {
	confidence := baseHeadingConfidence

	tokens := " " + foldForMatch(title) + " "
	for _, term := range businessVocabulary {
		if strings.Contains(tokens, " "+term+" ") {
			confidence += 0.3
			break
		}
	}

	if numberedHeadingRegex.MatchString(title) {
		confidence += 0.2
	}

	stripped := numberedPrefixRegex.ReplaceAllString(title, "")
	if isTitleCaseHeading(stripped) || isAllCapsHeading(stripped) {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// foldForMatch lowercases a title and reduces it to space-separated word
// tokens for whole-word vocabulary matching.
func foldForMatch(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// synthesizeTitle derives a section title from the first characters of
// body content, cut at a word boundary where possible.
func synthesizeTitle(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	if utf8.RuneCountInString(content) <= synthesizedTitleLength {
		return content
	}

	runes := []rune(content)
	cut := synthesizedTitleLength
	for i := cut; i > synthesizedTitleLength/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

// segmentText splits normalized text into sections using the shared
// heading heuristics. Content before the first heading becomes a section
// with a synthesized title.
func segmentText(text, sourceDocument string) []models.DocumentSection {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var sections []models.DocumentSection
	var title string
	var confidence float64
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
			SourceDocument: sourceDocument,
			Confidence:     confidence,
		})
		title, confidence, content, started = "", 0, nil, false
	}

	for i, line := range lines {
		if line == "" {
			if started {
				content = append(content, "")
			}
			continue
		}

		heading := isAllCapsHeading(line) || isNumberedHeading(line)
		if !heading && isTitleCaseHeading(line) {
			// Title-case lines only count as headings when body text
			// follows.
			if next := nextNonEmpty(lines, i+1); next != "" && !looksLikeHeading(next) {
				heading = true
			}
		}

		if heading {
			flush()
			title = line
			confidence = headingConfidence(line)
			started = true
			continue
		}

		if !started {
			started = true
		}
		content = append(content, line)
	}
	flush()

	return sections
}

func nextNonEmpty(lines []string, from int) string {
	for _, line := range lines[from:] {
		if line != "" {
			return line
		}
	}
	return ""
}

// countWords returns the whitespace token count of a text.
func countWords(text string) int {
	return len(strings.Fields(text))
}

// detectLanguage classifies extracted text: three distinct English
// stopwords as whole words mean "en"; otherwise the dominant Unicode
// block decides between zh, ja, ru, and ar; otherwise "unknown".
func detectLanguage(text string) string {
	seen := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?()[]{}\"'")
		if englishStopwords[token] {
			seen[token] = true
			if len(seen) >= 3 {
				return "en"
			}
		}
	}

	var letters, han, kana, cyrillic, arabic int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		}
	}
	if letters == 0 {
		return "unknown"
	}

	total := float64(letters)
	switch {
	// Kana is distinctive for Japanese even when kanji dominates the text.
	case kana > 0 && float64(kana+han)/total >= 0.2:
		return "ja"
	case float64(han)/total >= 0.3:
		return "zh"
	case float64(cyrillic)/total >= 0.3:
		return "ru"
	case float64(arabic)/total >= 0.3:
		return "ar"
	}
	return "unknown"
}

// computeQuality grades an extraction on the three quality axes.
//
// Text clarity is the printable-rune ratio of the text. Structure
// preservation grows with recovered section count and mean section
// confidence. Completeness compares the word count against a nominal
// expectation for the format (per page when the format has pages,
// whole-document otherwise).
func computeQuality(text string, sections []models.DocumentSection, pageCount, nominalWords int) models.QualityScores {
	var quality models.QualityScores

	if total := utf8.RuneCountInString(text); total > 0 {
		printable := 0
		for _, r := range text {
			if r == '\n' || r == '\t' || unicode.IsPrint(r) {
				if r != utf8.RuneError {
					printable++
				}
			}
		}
		quality.TextClarity = float64(printable) / float64(total)
	}

	if len(sections) > 0 {
		var confidenceSum float64
		for _, s := range sections {
			confidenceSum += s.Confidence
		}
		meanConfidence := confidenceSum / float64(len(sections))
		counted := len(sections)
		if counted > 4 {
			counted = 4
		}
		quality.StructurePreservation = 0.4 + 0.1*float64(counted) + 0.2*meanConfidence
		if quality.StructurePreservation > 1.0 {
			quality.StructurePreservation = 1.0
		}
	} else if strings.TrimSpace(text) != "" {
		quality.StructurePreservation = 0.2
	}

	if words := countWords(text); words > 0 && nominalWords > 0 {
		expected := nominalWords
		if pageCount > 1 {
			expected = nominalWords * pageCount
		}
		quality.Completeness = float64(words) / float64(expected)
		if quality.Completeness > 1.0 {
			quality.Completeness = 1.0
		}
	}

	return quality
}

// assembleDocument turns a format parser's result into the pipeline
// artifact: IDs, metadata, word count, language, and quality are filled
// here so every parser behaves identically.
func assembleDocument(raw *models.RawDocument, sourceType models.SourceType, result *parseResult, nominalWords int, startTime time.Time) *models.ProcessedDocument {
	for i := range result.sections {
		result.sections[i].SourceDocument = raw.Filename
	}

	language := result.language
	if language == "" {
		language = detectLanguage(result.text)
	}
	encoding := result.encoding
	if encoding == "" {
		encoding = "utf-8"
	}
	method := result.method
	if method == "" {
		method = models.ExtractionText
	}

	warnings := result.warnings
	if strings.TrimSpace(result.text) == "" {
		warnings = append(warnings, "document produced no extractable text")
	}

	return &models.ProcessedDocument{
		ID:            common.NewDocumentID(),
		SourceType:    sourceType,
		ExtractedText: result.text,
		Sections:      result.sections,
		Metadata: models.DocumentMetadata{
			Filename:         raw.Filename,
			ByteSize:         int64(len(raw.Data)),
			MimeType:         raw.MimeType,
			UploadedAt:       startTime.UTC(),
			ProcessingStatus: models.StatusCompleted,
		},
		WordCount:        countWords(result.text),
		PageCount:        result.pageCount,
		Language:         language,
		Encoding:         encoding,
		ExtractionMethod: method,
		Quality:          computeQuality(result.text, result.sections, result.pageCount, nominalWords),
		Warnings:         warnings,
		ProcessedAt:      time.Now().UTC(),
		Duration:         time.Since(startTime),
	}
}
