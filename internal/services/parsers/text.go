package parsers

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var _ interfaces.DocumentParser = (*TextParser)(nil)

// textNominalWords is the whole-document completeness expectation for
// transcripts and notes.
const textNominalWords = 400

// TextParser handles plain text, markdown, and HTML documents. HTML is
// converted to markdown first; markdown documents are sectioned from
// their heading structure; plain text falls back to the shared line
// heuristics.
type TextParser struct {
	logger arbor.ILogger
}

// NewTextParser creates the text parser.
func NewTextParser(logger arbor.ILogger) *TextParser {
	return &TextParser{logger: logger}
}

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

var textMimeTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/html":     true,
}

// Supports reports whether the document is a text format.
func (p *TextParser) Supports(filename, mimeType string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return filename == "" && textMimeTypes[mimeType]
}

// SourceType returns the format identifier.
func (p *TextParser) SourceType() models.SourceType {
	return models.SourceTypeText
}

// Parse decodes the text and recovers sections. Markdown headings drive
// sectioning when present; otherwise the shared heuristics apply.
func (p *TextParser) Parse(ctx context.Context, raw *models.RawDocument) (*models.ProcessedDocument, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, resilience.NewCancelled("text parsing")
	}

	result := &parseResult{encoding: "utf-8"}

	content := string(raw.Data)
	if !utf8.Valid(raw.Data) {
		content = decodeLatin1(raw.Data)
		result.encoding = "latin-1"
		result.warnings = append(result.warnings, "input is not valid UTF-8; decoded as Latin-1")
	}

	ext := strings.ToLower(filepath.Ext(raw.Filename))
	isHTML := ext == ".html" || ext == ".htm" || strings.HasPrefix(raw.MimeType, "text/html")
	isMarkdown := ext == ".md" || ext == ".markdown" || strings.HasPrefix(raw.MimeType, "text/markdown")

	if isHTML {
		converted, err := htmlToMarkdown(content)
		if err != nil {
			return nil, resilience.Wrap(err, resilience.CategoryDocumentProcessing, "html_conversion", "failed to convert HTML document")
		}
		content = converted
		isMarkdown = true
	}

	result.text = normalizeText(content)
	if isMarkdown {
		result.sections = sectionsFromMarkdown(result.text, raw.Filename)
	}
	if len(result.sections) == 0 {
		result.sections = segmentText(result.text, raw.Filename)
	}

	return assembleDocument(raw, models.SourceTypeText, result, textNominalWords, startTime), nil
}

// decodeLatin1 maps each byte to the equivalent rune. Lossless for any
// input, which makes it the safe fallback for undeclared encodings.
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// htmlToMarkdown converts an HTML document to markdown. The page title
// becomes a top-level heading when the body does not already start with
// one.
func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}
	converted = strings.TrimSpace(converted)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		title := strings.TrimSpace(doc.Find("title").First().Text())
		if title != "" && !strings.HasPrefix(converted, "#") {
			converted = "# " + title + "\n\n" + converted
		}
	}

	return converted, nil
}

// sectionsFromMarkdown walks the markdown heading structure. Each heading
// opens a section holding the source text up to the next heading.
func sectionsFromMarkdown(markdown, sourceDocument string) []models.DocumentSection {
	source := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(source))

	type headingMark struct {
		title     string
		lineStart int
		lineStop  int
	}
	var marks []headingMark

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		start := lineStartBefore(source, lines.At(0).Start)
		stop := lineEndAfter(source, lines.At(lines.Len()-1).Stop)
		marks = append(marks, headingMark{
			title:     strings.TrimSpace(nodeText(heading, source)),
			lineStart: start,
			lineStop:  stop,
		})
		return ast.WalkContinue, nil
	})

	if len(marks) == 0 {
		return nil
	}

	var sections []models.DocumentSection
	if preface := strings.TrimSpace(string(source[:marks[0].lineStart])); preface != "" {
		sections = append(sections, models.DocumentSection{
			Title:          synthesizeTitle(preface),
			Content:        preface,
			SourceDocument: sourceDocument,
			Confidence:     synthesizedConfidence,
		})
	}

	for i, mark := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1].lineStart
		}
		content := strings.TrimSpace(string(source[mark.lineStop:end]))
		sections = append(sections, models.DocumentSection{
			Title:          mark.title,
			Content:        content,
			SourceDocument: sourceDocument,
			Confidence:     headingConfidence(mark.title),
		})
	}

	return sections
}

// nodeText concatenates the text content of a node's children.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, source))
		}
	}
	return b.String()
}

// lineStartBefore walks back from an offset to the start of its line.
func lineStartBefore(source []byte, offset int) int {
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}

// lineEndAfter walks forward from an offset past the end of its line.
func lineEndAfter(source []byte, offset int) int {
	for offset < len(source) && source[offset] != '\n' {
		offset++
	}
	if offset < len(source) {
		offset++
	}
	return offset
}
