// -----------------------------------------------------------------------
// PDF Renderer - renders deal-memo markdown to PDF
// Walks the goldmark AST and draws with fpdf
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	bodyFont     = "Arial"
	bodyFontSize = 9.0
	pageWidth    = 180.0 // A4 width minus margins, mm
)

// Service renders memo markdown as PDF documents.
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.PDFService = (*Service)(nil)

// NewService creates the PDF renderer.
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// ConvertMarkdownToPDF converts markdown content to a PDF byte slice. The
// title lands in the document properties, not the page; the memo carries
// its own H1.
func (s *Service) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	if markdown == "" {
		return nil, resilience.New(resilience.CategoryValidation, "markdown_empty", "no markdown content to render")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("aestimo", true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont(bodyFont, "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s  |  page %d of {nb}", title, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	pdf.SetFont(bodyFont, "", bodyFontSize)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &memoRenderer{
		pdf:    pdf,
		source: source,
	}

	if err := ast.Walk(doc, renderer.walk); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render memo PDF")
		return nil, resilience.Wrap(err, resilience.CategoryInternal, "pdf_render_failed", "markdown walk failed")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryInternal, "pdf_output_failed", "PDF serialization failed")
	}

	s.logger.Debug().
		Str("title", title).
		Int("markdown_len", len(markdown)).
		Int("pdf_size", buf.Len()).
		Msg("Memo PDF generated")

	return buf.Bytes(), nil
}

// memoRenderer carries the draw state through the AST walk.
type memoRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	bold   bool
	italic bool

	listDepth int
	ordinals  []int // next item number per list level; 0 for bullet lists
}

func (r *memoRenderer) styleFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(bodyFont, style, bodyFontSize)
}

func (r *memoRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		return r.handleParagraph(entering)
	case ast.KindText:
		return r.handleText(n.(*ast.Text), entering)
	case ast.KindEmphasis:
		return r.handleEmphasis(n.(*ast.Emphasis), entering)
	case ast.KindList:
		return r.handleList(n.(*ast.List), entering)
	case ast.KindListItem:
		return r.handleListItem(entering)
	case ast.KindThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case extast.KindTable:
		return r.handleTable(n.(*extast.Table), entering)
	}
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(6)
		size := 10.0
		switch n.Level {
		case 1:
			size = 15
		case 2:
			size = 12
		case 3:
			size = 10.5
		}
		r.pdf.SetFont(bodyFont, "B", size)
		if n.Level <= 2 {
			r.pdf.SetTextColor(30, 30, 90)
		}
	} else {
		r.pdf.SetTextColor(0, 0, 0)
		r.pdf.Ln(6)
		r.styleFont()
	}
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleParagraph(entering bool) (ast.WalkStatus, error) {
	if !entering {
		r.pdf.Ln(6)
	}
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleText(n *ast.Text, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Write(5, string(n.Text(r.source)))
		if n.SoftLineBreak() || n.HardLineBreak() {
			r.pdf.Ln(5)
			if r.listDepth > 0 {
				r.pdf.SetX(15 + float64(r.listDepth)*5 + 4)
			}
		}
	}
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleEmphasis(n *ast.Emphasis, entering bool) (ast.WalkStatus, error) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.styleFont()
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleList(n *ast.List, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.listDepth++
		ordinal := 0
		if n.IsOrdered() {
			ordinal = n.Start
			if ordinal == 0 {
				ordinal = 1
			}
		}
		r.ordinals = append(r.ordinals, ordinal)
	} else {
		r.listDepth--
		r.ordinals = r.ordinals[:len(r.ordinals)-1]
		if r.listDepth == 0 {
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleListItem(entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(5)
		indent := float64(r.listDepth) * 5.0
		r.pdf.SetX(15 + indent)

		level := len(r.ordinals) - 1
		if level >= 0 && r.ordinals[level] > 0 {
			r.pdf.Write(5, fmt.Sprintf("%d. ", r.ordinals[level]))
			r.ordinals[level]++
		} else {
			r.pdf.Write(5, "- ")
		}
	}
	return ast.WalkContinue, nil
}

func (r *memoRenderer) handleTable(n *extast.Table, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *extast.TableRow:
				rows = append(rows, r.extractRow(c))
			case *extast.TableHeader:
				collect(c)
			}
		}
	}
	collect(n)

	r.renderTable(rows)
	return ast.WalkSkipChildren, nil
}

func (r *memoRenderer) extractRow(n *extast.TableRow) []string {
	var row []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			row = append(row, string(cell.Text(r.source)))
		}
	}
	return row
}

func (r *memoRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	r.pdf.Ln(2)

	numCols := len(rows[0])
	fontSize := 8.0
	lineHeight := 4.0
	colWidths := r.columnWidths(rows, numCols, fontSize)

	for i, row := range rows {
		header := i == 0
		if header {
			r.pdf.SetFont(bodyFont, "B", fontSize)
		} else {
			r.pdf.SetFont(bodyFont, "", fontSize)
		}

		maxLines := 1
		for j, cell := range row {
			if j < numCols {
				if lines := r.linesNeeded(cell, colWidths[j]-2); lines > maxLines {
					maxLines = lines
				}
			}
		}
		if maxLines > 8 {
			maxLines = 8
		}

		rowHeight := float64(maxLines)*lineHeight + 2
		startY := r.pdf.GetY()
		startX := r.pdf.GetX()

		if startY+rowHeight > 282 {
			r.pdf.AddPage()
			startY = r.pdf.GetY()
		}

		x := startX
		for j, cell := range row {
			if j >= numCols {
				break
			}
			if header {
				r.pdf.SetFillColor(230, 230, 235)
				r.pdf.Rect(x, startY, colWidths[j], rowHeight, "FD")
			} else {
				r.pdf.Rect(x, startY, colWidths[j], rowHeight, "D")
			}
			r.pdf.SetXY(x+1, startY+1)
			r.renderCell(cell, colWidths[j]-2, lineHeight, maxLines)
			x += colWidths[j]
		}

		r.pdf.SetXY(startX, startY+rowHeight)
	}

	r.pdf.Ln(3)
	r.styleFont()
}

// columnWidths sizes columns from measured content, bounded to a third of
// the page each, then scales the set to fit the page.
func (r *memoRenderer) columnWidths(rows [][]string, numCols int, fontSize float64) []float64 {
	widths := make([]float64, numCols)

	r.pdf.SetFont(bodyFont, "", fontSize)
	for _, row := range rows {
		for i, cell := range row {
			if i < numCols {
				if w := r.pdf.GetStringWidth(cell) + 4; w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	// Headers measure wider in bold.
	r.pdf.SetFont(bodyFont, "B", fontSize)
	for i, cell := range rows[0] {
		if i < numCols {
			if w := r.pdf.GetStringWidth(cell) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}
	r.pdf.SetFont(bodyFont, "", fontSize)

	minWidth := 12.0
	maxWidth := pageWidth / 3
	total := 0.0
	for i := range widths {
		if widths[i] < minWidth {
			widths[i] = minWidth
		}
		if widths[i] > maxWidth {
			widths[i] = maxWidth
		}
		total += widths[i]
	}

	if total > pageWidth {
		scale := pageWidth / total
		for i := range widths {
			widths[i] *= scale
			if widths[i] < minWidth*0.8 {
				widths[i] = minWidth * 0.8
			}
		}
	}
	return widths
}

// linesNeeded counts wrapped lines for a cell at the given width.
func (r *memoRenderer) linesNeeded(text string, width float64) int {
	if text == "" || width <= 0 {
		return 1
	}
	lines := 1
	lineWidth := 0.0
	spaceWidth := r.pdf.GetStringWidth(" ")
	for _, word := range strings.Fields(text) {
		wordWidth := r.pdf.GetStringWidth(word)
		switch {
		case lineWidth == 0:
			lineWidth = wordWidth
		case lineWidth+spaceWidth+wordWidth <= width:
			lineWidth += spaceWidth + wordWidth
		default:
			lines++
			lineWidth = wordWidth
		}
	}
	return lines
}

// renderCell draws word-wrapped cell text, truncating the last visible
// line with an ellipsis when the content overflows maxLines.
func (r *memoRenderer) renderCell(text string, width, lineHeight float64, maxLines int) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}

	var lines []string
	current := ""
	currentWidth := 0.0
	spaceWidth := r.pdf.GetStringWidth(" ")
	for _, word := range words {
		wordWidth := r.pdf.GetStringWidth(word)
		switch {
		case current == "":
			current = word
			currentWidth = wordWidth
		case currentWidth+spaceWidth+wordWidth <= width:
			current += " " + word
			currentWidth += spaceWidth + wordWidth
		default:
			lines = append(lines, current)
			current = word
			currentWidth = wordWidth
		}
	}
	lines = append(lines, current)

	for i := 0; i < len(lines) && i < maxLines; i++ {
		line := lines[i]
		if i == maxLines-1 && len(lines) > maxLines {
			for r.pdf.GetStringWidth(line+"...") > width && len(line) > 3 {
				line = line[:len(line)-1]
			}
			line += "..."
		}
		r.pdf.CellFormat(width, lineHeight, line, "", 2, "L", false, 0, "")
	}
}
