package interfaces

// PDFService renders memo markdown as a PDF document.
type PDFService interface {
	// ConvertMarkdownToPDF renders markdown to PDF bytes. The title goes
	// into the document properties; the page content comes entirely from
	// the markdown.
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}
