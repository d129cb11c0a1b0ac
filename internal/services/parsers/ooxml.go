package parsers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// openContainer opens an OOXML document, which is a zip archive.
func openContainer(data []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid OOXML container: %w", err)
	}
	return reader, nil
}

// containerFile reads one named entry from the container.
func containerFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("container has no %s entry", name)
}

// slideRuns extracts the text runs of one slide. Each paragraph becomes
// one run: the drawing markup splits visible text across many <a:t>
// elements, so paragraph grouping is what preserves title and bullet
// boundaries.
func slideRuns(slideXML []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(slideXML))

	var runs []string
	var paragraph strings.Builder
	inText := false

	flush := func() {
		if text := strings.TrimSpace(paragraph.String()); text != "" {
			runs = append(runs, text)
		}
		paragraph.Reset()
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed slide markup: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br":
				paragraph.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flush()
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	flush()

	return runs, nil
}

// docParagraph is one paragraph of a word-processed document with its
// style name, used to recover the heading hierarchy.
type docParagraph struct {
	style string
	text  string
}

// headingLevel maps a paragraph style to its heading level 1 through 6,
// or 0 when the paragraph is body text. The document title counts as a
// top-level heading.
func (p docParagraph) headingLevel() int {
	style := strings.ToLower(strings.ReplaceAll(p.style, " ", ""))
	if style == "title" {
		return 1
	}
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	suffix := strings.TrimPrefix(style, "heading")
	if len(suffix) != 1 || suffix[0] < '1' || suffix[0] > '6' {
		return 0
	}
	return int(suffix[0] - '0')
}

// documentParagraphs extracts the paragraphs of word/document.xml in
// order, with text accumulated across runs and the paragraph style
// captured from pStyle.
func documentParagraphs(documentXML []byte) ([]docParagraph, error) {
	decoder := xml.NewDecoder(bytes.NewReader(documentXML))

	var paragraphs []docParagraph
	var current docParagraph
	inParagraph := false
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document markup: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current = docParagraph{}
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						current.style = attr.Value
					}
				}
			case "t":
				inText = true
			case "tab":
				if inParagraph {
					current.text += " "
				}
			case "br":
				if inParagraph {
					current.text += "\n"
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph {
					paragraphs = append(paragraphs, current)
				}
				inParagraph = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inParagraph && inText {
				current.text += string(t)
			}
		}
	}

	return paragraphs, nil
}
