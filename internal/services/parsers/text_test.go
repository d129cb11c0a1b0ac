package parsers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

func TestTextParseMarkdownSections(t *testing.T) {
	content := "# Overview\n\nAcme builds robots for the warehouse market and all related sectors.\n\n## Funding\n\nWe are raising a seed round."

	parser := NewTextParser(arbor.NewLogger())
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "memo.md", Data: []byte(content)})
	require.NoError(t, err)

	assert.Equal(t, models.SourceTypeText, doc.SourceType)
	assert.Equal(t, models.ExtractionText, doc.ExtractionMethod)
	assert.Equal(t, "utf-8", doc.Encoding)
	assert.Equal(t, "en", doc.Language)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Overview", doc.Sections[0].Title)
	assert.Equal(t, "Acme builds robots for the warehouse market and all related sectors.", doc.Sections[0].Content)
	assert.InDelta(t, 0.6, doc.Sections[0].Confidence, 1e-9)
	assert.Equal(t, "Funding", doc.Sections[1].Title)
	assert.Equal(t, "We are raising a seed round.", doc.Sections[1].Content)
	assert.InDelta(t, 0.9, doc.Sections[1].Confidence, 1e-9)
	assert.Equal(t, "memo.md", doc.Sections[0].SourceDocument)
}

func TestTextParseMarkdownPreface(t *testing.T) {
	content := "Intro paragraph for everyone to read.\n\n# Plan\n\nDo the things today."

	parser := NewTextParser(arbor.NewLogger())
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "memo.md", Data: []byte(content)})
	require.NoError(t, err)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Intro paragraph for everyone to read.", doc.Sections[0].Title)
	assert.InDelta(t, 0.3, doc.Sections[0].Confidence, 1e-9)
	assert.Equal(t, "Plan", doc.Sections[1].Title)
	assert.Equal(t, "Do the things today.", doc.Sections[1].Content)
}

func TestTextParseHTMLUsesPageTitle(t *testing.T) {
	html := `<html><head><title>Acme Robotics</title></head><body><p>We build robots for the warehouse and all adjacent markets.</p></body></html>`

	parser := NewTextParser(arbor.NewLogger())
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "pitch.html", Data: []byte(html)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc.ExtractedText, "# Acme Robotics"))
	require.NotEmpty(t, doc.Sections)
	assert.Equal(t, "Acme Robotics", doc.Sections[0].Title)
	assert.Contains(t, doc.Sections[0].Content, "We build robots")
}

func TestTextParseLatin1Fallback(t *testing.T) {
	data := []byte("Caf\xe9 report\n\nRevenue grew with the team and all customers.")

	parser := NewTextParser(arbor.NewLogger())
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "notes.txt", Data: data})
	require.NoError(t, err)

	assert.Equal(t, "latin-1", doc.Encoding)
	assert.Contains(t, doc.ExtractedText, "Café report")
	assert.Contains(t, strings.Join(doc.Warnings, " | "), "Latin-1")
}

func TestTextParsePlainHeuristics(t *testing.T) {
	content := "EXECUTIVE SUMMARY\nAcme sells robots to warehouses across the region and beyond for everyone.\n\nTEAM\nTwo founders and one advisor."

	parser := NewTextParser(arbor.NewLogger())
	doc, err := parser.Parse(context.Background(), &models.RawDocument{Filename: "notes.txt", Data: []byte(content)})
	require.NoError(t, err)

	assert.Equal(t, "en", doc.Language)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "EXECUTIVE SUMMARY", doc.Sections[0].Title)
	assert.Equal(t, "TEAM", doc.Sections[1].Title)
}

func TestTextParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parser := NewTextParser(arbor.NewLogger())
	_, err := parser.Parse(ctx, &models.RawDocument{Filename: "notes.txt", Data: []byte("hello")})
	require.Error(t, err)

	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, resilience.CodeCancelled, rerr.Code)
}

func TestTextSupports(t *testing.T) {
	parser := NewTextParser(arbor.NewLogger())

	assert.True(t, parser.Supports("notes.txt", ""))
	assert.True(t, parser.Supports("README.md", ""))
	assert.True(t, parser.Supports("page.HTML", ""))
	assert.True(t, parser.Supports("", "text/plain; charset=utf-8"))
	assert.True(t, parser.Supports("", "text/markdown"))
	assert.False(t, parser.Supports("data.bin", "text/plain"))
	assert.False(t, parser.Supports("", "application/pdf"))
}
