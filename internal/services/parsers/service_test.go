package parsers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

func newParserService(t *testing.T, cfg *common.Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = common.NewDefaultConfig()
	}
	return NewService(cfg, nil, nil, arbor.NewLogger())
}

func TestServiceDispatchByExtension(t *testing.T) {
	service := newParserService(t, nil)

	doc, err := service.ParseDocument(context.Background(), &models.RawDocument{
		Filename: "memo.md",
		Data:     []byte("# Overview\n\nAcme builds robots for the warehouse and all buyers."),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeText, doc.SourceType)

	deck := buildContainer(t, []containerEntry{
		{name: "ppt/slides/slide1.xml", data: slideXML("Problem", "Warehouses waste labor on manual picking.")},
	})
	doc, err = service.ParseDocument(context.Background(), &models.RawDocument{Filename: "deck.pptx", Data: deck})
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypePPTX, doc.SourceType)
}

func TestServiceExtensionBeatsMime(t *testing.T) {
	service := newParserService(t, nil)

	doc, err := service.ParseDocument(context.Background(), &models.RawDocument{
		Filename: "notes.txt",
		MimeType: "application/pdf",
		Data:     []byte("Plain notes about the team and all the customers we have."),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeText, doc.SourceType)
}

func TestServiceMimeFallback(t *testing.T) {
	service := newParserService(t, nil)

	doc, err := service.ParseDocument(context.Background(), &models.RawDocument{
		Filename: "notes.bin",
		MimeType: "text/plain",
		Data:     []byte("Plain notes about the team and all the customers we have."),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeText, doc.SourceType)
}

func TestServiceUnsupportedFormat(t *testing.T) {
	service := newParserService(t, nil)

	_, err := service.ParseDocument(context.Background(), &models.RawDocument{
		Filename: "data.xyz",
		MimeType: "application/octet-stream",
		Data:     []byte{0x01, 0x02},
	})
	require.Error(t, err)

	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, resilience.CategoryValidation, rerr.Category)
	assert.Equal(t, "unsupported_format", rerr.Code)
}

func TestServiceRejectsEmptyDocument(t *testing.T) {
	service := newParserService(t, nil)

	_, err := service.ParseDocument(context.Background(), &models.RawDocument{Filename: "empty.txt"})
	require.Error(t, err)
	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "empty_document", rerr.Code)

	_, err = service.ParseDocument(context.Background(), nil)
	require.Error(t, err)
	rerr, ok = resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "no_document", rerr.Code)
}

func TestServiceParseBatchMixed(t *testing.T) {
	service := newParserService(t, nil)

	raws := []*models.RawDocument{
		{Filename: "one.md", Data: []byte("# Overview\n\nFirst memo about the market and all the numbers.")},
		{Filename: "broken.docx", Data: []byte("not a zip archive")},
		{Filename: "two.md", Data: []byte("# Funding\n\nSecond memo about the round and all the terms.")},
	}

	docs, summary, err := service.ParseBatch(context.Background(), raws)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "one.md", docs[0].Metadata.Filename)
	assert.Equal(t, "two.md", docs[1].Metadata.Filename)

	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.SuccessfullyProcessed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "broken.docx", summary.Errors[0].Filename)
	assert.Equal(t, "docx_container", summary.Errors[0].Code)
}

func TestServiceParseBatchAllFailed(t *testing.T) {
	service := newParserService(t, nil)

	raws := []*models.RawDocument{
		{Filename: "a.docx", Data: []byte("garbage")},
		{Filename: "b.pptx", Data: []byte("garbage")},
	}

	docs, summary, err := service.ParseBatch(context.Background(), raws)
	require.Error(t, err)
	assert.Nil(t, docs)

	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "batch_failed", rerr.Code)
	assert.Equal(t, resilience.CategoryDocumentProcessing, rerr.Category)

	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.SuccessfullyProcessed)
	assert.Equal(t, 2, summary.Failed)
}

func TestServiceParseBatchEmpty(t *testing.T) {
	service := newParserService(t, nil)

	_, _, err := service.ParseBatch(context.Background(), nil)
	require.Error(t, err)
	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "no_documents", rerr.Code)
	assert.Equal(t, resilience.CategoryValidation, rerr.Category)
}

func TestServiceParseBatchPreservesOrder(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Parser.MaxConcurrency = 4
	service := newParserService(t, cfg)

	raws := make([]*models.RawDocument, 6)
	for i := range raws {
		raws[i] = &models.RawDocument{
			Filename: fmt.Sprintf("doc%d.txt", i),
			Data:     []byte(fmt.Sprintf("payload number %d for the batch and all its workers", i)),
		}
	}

	docs, summary, err := service.ParseBatch(context.Background(), raws)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.SuccessfullyProcessed)

	require.Len(t, docs, 6)
	for i, doc := range docs {
		assert.Equal(t, fmt.Sprintf("doc%d.txt", i), doc.Metadata.Filename)
	}
}

func TestServiceParseBatchCancelled(t *testing.T) {
	service := newParserService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs, summary, err := service.ParseBatch(ctx, []*models.RawDocument{
		{Filename: "one.md", Data: []byte("# Overview\n\nBody.")},
	})
	require.Error(t, err)
	assert.Nil(t, docs)
	assert.Nil(t, summary)

	rerr, ok := resilience.AsError(err)
	require.True(t, ok)
	assert.Equal(t, resilience.CodeCancelled, rerr.Code)
}
