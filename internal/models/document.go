package models

import (
	"time"
)

// SourceType identifies the document format a parser handled.
type SourceType string

const (
	SourceTypePDF  SourceType = "pdf"
	SourceTypeDOCX SourceType = "docx"
	SourceTypePPTX SourceType = "pptx"
	SourceTypeText SourceType = "text"
)

// ExtractionMethod records which extraction path produced the text.
type ExtractionMethod string

const (
	// ExtractionText means the native text layer was sufficient
	ExtractionText ExtractionMethod = "text"
	// ExtractionOCR means OCR output replaced an unusable text layer
	ExtractionOCR ExtractionMethod = "ocr"
	// ExtractionHybrid means both the text layer and OCR contributed content
	ExtractionHybrid ExtractionMethod = "hybrid"
)

// ProcessingStatus tracks a document through the pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusInProgress ProcessingStatus = "in_progress"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// DocumentMetadata describes an uploaded document. Immutable after creation.
type DocumentMetadata struct {
	Filename         string           `json:"filename"`
	ByteSize         int64            `json:"byte_size"`
	MimeType         string           `json:"mime_type"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
}

// DocumentSection is one structural unit recovered from a document.
// Produced only by parsers and the OCR block grouper.
type DocumentSection struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	PageNumber     int     `json:"page_number,omitempty"` // 1-indexed; 0 when the format has no pages
	SourceDocument string  `json:"source_document"`       // Always the owning document's filename
	Confidence     float64 `json:"confidence"`            // Heading-detection confidence in [0,1]
}

// QualityScores grades an extraction on three axes, each in [0,1].
type QualityScores struct {
	TextClarity           float64 `json:"text_clarity"`
	StructurePreservation float64 `json:"structure_preservation"`
	Completeness          float64 `json:"completeness"`
}

// ProcessedDocument is the parser output consumed by the extraction stage.
// Created by parsers, never mutated downstream.
type ProcessedDocument struct {
	ID               string            `json:"id"` // doc_{uuid}
	SourceType       SourceType        `json:"source_type"`
	ExtractedText    string            `json:"extracted_text"`
	Sections         []DocumentSection `json:"sections"`
	Metadata         DocumentMetadata  `json:"metadata"`
	WordCount        int               `json:"word_count"` // Whitespace token count of ExtractedText
	PageCount        int               `json:"page_count,omitempty"`
	Language         string            `json:"language"` // ISO code or "unknown"
	Encoding         string            `json:"encoding"`
	ExtractionMethod ExtractionMethod  `json:"extraction_method"`
	Quality          QualityScores     `json:"quality"`
	Warnings         []string          `json:"warnings,omitempty"`
	ProcessedAt      time.Time         `json:"processed_at"`
	Duration         time.Duration     `json:"duration"`
}

// RawDocument is an unparsed upload: the bytes plus the declared identity.
type RawDocument struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"-"`
}

// BatchError reports one failed document inside a batch parse.
type BatchError struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// BatchSummary reports the outcome of parsing a document set. The pipeline
// continues whenever SuccessfullyProcessed is at least one.
type BatchSummary struct {
	SuccessfullyProcessed int          `json:"successfully_processed"`
	Failed                int          `json:"failed"`
	Errors                []BatchError `json:"errors,omitempty"`
}
