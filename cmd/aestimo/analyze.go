// -----------------------------------------------------------------------
// Last Modified: Friday, 8th November 2025 4:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aestimo/internal/app"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/pipeline"
)

// runAnalyze parses the named documents, runs the analysis pipeline, and
// writes the memo artifacts to the output directory.
func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)

	var configFiles configPaths
	fs.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	fs.Var(&configFiles, "c", "Configuration file path (shorthand)")

	provider := fs.String("provider", "", "LLM provider override (gemini or claude)")
	model := fs.String("model", "", "Model override for the active provider")
	logLevel := fs.String("log-level", "", "Log level override (debug, info, warn, error)")
	outDir := fs.String("out", ".", "Directory for generated memo files")
	markdown := fs.Bool("markdown", false, "Also write the memo as markdown")
	pdfOut := fs.Bool("pdf", false, "Also render the memo as PDF")
	company := fs.String("company", "", "Company name seeding the analysis context")
	sector := fs.String("sector", "", "Sector seeding the analysis context (saas, fintech, ...)")
	stage := fs.String("stage", "", "Funding stage seeding the analysis context (pre_seed, seed, series_a, ...)")
	watch := fs.Bool("watch", false, "Keep the process alive with scheduled health probes after the run")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "at least one document is required: aestimo analyze [flags] <file>...")
		fs.Usage()
		os.Exit(2)
	}

	config, logger := loadConfig(configFiles, *provider, *model, *logLevel)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	raws, err := readDocuments(files)
	if err != nil {
		application.Close()
		logger.Fatal().Err(err).Msg("Failed to read input documents")
	}

	opts := pipeline.Options{}
	if *company != "" || *sector != "" || *stage != "" {
		opts.Context = &models.AnalysisContext{
			CompanyName: *company,
			Sector:      strings.ToLower(*sector),
			Stage:       models.ParseFundingStage(*stage),
		}
	}

	// Interrupt cancels the run instead of killing the process mid-write
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		if err := application.HealthMonitor.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start health monitor")
		}
	}

	logger.Info().
		Int("documents", len(raws)).
		Str("out", *outDir).
		Msg("Starting analysis")

	outcome, err := application.Pipeline.Run(ctx, raws, opts)
	if err != nil {
		application.Close()
		logger.Fatal().Err(err).Msg("Analysis failed")
	}

	if err := writeOutputs(application, outcome, *outDir, *markdown, *pdfOut, logger); err != nil {
		application.Close()
		logger.Fatal().Err(err).Msg("Failed to write memo outputs")
	}

	logger.Info().
		Str("company", outcome.Memo.Summary.CompanyName).
		Str("recommendation", string(outcome.Memo.Summary.Recommendation)).
		Float64("score", outcome.Memo.Summary.SignalScore).
		Float64("confidence", outcome.Memo.Summary.Confidence).
		Int("warnings", len(outcome.Warnings)).
		Str("elapsed", outcome.Elapsed.String()).
		Msg("Analysis complete")

	if *watch {
		logger.Info().Msg("Watch mode - Press Ctrl+C to stop")
		<-ctx.Done()
		logger.Info().Msg("Interrupt signal received")
	}
}

// readDocuments loads each input file into a raw document. The parser
// routes on the filename extension.
func readDocuments(paths []string) ([]*models.RawDocument, error) {
	raws := make([]*models.RawDocument, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		raws = append(raws, &models.RawDocument{
			Filename: filepath.Base(path),
			Data:     data,
		})
	}
	return raws, nil
}

// writeOutputs writes memo.json plus any requested renderings to outDir.
func writeOutputs(application *app.App, outcome *pipeline.Outcome, outDir string, markdown, pdfOut bool, logger arbor.ILogger) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", outDir, err)
	}

	jsonPath := filepath.Join(outDir, "memo.json")
	data, err := json.MarshalIndent(outcome.Memo, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memo: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	logger.Info().Str("path", jsonPath).Msg("Memo written")

	if markdown {
		md, err := application.MemoService.RenderMarkdown(outcome.Memo)
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		mdPath := filepath.Join(outDir, "memo.md")
		if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", mdPath, err)
		}
		logger.Info().Str("path", mdPath).Msg("Markdown memo written")
	}

	if pdfOut {
		rendered, err := application.MemoService.RenderPDF(outcome.Memo)
		if err != nil {
			return fmt.Errorf("render pdf: %w", err)
		}
		pdfPath := filepath.Join(outDir, "memo.pdf")
		if err := os.WriteFile(pdfPath, rendered, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", pdfPath, err)
		}
		logger.Info().Str("path", pdfPath).Msg("PDF memo written")
	}

	return nil
}
