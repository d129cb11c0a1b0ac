// -----------------------------------------------------------------------
// Analysis Pipeline - raw document bytes in, deal memo out
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/aestimo/internal/services/extraction"
	"github.com/ternarybob/aestimo/internal/services/memo"
)

// Stage names recorded by the performance tracker.
const (
	opParse       = "pipeline.parse"
	opAnalyze     = "pipeline.analyze"
	opConsistency = "pipeline.consistency"
	opBenchmarks  = "pipeline.benchmarks"
	opScore       = "pipeline.score"
	opMemo        = "pipeline.memo"
)

// benchmarkWarning is the memo warning emitted when the benchmark
// capability is down and the run continues without comparisons.
const benchmarkWarning = "benchmarking unavailable"

// sumSlack absorbs float drift when testing a weight sum against the
// configured tolerance, matching the weighting manager.
const sumSlack = 1e-9

// Deps collects the services the pipeline composes. Degradation and Perf
// are optional; everything else is required.
type Deps struct {
	Parsers     interfaces.ParserService
	Analyzer    interfaces.AnalyzerService
	Extractor   interfaces.EntityExtractor
	Reconciler  interfaces.EntityReconciler
	Consistency interfaces.ConsistencyService
	Benchmarks  interfaces.BenchmarkService
	Weightings  interfaces.WeightingService
	Scores      interfaces.ScoreService
	Memos       interfaces.MemoService
	Degradation *resilience.Degradation
	Perf        *resilience.PerfTracker
}

// Options carries per-run caller hints.
type Options struct {
	// Context seeds prompt generation and consistency checking. Optional.
	Context *models.AnalysisContext

	// Weightings overrides the default weight profile. A partial vector is
	// normalized; nil selects the default profile.
	Weightings *models.Weightings

	// WeightingOptions relaxes weight validation rules for this run.
	WeightingOptions interfaces.WeightingOptions
}

// Outcome is the full pipeline product. Memo is the terminal artifact; the
// intermediate stage outputs are kept for inspection and rendering.
type Outcome struct {
	Memo        *models.DealMemo             `json:"memo"`
	Documents   []*models.ProcessedDocument  `json:"documents,omitempty"`
	Results     []*models.AnalysisResult     `json:"results,omitempty"`
	Merged      *models.AnalysisResult       `json:"merged,omitempty"`
	Consistency *models.ConsistencyReport    `json:"consistency,omitempty"`
	Benchmarks  *models.BenchmarkData        `json:"benchmarks,omitempty"`
	Comparisons []models.BenchmarkComparison `json:"comparisons,omitempty"`
	Breakdown   *models.ScoreBreakdown       `json:"breakdown,omitempty"`
	Weightings  *models.Weightings           `json:"weightings,omitempty"`
	Summary     *models.BatchSummary         `json:"summary,omitempty"`
	Warnings    []string                     `json:"warnings,omitempty"`
	Elapsed     time.Duration                `json:"elapsed"`
}

// Pipeline drives the analysis stages in order: parse, analyze, reconcile
// entities, check consistency, benchmark, weight, score, and synthesize
// the memo. Benchmark failures degrade the run; parser and single-document
// analysis failures degrade to warnings while at least one document
// survives.
type Pipeline struct {
	parsers     interfaces.ParserService
	analyzer    interfaces.AnalyzerService
	extractor   interfaces.EntityExtractor
	reconciler  interfaces.EntityReconciler
	consistency interfaces.ConsistencyService
	benchmarks  interfaces.BenchmarkService
	weightings  interfaces.WeightingService
	scores      interfaces.ScoreService
	memos       interfaces.MemoService
	degradation *resilience.Degradation
	perf        *resilience.PerfTracker
	concurrency int
	tolerance   float64
	logger      arbor.ILogger
}

// New wires the pipeline. Every capability service must be present.
func New(cfg *common.Config, deps Deps, logger arbor.ILogger) (*Pipeline, error) {
	if cfg == nil {
		cfg = common.NewDefaultConfig()
	}
	if logger == nil {
		logger = arbor.NewLogger()
	}

	required := []struct {
		name string
		ok   bool
	}{
		{"parser", deps.Parsers != nil},
		{"analyzer", deps.Analyzer != nil},
		{"entity extractor", deps.Extractor != nil},
		{"entity reconciler", deps.Reconciler != nil},
		{"consistency", deps.Consistency != nil},
		{"benchmark", deps.Benchmarks != nil},
		{"weighting", deps.Weightings != nil},
		{"score", deps.Scores != nil},
		{"memo", deps.Memos != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, resilience.New(resilience.CategoryValidation, "pipeline_dependency_missing",
				fmt.Sprintf("pipeline requires a %s service", r.name))
		}
	}

	concurrency := cfg.LLM.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Pipeline{
		parsers:     deps.Parsers,
		analyzer:    deps.Analyzer,
		extractor:   deps.Extractor,
		reconciler:  deps.Reconciler,
		consistency: deps.Consistency,
		benchmarks:  deps.Benchmarks,
		weightings:  deps.Weightings,
		scores:      deps.Scores,
		memos:       deps.Memos,
		degradation: deps.Degradation,
		perf:        deps.Perf,
		concurrency: concurrency,
		tolerance:   cfg.Scoring.WeightingTolerance,
		logger:      logger,
	}, nil
}

// Run executes the full flow for one document set and returns the memo
// with every intermediate stage output.
func (p *Pipeline) Run(ctx context.Context, raws []*models.RawDocument, opts Options) (*Outcome, error) {
	if len(raws) == 0 {
		return nil, resilience.New(resilience.CategoryValidation, "no_documents",
			"at least one document is required")
	}
	if ctx.Err() != nil {
		return nil, resilience.NewCancelled("pipeline")
	}
	if p.degradation != nil {
		if ok, down := p.degradation.CanProceed(); !ok {
			return nil, resilience.New(resilience.CategoryInternal, "capability_unavailable",
				fmt.Sprintf("critical capabilities down: %s", strings.Join(down, ", ")))
		}
	}

	runID := common.NewRunID()
	start := time.Now()
	var warnings []string

	p.logger.Info().
		Str("run_id", runID).
		Int("documents", len(raws)).
		Msg("Pipeline run starting")

	var (
		docs    []*models.ProcessedDocument
		summary *models.BatchSummary
	)
	err := p.measure(opParse, func() error {
		var stageErr error
		docs, summary, stageErr = p.parsers.ParseBatch(ctx, raws)
		return stageErr
	})
	if err != nil {
		return nil, p.suppress(ctx, err, "document parsing")
	}
	if summary != nil {
		for _, e := range summary.Errors {
			warnings = append(warnings, fmt.Sprintf("%s: %s", e.Filename, e.Message))
		}
	}

	var (
		results []*models.AnalysisResult
		aligned []*models.ProcessedDocument
	)
	err = p.measure(opAnalyze, func() error {
		var stageErr error
		results, aligned, stageErr = p.analyzeDocuments(ctx, docs, opts.Context, &warnings)
		return stageErr
	})
	if err != nil {
		return nil, p.suppress(ctx, err, "analysis")
	}

	var report *models.ConsistencyReport
	err = p.measure(opConsistency, func() error {
		var stageErr error
		report, stageErr = p.consistency.Check(results, aligned, opts.Context)
		return stageErr
	})
	if err != nil {
		return nil, p.suppress(ctx, err, "consistency check")
	}

	merged := mergeResults(results, report)
	for _, w := range merged.Warnings {
		warnings = appendUnique(warnings, w)
	}

	sector := merged.CompanyProfile.Sector
	if sector == "" && opts.Context != nil {
		sector = opts.Context.Sector
	}

	var (
		benchData   *models.BenchmarkData
		comparisons []models.BenchmarkComparison
	)
	err = p.measure(opBenchmarks, func() error {
		var stageErr error
		benchData, comparisons, stageErr = p.lookupBenchmarks(ctx, merged, sector)
		return stageErr
	})
	if err != nil {
		return nil, p.suppress(ctx, err, "benchmark lookup")
	}
	if benchData == nil {
		warnings = appendUnique(warnings, benchmarkWarning)
	}

	weights, weightWarnings, err := p.resolveWeightings(opts)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, weightWarnings...)

	var breakdown *models.ScoreBreakdown
	err = p.measure(opScore, func() error {
		var stageErr error
		breakdown, stageErr = p.scores.Calculate(merged, benchData, weights)
		return stageErr
	})
	if err != nil {
		return nil, p.suppress(ctx, err, "scoring")
	}

	risks := memo.DeriveRisks(merged, report)

	var dealMemo *models.DealMemo
	err = p.measure(opMemo, func() error {
		var stageErr error
		dealMemo, stageErr = p.memos.Generate(ctx, &interfaces.MemoInput{
			Result:      merged,
			Consistency: report,
			Breakdown:   breakdown,
			Risks:       risks,
			Benchmarks:  comparisons,
			Weightings:  weights,
			Warnings:    warnings,
			Documents:   aligned,
		})
		return stageErr
	})
	if err != nil {
		return nil, p.suppress(ctx, err, "memo generation")
	}

	elapsed := time.Since(start)
	p.logger.Info().
		Str("run_id", runID).
		Str("memo_id", dealMemo.ID).
		Str("company", dealMemo.Summary.CompanyName).
		Int("documents", len(aligned)).
		Int("issues", len(report.Issues)).
		Float64("score", dealMemo.Summary.SignalScore).
		Str("recommendation", string(dealMemo.Summary.Recommendation)).
		Str("elapsed", elapsed.String()).
		Msg("Pipeline run completed")

	return &Outcome{
		Memo:        dealMemo,
		Documents:   docs,
		Results:     results,
		Merged:      merged,
		Consistency: report,
		Benchmarks:  benchData,
		Comparisons: comparisons,
		Breakdown:   breakdown,
		Weightings:  weights,
		Summary:     summary,
		Warnings:    warnings,
		Elapsed:     elapsed,
	}, nil
}

// analyzeDocuments fans the documents out over a fixed-width worker pool
// and reconciles entities on each surviving result. A failed document
// degrades to a warning; the stage fails only when nothing survives.
// Output order follows document order regardless of completion order.
func (p *Pipeline) analyzeDocuments(ctx context.Context, docs []*models.ProcessedDocument, analysisCtx *models.AnalysisContext, warnings *[]string) ([]*models.AnalysisResult, []*models.ProcessedDocument, error) {
	type outcome struct {
		result *models.AnalysisResult
		err    error
	}
	outcomes := make([]outcome, len(docs))

	workers := p.concurrency
	if workers > len(docs) {
		workers = len(docs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					outcomes[i] = outcome{err: resilience.NewCancelled("analysis")}
					continue
				}
				result, err := p.analyzeOne(ctx, docs[i], analysisCtx)
				outcomes[i] = outcome{result: result, err: err}
			}
		}()
	}

feed:
	for i := range docs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return nil, nil, resilience.NewCancelled("analysis")
	}

	var (
		results  []*models.AnalysisResult
		aligned  []*models.ProcessedDocument
		firstErr error
	)
	for i, o := range outcomes {
		if o.err != nil {
			if resilience.IsCancelled(o.err) {
				return nil, nil, o.err
			}
			if firstErr == nil {
				firstErr = o.err
			}
			*warnings = append(*warnings, fmt.Sprintf("%s: analysis failed: %s", docLabel(docs[i]), errMessage(o.err)))
			p.logger.Warn().
				Str("document", docLabel(docs[i])).
				Err(o.err).
				Msg("Document analysis failed")
			continue
		}
		results = append(results, o.result)
		aligned = append(aligned, docs[i])
	}

	if len(results) == 0 {
		if firstErr != nil {
			return nil, nil, firstErr
		}
		return nil, nil, resilience.New(resilience.CategoryAIService, "analysis_failed",
			"no document produced an analysis result")
	}
	return results, aligned, nil
}

// analyzeOne runs the LLM workflow for a single document, then merges the
// pattern catalog's entities with the entities derived from the typed
// records into the result's canonical entity set.
func (p *Pipeline) analyzeOne(ctx context.Context, doc *models.ProcessedDocument, analysisCtx *models.AnalysisContext) (*models.AnalysisResult, error) {
	result, err := p.analyzer.AnalyzeContent(ctx, []*models.ProcessedDocument{doc}, analysisCtx)
	if err != nil {
		return nil, err
	}
	patterns := p.extractor.Extract(doc)
	result.Entities = p.reconciler.Reconcile(patterns, extraction.DeriveAIEntities(result))
	return result, nil
}

// lookupBenchmarks fetches the sector vector and positions the company
// against it. Failures other than cancellation degrade the run: scoring
// falls back to the neutral-percentile assumption and the memo carries a
// warning instead of comparisons.
func (p *Pipeline) lookupBenchmarks(ctx context.Context, merged *models.AnalysisResult, sector string) (*models.BenchmarkData, []models.BenchmarkComparison, error) {
	data, err := p.benchmarks.GetBenchmarks(ctx, sector)
	if err != nil {
		if resilience.IsCancelled(err) {
			return nil, nil, err
		}
		p.logger.Warn().
			Str("sector", sector).
			Err(err).
			Msg("Benchmark lookup failed; continuing degraded")
		return nil, nil, nil
	}

	comparisons, err := p.benchmarks.Compare(ctx, &merged.Metrics, &merged.MarketClaims, sector)
	if err != nil {
		if resilience.IsCancelled(err) {
			return nil, nil, err
		}
		p.logger.Warn().
			Str("sector", sector).
			Err(err).
			Msg("Benchmark comparison failed; continuing degraded")
		return nil, nil, nil
	}
	return data, comparisons, nil
}

// resolveWeightings validates the caller's weight vector, normalizing
// partial vectors so the scorer always receives a sum of 100. Nil selects
// the default profile.
func (p *Pipeline) resolveWeightings(opts Options) (*models.Weightings, []string, error) {
	w := opts.Weightings
	if w == nil {
		def := models.DefaultWeightings()
		w = &def
	}

	warnings, err := p.weightings.Validate(w, opts.WeightingOptions)
	if err != nil {
		return nil, nil, err
	}
	if math.Abs(w.Sum()-100) > p.tolerance+sumSlack {
		w = p.weightings.Normalize(w)
	}
	return w, warnings, nil
}

// suppress replaces a stage error with the distinguished cancelled error
// once the caller's scope is cancelled. Cancellation wins over whatever
// the stage reported.
func (p *Pipeline) suppress(ctx context.Context, err error, stage string) error {
	if resilience.IsCancelled(err) {
		return err
	}
	if ctx.Err() != nil {
		return resilience.NewCancelled(stage)
	}
	return err
}

func (p *Pipeline) measure(op string, fn func() error) error {
	if p.perf == nil {
		return fn()
	}
	return p.perf.Measure(op, fn)
}

func docLabel(doc *models.ProcessedDocument) string {
	if doc.Metadata.Filename != "" {
		return doc.Metadata.Filename
	}
	return doc.ID
}

func errMessage(err error) string {
	if te, ok := resilience.AsError(err); ok {
		return te.Message
	}
	return err.Error()
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
