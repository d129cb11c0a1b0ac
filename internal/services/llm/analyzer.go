// -----------------------------------------------------------------------
// Content Analyzer - runs the four-prompt analysis workflow over parsed
// documents and assembles the structured analysis result
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.AnalyzerService = (*Analyzer)(nil)

const (
	// analysisConfidence is the fixed confidence attached to AI-extracted
	// analysis results.
	analysisConfidence = 0.8

	defaultRequestTimeout = 30 * time.Second
	defaultMaxConcurrency = 4
)

// Workflow slot positions. The prompt service returns the workflow in this
// fixed order; the analyzer maps responses to result fields by position.
const (
	slotCompanyProfile = iota
	slotInvestmentMetrics
	slotMarketClaims
	slotTeamAssessment
	workflowSlots
)

// Analyzer orchestrates LLM analysis of processed documents. Every prompt
// call runs through the retry policy with a fresh per-attempt timeout, and
// through the llm circuit breaker so a failing provider trips quickly.
type Analyzer struct {
	llm            interfaces.LLMService
	prompts        interfaces.PromptService
	breaker        *resilience.Breaker
	logger         arbor.ILogger
	retry          resilience.RetryConfig
	requestTimeout time.Duration
	maxConcurrency int
}

// NewAnalyzer creates the content analyzer.
func NewAnalyzer(llmService interfaces.LLMService, promptService interfaces.PromptService, cfg *common.Config, breakers *resilience.BreakerSet, logger arbor.ILogger) *Analyzer {
	maxConcurrency := cfg.LLM.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	return &Analyzer{
		llm:     llmService,
		prompts: promptService,
		breaker: breakers.Get("llm"),
		logger:  logger,
		retry: resilience.RetryConfig{
			MaxRetries:        cfg.Retry.MaxAttempts,
			BaseDelay:         common.ParseDurationOr(cfg.Retry.BaseDelay, 1*time.Second),
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
			MaxDelay:          common.ParseDurationOr(cfg.Retry.MaxDelay, 30*time.Second),
			Jitter:            cfg.Retry.Jitter,
		},
		requestTimeout: common.ParseDurationOr(cfg.LLM.RequestTimeout, defaultRequestTimeout),
		maxConcurrency: maxConcurrency,
	}
}

// promptOutcome carries one workflow prompt's result back to the collector.
type promptOutcome struct {
	index  int
	result *interfaces.GenerateResult
	err    error
}

// AnalyzeContent runs the analysis workflow over the given documents.
//
// The documents are concatenated with filename markers, the four workflow
// prompts are dispatched concurrently through a bounded worker pool, and
// the responses are decoded into the analysis result by slot position.
//
// The company profile and investment metrics slots are required: a failure
// there fails the whole analysis. The market claims and team assessment
// slots degrade to empty values with a warning.
func (a *Analyzer) AnalyzeContent(ctx context.Context, docs []*models.ProcessedDocument, analysisCtx *models.AnalysisContext) (*models.AnalysisResult, error) {
	if len(docs) == 0 {
		return nil, resilience.New(resilience.CategoryValidation, "no_documents", "at least one processed document is required for analysis")
	}
	if analysisCtx == nil {
		analysisCtx = &models.AnalysisContext{}
	}

	startTime := time.Now()
	combined := combineDocuments(docs)

	a.logger.Info().
		Int("document_count", len(docs)).
		Int("combined_length", len(combined)).
		Str("company", analysisCtx.CompanyName).
		Msg("Starting content analysis")

	generated, err := a.prompts.Workflow(analysisCtx, map[string]string{"documents": combined})
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryInternal, "workflow_generation_failed", "failed to generate analysis prompts")
	}
	if len(generated) != workflowSlots {
		return nil, resilience.New(resilience.CategoryInternal, "workflow_shape", fmt.Sprintf("analysis workflow produced %d prompts, expected %d", len(generated), workflowSlots))
	}

	slots := a.dispatchPrompts(ctx, generated)

	if ctx.Err() != nil {
		return nil, resilience.NewCancelled("content analysis")
	}

	result, err := a.assembleResult(slots, generated, docs, startTime)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Int("document_count", len(docs)).
		Int("warning_count", len(result.Warnings)).
		Dur("duration", result.ProcessingTime).
		Msg("Content analysis completed")

	return result, nil
}

// dispatchPrompts fans the workflow prompts out over a fixed-width worker
// pool and collects the outcomes into their slot positions.
func (a *Analyzer) dispatchPrompts(ctx context.Context, generated []*models.GeneratedPrompt) []promptOutcome {
	jobs := make(chan int)
	outcomes := make(chan promptOutcome, len(generated))

	workers := a.maxConcurrency
	if workers > len(generated) {
		workers = len(generated)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, err := a.runPrompt(ctx, generated[idx])
				outcomes <- promptOutcome{index: idx, result: result, err: err}
			}
		}()
	}

	for idx := range generated {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	slots := make([]promptOutcome, len(generated))
	for outcome := range outcomes {
		slots[outcome.index] = outcome
	}
	return slots
}

// runPrompt executes one generated prompt with retry, a fresh per-attempt
// timeout, and circuit breaker protection. The breaker sits inside the
// retry loop so every failed attempt counts toward tripping it.
func (a *Analyzer) runPrompt(ctx context.Context, prompt *models.GeneratedPrompt) (*interfaces.GenerateResult, error) {
	genConfig := &interfaces.GenerationConfig{
		MaxOutputTokens: prompt.MaxTokens,
		Temperature:     prompt.Temperature,
		ResponseSchema:  prompt.OutputSchema,
	}

	var result *interfaces.GenerateResult
	err := resilience.WithRetry(ctx, a.retry, a.logger, "llm_"+prompt.Name, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
		defer cancel()

		return a.breaker.Execute(func() error {
			generated, genErr := a.llm.Generate(attemptCtx, prompt.SystemText, prompt.UserText, genConfig)
			if genErr != nil {
				return genErr
			}
			result = generated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// assembleResult decodes the four slot outcomes into the analysis result.
func (a *Analyzer) assembleResult(slots []promptOutcome, generated []*models.GeneratedPrompt, docs []*models.ProcessedDocument, startTime time.Time) (*models.AnalysisResult, error) {
	var warnings []string

	profile, profileWarnings, err := decodeRequiredSlot(slots[slotCompanyProfile], generated[slotCompanyProfile].Name, decodeCompanyProfile)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, profileWarnings...)
	if strings.TrimSpace(profile.Name) == "" {
		return nil, resilience.New(resilience.CategoryAIService, resilience.CodeExtractionFailed, "company profile extraction returned no company name")
	}

	metrics, metricWarnings, err := decodeRequiredSlot(slots[slotInvestmentMetrics], generated[slotInvestmentMetrics].Name, decodeInvestmentMetrics)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, metricWarnings...)

	claims, claimWarnings := decodeOptionalSlot(a.logger, slots[slotMarketClaims], generated[slotMarketClaims].Name, decodeMarketClaims)
	warnings = append(warnings, claimWarnings...)

	team, teamWarnings := decodeOptionalSlot(a.logger, slots[slotTeamAssessment], generated[slotTeamAssessment].Name, decodeTeamAssessment)
	warnings = append(warnings, teamWarnings...)

	sourceIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		sourceIDs = append(sourceIDs, doc.ID)
	}

	return &models.AnalysisResult{
		AnalysisType:      "investment_analysis",
		CompanyProfile:    profile,
		Metrics:           metrics,
		MarketClaims:      claims,
		TeamAssessment:    team,
		Confidence:        analysisConfidence,
		ProcessingTime:    time.Since(startTime),
		SourceDocumentIDs: sourceIDs,
		Warnings:          warnings,
		ExtractedAt:       time.Now().UTC(),
	}, nil
}

// decodeRequiredSlot decodes a slot whose failure fails the whole analysis.
func decodeRequiredSlot[T any](outcome promptOutcome, name string, decode func(string) (T, []string, error)) (T, []string, error) {
	var zero T

	text, warnings, err := usableText(outcome, name)
	if err != nil {
		return zero, nil, resilience.Wrap(err, resilience.CategoryAIService, resilience.CodeExtractionFailed, fmt.Sprintf("%s analysis failed", name))
	}

	value, decodeWarnings, err := decode(text)
	if err != nil {
		return zero, nil, resilience.Wrap(err, resilience.CategoryAIService, resilience.CodeExtractionFailed, fmt.Sprintf("%s response could not be decoded", name))
	}

	return value, append(warnings, decodeWarnings...), nil
}

// decodeOptionalSlot decodes a slot whose failure degrades to a zero value
// plus a warning.
func decodeOptionalSlot[T any](logger arbor.ILogger, outcome promptOutcome, name string, decode func(string) (T, []string, error)) (T, []string) {
	var zero T

	text, warnings, err := usableText(outcome, name)
	if err != nil {
		logger.Warn().Err(err).Str("prompt", name).Msg("Optional analysis prompt failed, continuing without it")
		return zero, append(warnings, fmt.Sprintf("%s analysis unavailable: %v", name, err))
	}

	value, decodeWarnings, err := decode(text)
	if err != nil {
		logger.Warn().Err(err).Str("prompt", name).Msg("Optional analysis response could not be decoded, continuing without it")
		return zero, append(warnings, fmt.Sprintf("%s analysis unavailable: %v", name, err))
	}

	return value, append(warnings, decodeWarnings...)
}

// usableText validates a slot outcome and returns its response text.
// Safety-blocked responses are unusable; truncated responses are passed
// through with a warning since repair can often still salvage them.
func usableText(outcome promptOutcome, name string) (string, []string, error) {
	if outcome.err != nil {
		return "", nil, outcome.err
	}
	if outcome.result == nil {
		return "", nil, fmt.Errorf("no response received")
	}
	if outcome.result.FinishReason == interfaces.FinishSafety {
		return "", nil, fmt.Errorf("response blocked by provider safety filters")
	}
	if strings.TrimSpace(outcome.result.Text) == "" {
		return "", nil, fmt.Errorf("response was empty (finish reason %s)", outcome.result.FinishReason)
	}

	var warnings []string
	if outcome.result.FinishReason == interfaces.FinishMaxTokens {
		warnings = append(warnings, fmt.Sprintf("%s response was truncated at the token limit", name))
	}
	return outcome.result.Text, warnings, nil
}

// combineDocuments concatenates document texts with filename markers so the
// model can attribute statements to their source.
func combineDocuments(docs []*models.ProcessedDocument) string {
	var builder strings.Builder
	for i, doc := range docs {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString("=== ")
		builder.WriteString(doc.Metadata.Filename)
		builder.WriteString(" ===\n")
		builder.WriteString(doc.ExtractedText)
	}
	return builder.String()
}
