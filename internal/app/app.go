// -----------------------------------------------------------------------
// Last Modified: Wednesday, 5th November 2025 8:17:54 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/pipeline"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/aestimo/internal/services/benchmarks"
	"github.com/ternarybob/aestimo/internal/services/consistency"
	"github.com/ternarybob/aestimo/internal/services/extraction"
	"github.com/ternarybob/aestimo/internal/services/health"
	"github.com/ternarybob/aestimo/internal/services/llm"
	"github.com/ternarybob/aestimo/internal/services/memo"
	"github.com/ternarybob/aestimo/internal/services/ocr"
	"github.com/ternarybob/aestimo/internal/services/parsers"
	"github.com/ternarybob/aestimo/internal/services/pdf"
	"github.com/ternarybob/aestimo/internal/services/prompts"
	"github.com/ternarybob/aestimo/internal/services/scoring"
	"github.com/ternarybob/aestimo/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Resilience kit
	Degradation *resilience.Degradation
	Breakers    *resilience.BreakerSet
	Perf        *resilience.PerfTracker

	// Document ingestion
	OCRService    interfaces.OCRService
	ParserService interfaces.ParserService

	// Analysis services
	PromptService      interfaces.PromptService
	LLMService         interfaces.LLMService
	AnalyzerService    interfaces.AnalyzerService
	Extractor          interfaces.EntityExtractor
	Reconciler         interfaces.EntityReconciler
	ConsistencyService interfaces.ConsistencyService

	// Scoring and output
	BenchmarkService interfaces.BenchmarkService
	WeightingService interfaces.WeightingService
	ScoreService     interfaces.ScoreService
	PDFService       interfaces.PDFService
	MemoService      interfaces.MemoService

	// Health monitor (started by the caller in long-running mode)
	HealthMonitor *health.Monitor

	// Analysis pipeline
	Pipeline *pipeline.Pipeline
}

// New creates and initializes the application with all its services in
// dependency order.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    config,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	// Load API keys from .env into the KV store before key resolution runs
	if err := a.StorageManager.LoadEnvFile(context.Background(), ".env"); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	// Replace {key-name} references in config values with KV store values.
	// Must happen before the LLM and OCR services resolve their API keys.
	ctx := context.Background()
	pairs, err := a.StorageManager.KeyValueStorage().List(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch KV pairs for config replacement, skipping replacement")
		return nil
	}
	if len(pairs) == 0 {
		a.Logger.Debug().Msg("No key/value pairs found, skipping config replacement")
		return nil
	}

	kvMap := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kvMap[pair.Key] = pair.Value
	}
	if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
	} else {
		a.Logger.Debug().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
	}

	return nil
}

// initServices initializes all business services in dependency order.
//
// ANALYSIS PIPELINE ARCHITECTURE:
// 1. Resilience kit - circuit breakers, degradation registry, perf tracker
// 2. Ingestion - OCR service (optional), document parsers
// 3. Analysis - prompt manager, LLM provider, content analyzer,
//    pattern extractor, entity reconciler, consistency checker
// 4. Scoring - benchmark service (seed + Badger cache), weighting manager,
//    score calculator
// 5. Output - PDF renderer, memo engine
// 6. Pipeline - orchestrates the above per run
//
// Optional capabilities (LLM, OCR) that fail to initialize are marked
// unavailable in the degradation registry instead of failing startup; the
// pipeline refuses to run only when a critical capability is down.
func (a *App) initServices() error {
	var err error

	// 1. Resilience kit
	a.Breakers = resilience.NewBreakerSet(resilience.BreakerConfig{
		FailureThreshold: uint32(a.Config.CircuitBreaker.FailureThreshold),
		RecoveryTimeout:  common.ParseDurationOr(a.Config.CircuitBreaker.RecoveryTimeout, resilience.DefaultBreakerConfig().RecoveryTimeout),
	}, a.Logger)
	a.Degradation = resilience.NewDegradation(a.Config.Degradation.CriticalServices, a.Logger)
	a.Perf = resilience.NewPerfTracker(
		a.Config.Performance.MaxSamplesPerOperation,
		a.Config.Performance.AlertErrorRate,
		a.Logger,
	)
	a.Logger.Debug().Msg("Resilience kit initialized")

	// 2. OCR service (vision fallback for scanned documents)
	if a.Config.OCR.Enabled {
		ocrService, ocrErr := ocr.NewService(a.Config, a.StorageManager, a.Logger)
		if ocrErr != nil {
			a.Logger.Warn().Err(ocrErr).Msg("Failed to initialize OCR service - scanned documents will not be recovered")
			a.Degradation.SetAvailable("ocr", false)
		} else {
			a.OCRService = ocrService
			a.Degradation.SetAvailable("ocr", true)
			a.Logger.Debug().Msg("OCR service initialized")
		}
	} else {
		a.Degradation.SetAvailable("ocr", false)
		a.Logger.Debug().Msg("OCR service disabled by config")
	}

	// 3. Document parsers
	a.ParserService = parsers.NewService(a.Config, a.OCRService, a.Degradation, a.Logger)
	a.Logger.Debug().Msg("Parser service initialized")

	// 4. Prompt manager
	a.PromptService = prompts.NewService(a.Logger)

	// 5. LLM provider and content analyzer
	a.LLMService, err = llm.NewLLMService(a.Config, a.StorageManager, a.Logger)
	if err != nil {
		a.LLMService = nil
		a.Degradation.SetAvailable("llm", false)
		a.Logger.Warn().Err(err).Msg("Failed to initialize LLM service - analysis will be unavailable")
		a.Logger.Info().Msg("To enable analysis, set ANTHROPIC_API_KEY or AESTIMO_GEMINI_API_KEY, or configure llm in aestimo.toml")
	} else {
		a.Degradation.SetAvailable("llm", true)
		a.Logger.Debug().Msg("LLM service initialized")
	}
	a.AnalyzerService = llm.NewAnalyzer(a.LLMService, a.PromptService, a.Config, a.Breakers, a.Logger)

	// 6. Entity extraction and reconciliation
	a.Extractor = extraction.NewExtractor(a.Logger)
	a.Reconciler = extraction.NewReconciler(a.Config, a.Logger)

	// 7. Consistency checker
	a.ConsistencyService = consistency.NewChecker(a.Config, a.Logger)

	// 8. Benchmark service (seed + Badger cache)
	a.BenchmarkService, err = benchmarks.NewService(
		a.Config,
		a.StorageManager.BenchmarkStorage(),
		a.Breakers,
		a.Degradation,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize benchmark service: %w", err)
	}
	a.Degradation.SetAvailable("benchmarks", true)

	// 9. Scoring
	a.WeightingService = scoring.NewManager(a.Config, a.Logger)
	a.ScoreService = scoring.NewCalculator(scoring.NewReferenceStrategy(), a.Logger)

	// 10. Memo output
	a.PDFService = pdf.NewService(a.Logger)
	a.MemoService = memo.NewEngine(a.Config, a.PDFService, a.Logger)

	// 11. Health monitor with capability probes. Start() is deferred to the
	// caller; one-shot runs never need the cron sweep.
	a.HealthMonitor = health.NewMonitor(a.Config, a.Degradation, a.Logger)
	if a.LLMService != nil {
		a.HealthMonitor.Register("llm", a.LLMService.HealthCheck)
	}
	if a.OCRService != nil {
		a.HealthMonitor.Register("ocr", a.OCRService.HealthCheck)
	}
	a.HealthMonitor.Register("benchmarks", a.BenchmarkService.HealthCheck)
	// The storage probe doubles as Badger value log GC, which only
	// matters for long-running watch processes.
	a.HealthMonitor.Register("storage", a.StorageManager.Maintain)

	// 12. Analysis pipeline
	a.Pipeline, err = pipeline.New(a.Config, pipeline.Deps{
		Parsers:     a.ParserService,
		Analyzer:    a.AnalyzerService,
		Extractor:   a.Extractor,
		Reconciler:  a.Reconciler,
		Consistency: a.ConsistencyService,
		Benchmarks:  a.BenchmarkService,
		Weightings:  a.WeightingService,
		Scores:      a.ScoreService,
		Memos:       a.MemoService,
		Degradation: a.Degradation,
		Perf:        a.Perf,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.Logger.Info().Msg("All services initialized")
	return nil
}

// Context returns the application context, cancelled on Close.
func (a *App) Context() context.Context {
	return a.ctx
}

// Close shuts the application down in reverse dependency order.
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.Logger.Debug().Msg("Cancelling background goroutines")
		a.cancelCtx()
	}

	if a.HealthMonitor != nil {
		a.HealthMonitor.Stop()
	}

	if a.Perf != nil {
		for op, snap := range a.Perf.Snapshot() {
			a.Logger.Debug().
				Str("operation", op).
				Int("count", snap.Count).
				Str("p50", snap.P50.String()).
				Str("p95", snap.P95.String()).
				Msg("Operation timing")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
		a.Logger.Debug().Msg("Storage manager closed")
	}

	return nil
}
