// -----------------------------------------------------------------------
// Benchmark Service - sector percentile lookup over the embedded seed
// with a Badger cache, behind the benchmarks circuit breaker
// -----------------------------------------------------------------------

package benchmarks

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

var _ interfaces.BenchmarkService = (*Service)(nil)

const defaultCacheTTL = 24 * time.Hour

// Service answers sector benchmark lookups. The embedded seed (or the
// configured override file) is the source of record; lookups go through
// the Badger cache first and the circuit breaker on the way to the
// source, so a broken cache or marked-down backend degrades scoring
// instead of failing the run.
type Service struct {
	storage     interfaces.BenchmarkStorage
	breaker     *resilience.Breaker
	degradation *resilience.Degradation
	seed        map[string]*models.BenchmarkData
	cacheTTL    time.Duration
	logger      arbor.ILogger
}

// NewService loads the seed data and creates the benchmark service. The
// storage and degradation registry may be nil; the breaker set may not.
func NewService(cfg *common.Config, storage interfaces.BenchmarkStorage, breakers *resilience.BreakerSet, degradation *resilience.Degradation, logger arbor.ILogger) (*Service, error) {
	seed, err := loadSeed(seedYAML)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.CategoryInternal, "seed_invalid",
			"embedded benchmark seed failed to load")
	}

	if path := cfg.Benchmarks.SeedFile; path != "" {
		override, err := loadSeedPath(path)
		if err != nil {
			return nil, resilience.Wrap(err, resilience.CategoryValidation, "seed_invalid",
				fmt.Sprintf("benchmark seed override %s failed to load", path))
		}
		for sector, data := range override {
			seed[sector] = data
		}
		logger.Info().
			Str("path", path).
			Int("sectors", len(override)).
			Msg("Applied benchmark seed override")
	}

	logger.Debug().
		Strs("sectors", seededSectors(seed)).
		Msg("Benchmark seed loaded")

	return &Service{
		storage:     storage,
		breaker:     breakers.Get("benchmarks"),
		degradation: degradation,
		seed:        seed,
		cacheTTL:    common.ParseDurationOr(cfg.Benchmarks.CacheTTL, defaultCacheTTL),
		logger:      logger,
	}, nil
}

// GetBenchmarks returns the percentile vectors for a sector. Sectors the
// seed does not cover fall back to the default set under the requested
// sector name. A source failure serves the stale cache entry when one
// exists.
func (s *Service) GetBenchmarks(ctx context.Context, sector string) (*models.BenchmarkData, error) {
	if ctx.Err() != nil {
		return nil, resilience.NewCancelled("benchmark lookup")
	}
	if s.degradation != nil && !s.degradation.Available("benchmarks") {
		return nil, resilience.New(resilience.CategoryInternal, "benchmarks_unavailable",
			"benchmark source is marked unavailable")
	}

	key := normalizeSector(sector)
	if key == "" {
		key = defaultSector
	}

	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	var data *models.BenchmarkData
	err := s.breaker.Execute(func() error {
		var fetchErr error
		data, fetchErr = s.fetch(key)
		return fetchErr
	})
	if err != nil {
		if stale := s.anyCached(ctx, key); stale != nil {
			s.logger.Warn().
				Str("sector", key).
				Err(err).
				Msg("Benchmark source failed; serving stale cache entry")
			return stale, nil
		}
		return nil, err
	}

	if s.storage != nil {
		if putErr := s.storage.Put(ctx, data); putErr != nil {
			s.logger.Warn().
				Str("sector", key).
				Err(putErr).
				Msg("Failed to cache benchmark data")
		}
	}

	return data, nil
}

// cached returns the cache entry for a sector while it is still fresh.
func (s *Service) cached(ctx context.Context, key string) *models.BenchmarkData {
	if s.storage == nil {
		return nil
	}
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil
	}
	staleness := common.CheckCacheStaleness(data.CachedAt, s.cacheTTL, time.Now())
	if staleness.IsStale {
		s.logger.Debug().
			Str("sector", key).
			Str("reason", staleness.Reason).
			Msg("Benchmark cache entry stale")
		return nil
	}
	s.logger.Debug().
		Str("sector", key).
		Msg("Benchmark cache hit")
	return data
}

// anyCached returns the cache entry for a sector regardless of age.
func (s *Service) anyCached(ctx context.Context, key string) *models.BenchmarkData {
	if s.storage == nil {
		return nil
	}
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil
	}
	return data
}

// fetch resolves a sector from the seed, falling back to the default set
// under the requested name.
func (s *Service) fetch(key string) (*models.BenchmarkData, error) {
	if data, ok := s.seed[key]; ok {
		result := *data
		return &result, nil
	}

	fallback, ok := s.seed[defaultSector]
	if !ok {
		return nil, resilience.New(resilience.CategoryInternal, "sector_unknown",
			fmt.Sprintf("no benchmark data for sector %q and no default set", key))
	}

	s.logger.Debug().
		Str("sector", key).
		Msg("Sector not seeded; using default benchmark bands")

	result := *fallback
	result.Sector = key
	return &result, nil
}

// Compare positions the company's metrics against the sector bands,
// producing one row per metric both sides carry.
func (s *Service) Compare(ctx context.Context, metrics *models.InvestmentMetrics, claims *models.MarketClaims, sector string) ([]models.BenchmarkComparison, error) {
	data, err := s.GetBenchmarks(ctx, sector)
	if err != nil {
		return nil, err
	}

	var rows []models.BenchmarkComparison
	add := func(metric string, value *float64) {
		if value == nil {
			return
		}
		band, ok := data.Metrics[metric]
		if !ok {
			return
		}
		rank := band.PercentileRank(*value)
		rows = append(rows, models.BenchmarkComparison{
			Metric:         metric,
			CompanyValue:   *value,
			SectorP25:      band.P25,
			SectorP50:      band.P50,
			SectorP75:      band.P75,
			SectorP90:      band.P90,
			PercentileRank: rank,
			Standing:       standing(rank),
		})
	}

	if metrics != nil {
		add("arr", metrics.Revenue.ARR)
		add("mrr", metrics.Revenue.MRR)
		add("growth_rate", metrics.Revenue.GrowthRate)
		add("gross_margin", metrics.Revenue.GrossMargin)
		add("customers", metrics.Traction.Customers)
		add("churn_rate", metrics.Traction.ChurnRate)
		add("nps", metrics.Traction.NPS)
		add("ltv_cac_ratio", metrics.Traction.LTVCACRatio)
		add("team_size", metrics.Team.Size)
		add("total_raised", metrics.Funding.TotalRaised)
		add("valuation", metrics.Funding.Valuation)
	}
	if claims != nil {
		add("tam", claims.TAM)
		add("market_growth_rate", claims.MarketGrowthRate)
	}

	s.logger.Debug().
		Str("sector", data.Sector).
		Int("rows", len(rows)).
		Msg("Benchmark comparison built")

	return rows, nil
}

// HealthCheck verifies the seed is loaded and the cache is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if len(s.seed) == 0 {
		return resilience.New(resilience.CategoryInternal, "seed_missing", "no benchmark seed loaded")
	}
	if s.storage != nil {
		if _, err := s.storage.List(ctx); err != nil {
			return resilience.Wrap(err, resilience.CategoryInternal, "cache_unreachable",
				"benchmark cache is unreachable")
		}
	}
	return nil
}

// standing buckets a percentile rank: the bottom quartile is below the
// sector, the top quartile above it.
func standing(rank int) string {
	switch {
	case rank < 25:
		return "below"
	case rank > 75:
		return "above"
	default:
		return "within"
	}
}
