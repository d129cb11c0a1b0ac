package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// BenchmarkService supplies sector percentile distributions for metric
// comparison. Lookups run behind the resilience kit; a failed or unavailable
// backend degrades scoring rather than failing the pipeline.
type BenchmarkService interface {
	// GetBenchmarks returns the percentile vectors for a sector. Unknown
	// sectors fall back to the nearest configured default set.
	GetBenchmarks(ctx context.Context, sector string) (*models.BenchmarkData, error)

	// Compare positions the company's metrics against the sector
	// distribution, yielding one comparison row per metric both sides carry.
	Compare(ctx context.Context, metrics *models.InvestmentMetrics, claims *models.MarketClaims, sector string) ([]models.BenchmarkComparison, error)

	// HealthCheck verifies the benchmark source is reachable.
	HealthCheck(ctx context.Context) error
}

// BenchmarkStorage caches benchmark data locally so lookups survive source
// outages until the cache entry goes stale.
type BenchmarkStorage interface {
	Put(ctx context.Context, data *models.BenchmarkData) error
	Get(ctx context.Context, sector string) (*models.BenchmarkData, error)
	List(ctx context.Context) ([]*models.BenchmarkData, error)
	Delete(ctx context.Context, sector string) error
}
