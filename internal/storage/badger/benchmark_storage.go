package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// BenchmarkStorage caches sector benchmark data in Badger so lookups keep
// working through source outages.
type BenchmarkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBenchmarkStorage creates a new BenchmarkStorage instance
func NewBenchmarkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BenchmarkStorage {
	return &BenchmarkStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeSector lowercases and trims the sector key so "SaaS" and "saas"
// hit the same cache entry.
func normalizeSector(sector string) string {
	return strings.ToLower(strings.TrimSpace(sector))
}

// Put stores benchmark data keyed by normalized sector, stamping CachedAt
func (s *BenchmarkStorage) Put(ctx context.Context, data *models.BenchmarkData) error {
	if data == nil || strings.TrimSpace(data.Sector) == "" {
		return fmt.Errorf("benchmark data requires a sector")
	}

	record := *data
	record.Sector = normalizeSector(data.Sector)
	record.CachedAt = time.Now()

	if err := s.db.Store().Upsert(record.Sector, &record); err != nil {
		return fmt.Errorf("failed to cache benchmarks for %s: %w", record.Sector, err)
	}

	s.logger.Debug().
		Str("sector", record.Sector).
		Int("metrics", len(record.Metrics)).
		Msg("Cached sector benchmarks")

	return nil
}

// Get retrieves cached benchmark data for a sector
func (s *BenchmarkStorage) Get(ctx context.Context, sector string) (*models.BenchmarkData, error) {
	key := normalizeSector(sector)
	var data models.BenchmarkData
	err := s.db.Store().Get(key, &data)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get benchmarks for %s: %w", key, err)
	}
	return &data, nil
}

// List returns all cached sectors ordered by sector name
func (s *BenchmarkStorage) List(ctx context.Context) ([]*models.BenchmarkData, error) {
	var records []models.BenchmarkData
	err := s.db.Store().Find(&records, badgerhold.Where("Sector").Ne("").SortBy("Sector"))
	if err != nil {
		return nil, fmt.Errorf("failed to list cached benchmarks: %w", err)
	}

	out := make([]*models.BenchmarkData, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}

// Delete removes a cached sector entry
func (s *BenchmarkStorage) Delete(ctx context.Context, sector string) error {
	key := normalizeSector(sector)
	err := s.db.Store().Delete(key, &models.BenchmarkData{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete benchmarks for %s: %w", key, err)
	}
	return nil
}
