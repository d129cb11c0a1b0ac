package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
)

func saasBenchmarks() *models.BenchmarkData {
	return &models.BenchmarkData{
		Sector:     "SaaS",
		SampleSize: 120,
		Metrics: map[string]models.PercentileBand{
			"arr_growth_rate": {P25: 40, P50: 80, P75: 150, P90: 250},
			"churn_rate":      {P25: 3, P50: 5, P75: 9, P90: 15},
		},
		LastUpdated: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBenchmarkStorageRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.BenchmarkStorage()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, saasBenchmarks()))

	// Lookup normalizes the sector key
	got, err := store.Get(ctx, "  SAAS ")
	require.NoError(t, err)
	assert.Equal(t, "saas", got.Sector)
	assert.Equal(t, 120, got.SampleSize)
	assert.Equal(t, 80.0, got.Metrics["arr_growth_rate"].P50)
	assert.WithinDuration(t, time.Now(), got.CachedAt, 5*time.Second, "Put stamps CachedAt")
}

func TestBenchmarkStoragePutRequiresSector(t *testing.T) {
	mgr := newTestManager(t)

	err := mgr.BenchmarkStorage().Put(context.Background(), &models.BenchmarkData{Sector: "  "})
	assert.Error(t, err)

	err = mgr.BenchmarkStorage().Put(context.Background(), nil)
	assert.Error(t, err)
}

func TestBenchmarkStorageGetMissing(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.BenchmarkStorage().Get(context.Background(), "spacetech")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestBenchmarkStorageListSortedBySector(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.BenchmarkStorage()
	ctx := context.Background()

	saas := saasBenchmarks()
	fintech := saasBenchmarks()
	fintech.Sector = "Fintech"

	require.NoError(t, store.Put(ctx, saas))
	require.NoError(t, store.Put(ctx, fintech))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "fintech", records[0].Sector)
	assert.Equal(t, "saas", records[1].Sector)
}

func TestBenchmarkStorageDelete(t *testing.T) {
	mgr := newTestManager(t)
	store := mgr.BenchmarkStorage()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, saasBenchmarks()))
	require.NoError(t, store.Delete(ctx, "saas"))

	_, err := store.Get(ctx, "saas")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "saas"), interfaces.ErrKeyNotFound)
}

func TestBenchmarkAndKVEntriesDoNotCollide(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	// Same key in both stores; badgerhold namespaces by type
	require.NoError(t, mgr.KeyValueStorage().Set(ctx, "saas", "a string"))
	require.NoError(t, mgr.BenchmarkStorage().Put(ctx, saasBenchmarks()))

	val, err := mgr.KeyValueStorage().Get(ctx, "saas")
	require.NoError(t, err)
	assert.Equal(t, "a string", val)

	data, err := mgr.BenchmarkStorage().Get(ctx, "saas")
	require.NoError(t, err)
	assert.Equal(t, 120, data.SampleSize)
}
