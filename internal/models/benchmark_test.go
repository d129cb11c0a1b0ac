package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileRankBands(t *testing.T) {
	band := PercentileBand{P25: 40, P50: 80, P75: 150, P90: 250}

	assert.Equal(t, 25, band.PercentileRank(40))
	assert.Equal(t, 50, band.PercentileRank(80))
	assert.Equal(t, 75, band.PercentileRank(150))
	assert.Equal(t, 90, band.PercentileRank(250))

	// Midpoints interpolate linearly
	assert.Equal(t, 38, band.PercentileRank(60))  // halfway 25->50 band
	assert.Equal(t, 83, band.PercentileRank(200)) // halfway 75->90 band
}

func TestPercentileRankClamps(t *testing.T) {
	band := PercentileBand{P25: 40, P50: 80, P75: 150, P90: 250}

	assert.Equal(t, 100, band.PercentileRank(10_000), "above p90 pins to 100")
	assert.Equal(t, 0, band.PercentileRank(0))
	assert.Equal(t, 0, band.PercentileRank(-5), "negative values clamp to 0")
}

func TestPercentileRankDegenerateBand(t *testing.T) {
	// Zero p25 cannot divide; collapsed bands fall back to unit spans
	zero := PercentileBand{}
	assert.Equal(t, 0, zero.PercentileRank(0))

	flat := PercentileBand{P25: 5, P50: 5, P75: 5, P90: 5}
	assert.Equal(t, 25, flat.PercentileRank(5))
	assert.Equal(t, 100, flat.PercentileRank(6))
}
