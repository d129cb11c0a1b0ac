package models

import "time"

// PercentileBand is the sector distribution of one metric.
type PercentileBand struct {
	P25 float64 `json:"p25" yaml:"p25"`
	P50 float64 `json:"p50" yaml:"p50"`
	P75 float64 `json:"p75" yaml:"p75"`
	P90 float64 `json:"p90" yaml:"p90"`
}

// BenchmarkData is the per-sector benchmark vector returned by the lookup.
type BenchmarkData struct {
	Sector      string                    `json:"sector" yaml:"sector" badgerhold:"key"`
	SampleSize  int                       `json:"sample_size" yaml:"sample_size"`
	Metrics     map[string]PercentileBand `json:"metrics" yaml:"metrics"`
	LastUpdated time.Time                 `json:"last_updated" yaml:"last_updated"`
	CachedAt    time.Time                 `json:"cached_at,omitempty" yaml:"-"`
}

// PercentileRank linearly interpolates a value's position inside the band,
// returning an integer in [0,100].
func (b PercentileBand) PercentileRank(value float64) int {
	var rank float64
	switch {
	case value <= b.P25:
		if b.P25 > 0 {
			rank = 25 * value / b.P25
		}
	case value <= b.P50:
		rank = 25 + 25*(value-b.P25)/span(b.P25, b.P50)
	case value <= b.P75:
		rank = 50 + 25*(value-b.P50)/span(b.P50, b.P75)
	case value <= b.P90:
		rank = 75 + 15*(value-b.P75)/span(b.P75, b.P90)
	default:
		rank = 100
	}
	if rank < 0 {
		rank = 0
	}
	if rank > 100 {
		rank = 100
	}
	return int(rank + 0.5)
}

func span(lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	return hi - lo
}
