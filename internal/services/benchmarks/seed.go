package benchmarks

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// defaultSector backs every sector the seed does not cover.
const defaultSector = "default"

type seedFile struct {
	Sectors map[string]seedSector `yaml:"sectors"`
}

type seedSector struct {
	SampleSize  int                              `yaml:"sample_size"`
	LastUpdated time.Time                        `yaml:"last_updated"`
	Metrics     map[string]models.PercentileBand `yaml:"metrics"`
}

// sectorAliases folds the sector spellings the analyzer tends to produce
// onto the seeded keys.
var sectorAliases = map[string]string{
	"software":                "saas",
	"b2b_saas":                "saas",
	"enterprise_software":     "saas",
	"finance":                 "fintech",
	"financial_services":      "fintech",
	"payments":                "fintech",
	"health":                  "healthtech",
	"healthcare":              "healthtech",
	"health_tech":             "healthtech",
	"digital_health":          "healthtech",
	"marketplaces":            "marketplace",
	"ai":                      "ai_ml",
	"ml":                      "ai_ml",
	"machine_learning":        "ai_ml",
	"artificial_intelligence": "ai_ml",
}

// normalizeSector folds a free-form sector label to a seed key shape.
func normalizeSector(sector string) string {
	key := strings.ToLower(strings.TrimSpace(sector))
	for _, sep := range []string{" ", "-", "/"} {
		key = strings.ReplaceAll(key, sep, "_")
	}
	if alias, ok := sectorAliases[key]; ok {
		return alias
	}
	return key
}

// loadSeed parses seed YAML into per-sector benchmark data.
func loadSeed(data []byte) (map[string]*models.BenchmarkData, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse benchmark seed: %w", err)
	}
	if len(file.Sectors) == 0 {
		return nil, fmt.Errorf("benchmark seed defines no sectors")
	}

	seed := make(map[string]*models.BenchmarkData, len(file.Sectors))
	for sector, entry := range file.Sectors {
		if len(entry.Metrics) == 0 {
			return nil, fmt.Errorf("benchmark seed sector %q has no metrics", sector)
		}
		for metric, band := range entry.Metrics {
			if band.P25 > band.P50 || band.P50 > band.P75 || band.P75 > band.P90 {
				return nil, fmt.Errorf("benchmark seed %s/%s percentiles are not ascending", sector, metric)
			}
		}
		key := normalizeSector(sector)
		seed[key] = &models.BenchmarkData{
			Sector:      key,
			SampleSize:  entry.SampleSize,
			Metrics:     entry.Metrics,
			LastUpdated: entry.LastUpdated,
		}
	}
	return seed, nil
}

// loadSeedPath reads a seed override file from disk.
func loadSeedPath(path string) (map[string]*models.BenchmarkData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark seed %s: %w", path, err)
	}
	return loadSeed(data)
}

// seededSectors lists the available sector keys in sorted order.
func seededSectors(seed map[string]*models.BenchmarkData) []string {
	sectors := make([]string, 0, len(seed))
	for sector := range seed {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	return sectors
}
