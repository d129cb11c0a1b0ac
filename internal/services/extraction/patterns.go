// -----------------------------------------------------------------------
// Pattern Catalog - deterministic regex extraction of investment metrics
// with money normalization and per-metric range validation
// -----------------------------------------------------------------------

package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/aestimo/internal/models"
)

// patternConfidence is the default confidence for regex-extracted entities.
const patternConfidence = 0.8

// moneyFragment matches a monetary amount: "$2.5M", "$250,000", "$2 billion",
// or a bare "5 million". Two alternatives, four capture groups; the number
// group and its magnitude suffix sit in adjacent positions.
const moneyFragment = `(?:\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*((?i:K|M|B|T|thousand|million|billion|trillion))?\b|([0-9][0-9,]*(?:\.[0-9]+)?)\s+((?i:thousand|million|billion|trillion))\b)`

// percentFragment matches a percentage value ahead of its % sign.
const percentFragment = `([0-9][0-9.]*)\s*%`

// metricPattern is one catalog entry: the canonical metric it produces and
// how to find, parse, and sanity-check it.
type metricPattern struct {
	name       string
	entityType models.EntityType
	unit       string
	matcher    *regexp.Regexp
	parse      func(match []string) (float64, bool)
	validate   func(value float64) bool
	confidence float64
}

// newCatalog compiles the metric catalog. Acronym keywords (ARR, MRR, NPS,
// TAM, SAM) stay case-sensitive so prose words and names cannot trigger
// them; spelled-out keywords match any case.
func newCatalog() []metricPattern {
	entries := []struct {
		name       string
		entityType models.EntityType
		unit       string
		pattern    string
		parse      func(match []string) (float64, bool)
	}{
		{
			name:       "arr",
			entityType: models.EntityFinancial,
			unit:       "USD",
			pattern: `(?:\bARR\b|(?i:annual\s+recurring\s+revenue))[^.\n$%0-9]{0,30}` + moneyFragment +
				`|` + moneyFragment + `\s+(?i:(?:in|of)\s+)?(?:ARR\b|(?i:annual\s+recurring\s+revenue))`,
			parse: parseMoneyMatch,
		},
		{
			name:       "mrr",
			entityType: models.EntityFinancial,
			unit:       "USD",
			pattern: `(?:\bMRR\b|(?i:monthly\s+recurring\s+revenue))[^.\n$%0-9]{0,30}` + moneyFragment +
				`|` + moneyFragment + `\s+(?i:(?:in|of)\s+)?(?:MRR\b|(?i:monthly\s+recurring\s+revenue))`,
			parse: parseMoneyMatch,
		},
		{
			name:       "growth_rate",
			entityType: models.EntityFinancial,
			unit:       "%",
			pattern: `(?i:growing(?:\s+at)?|grew(?:\s+by)?|growth(?:\s+rate)?)[^.\n%0-9]{0,30}` + percentFragment +
				`|` + percentFragment + `\s*(?i:(?:[\w-]+\s+){0,3}growth)\b`,
			parse: parseNumberMatch,
		},
		{
			name:       "customers",
			entityType: models.EntityMarket,
			unit:       "",
			pattern: `([0-9][0-9,]*)\+?\s+(?i:(?:paying|active|enterprise)\s+)?(?i:customers)\b` +
				`|(?i:customer\s+base\s+of\s+|customers[:\s]\s*)([0-9][0-9,]*)\b`,
			parse: parseNumberMatch,
		},
		{
			name:       "churn_rate",
			entityType: models.EntityMarket,
			unit:       "%",
			pattern: `(?i:churn(?:\s+rate)?)[^.\n%0-9]{0,30}` + percentFragment +
				`|` + percentFragment + `\s*(?i:(?:[\w-]+\s+){0,2}churn)\b`,
			parse: parseNumberMatch,
		},
		{
			name:       "nps",
			entityType: models.EntityMarket,
			unit:       "",
			pattern:    `(?:\bNPS\b|(?i:net\s+promoter\s+score))[^.\n0-9+-]{0,20}(-?[0-9]{1,3})\b`,
			parse:      parseNumberMatch,
		},
		{
			name:       "team_size",
			entityType: models.EntityTeam,
			unit:       "",
			pattern: `(?i:team\s+of\s+)([0-9]{1,4})\b` +
				`|([0-9]{1,4})\s+(?i:(?:full[- ]time\s+)?employees)\b` +
				`|(?i:team\s+size[:\s]\s*|headcount(?:\s+of)?[:\s]\s*)([0-9]{1,4})\b`,
			parse: parseNumberMatch,
		},
		{
			name:       "founders_count",
			entityType: models.EntityTeam,
			unit:       "",
			pattern:    `([0-9]{1,2}|(?i:two|three|four|five|six|seven|eight))\s+(?i:co[- ]?founders?|founders)\b`,
			parse:      parseCountMatch,
		},
		{
			name:       "total_raised",
			entityType: models.EntityFunding,
			unit:       "USD",
			pattern: `(?i:(?:total\s+)?raised|funding\s+to\s+date|total\s+funding)[^.\n$0-9]{0,30}` + moneyFragment +
				`|` + moneyFragment + `\s+(?i:raised|in\s+(?:total\s+)?funding)\b`,
			parse: parseMoneyMatch,
		},
		{
			name:       "valuation",
			entityType: models.EntityFunding,
			unit:       "USD",
			pattern: `(?i:valuation|valued\s+at|(?:post|pre)[- ]money)[^.\n$0-9]{0,30}` + moneyFragment +
				`|` + moneyFragment + `\s+(?i:(?:(?:post|pre)[- ]money\s+)?valuation)\b`,
			parse: parseMoneyMatch,
		},
		{
			name:       "tam",
			entityType: models.EntityMarket,
			unit:       "USD",
			pattern: `(?:\bTAM\b|(?i:total\s+addressable\s+market))[^.\n$0-9]{0,30}` + moneyFragment +
				`|` + moneyFragment + `\s+(?i:(?:in|of)\s+)?(?:TAM\b|(?i:total\s+addressable\s+market))`,
			parse: parseMoneyMatch,
		},
		{
			name:       "sam",
			entityType: models.EntityMarket,
			unit:       "USD",
			pattern: `(?:\bSAM\b|(?i:serviceable\s+addressable\s+market))[^.\n$0-9]{0,30}` + moneyFragment +
				`|` + moneyFragment + `\s+(?i:(?:in|of)\s+)?(?:SAM\b|(?i:serviceable\s+addressable\s+market))`,
			parse: parseMoneyMatch,
		},
		{
			name:       "founded_year",
			entityType: models.EntityCompany,
			unit:       "",
			pattern:    `(?i:founded(?:\s+in)?\s+|established(?:\s+in)?\s+|since\s+)((?:19|20)[0-9]{2})\b`,
			parse:      parseNumberMatch,
		},
	}

	catalog := make([]metricPattern, 0, len(entries))
	for _, entry := range entries {
		catalog = append(catalog, metricPattern{
			name:       entry.name,
			entityType: entry.entityType,
			unit:       entry.unit,
			matcher:    regexp.MustCompile(entry.pattern),
			parse:      entry.parse,
			validate:   validatorFor(entry.name),
			confidence: patternConfidence,
		})
	}
	return catalog
}

// metricValidators holds the per-metric range checks. The reconciler
// consults this table for every numeric entity, including AI-derived
// metrics the regex catalog never produces.
var metricValidators = map[string]func(float64) bool{
	"arr":                  nonNegative,
	"mrr":                  nonNegative,
	"growth_rate":          nonNegative,
	"customer_growth_rate": nonNegative,
	"market_growth_rate":   nonNegative,
	"customers":            wholeCount,
	"active_users":         nonNegative,
	"churn_rate":           percentRange,
	"gross_margin":         percentRange,
	"conversion_rate":      percentRange,
	"nps":                  npsRange,
	"team_size":            wholeCount,
	"founders_count":       wholeCount,
	"total_raised":         nonNegative,
	"last_round_size":      nonNegative,
	"current_ask":          nonNegative,
	"valuation":            nonNegative,
	"burn_rate":            nonNegative,
	"runway_months":        nonNegative,
	"ltv_cac_ratio":        nonNegative,
	"tam":                  nonNegative,
	"sam":                  nonNegative,
	"som":                  nonNegative,
	"founded_year":         yearRange,
}

// validateMetric applies the registered range check for a metric. Metrics
// without a registered validator pass.
func validateMetric(name string, value float64) bool {
	if validate, ok := metricValidators[name]; ok {
		return validate(value)
	}
	return true
}

func validatorFor(name string) func(float64) bool {
	if validate, ok := metricValidators[name]; ok {
		return validate
	}
	return func(float64) bool { return true }
}

func nonNegative(v float64) bool { return v >= 0 }

func percentRange(v float64) bool { return v >= 0 && v <= 100 }

func npsRange(v float64) bool { return v >= -100 && v <= 100 }

func yearRange(v float64) bool { return v >= 1900 && v <= 2100 }

func wholeCount(v float64) bool { return v >= 0 && v == math.Trunc(v) }

// parseMoney normalizes a monetary amount to integer dollars.
func parseMoney(number, suffix string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0, false
	}

	multiplier := 1.0
	switch strings.ToLower(suffix) {
	case "":
	case "k", "thousand":
		multiplier = 1e3
	case "m", "million":
		multiplier = 1e6
	case "b", "billion":
		multiplier = 1e9
	case "t", "trillion":
		multiplier = 1e12
	default:
		return 0, false
	}

	return math.Round(n * multiplier), true
}

// parseMoneyMatch finds the first populated number group and pairs it with
// the magnitude suffix in the adjacent group.
func parseMoneyMatch(match []string) (float64, bool) {
	for i := 1; i < len(match); i++ {
		if match[i] == "" || match[i][0] < '0' || match[i][0] > '9' {
			continue
		}
		suffix := ""
		if i+1 < len(match) {
			suffix = match[i+1]
		}
		return parseMoney(match[i], suffix)
	}
	return 0, false
}

// parseNumberMatch parses the first populated group as a plain number.
func parseNumberMatch(match []string) (float64, bool) {
	for i := 1; i < len(match); i++ {
		if match[i] == "" {
			continue
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(match[i], ",", ""), 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

var wordNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// parseCountMatch parses the first populated group as a digit count or a
// spelled-out small number.
func parseCountMatch(match []string) (float64, bool) {
	for i := 1; i < len(match); i++ {
		if match[i] == "" {
			continue
		}
		if n, err := strconv.ParseFloat(match[i], 64); err == nil {
			return n, true
		}
		if n, ok := wordNumbers[strings.ToLower(match[i])]; ok {
			return n, true
		}
	}
	return 0, false
}
