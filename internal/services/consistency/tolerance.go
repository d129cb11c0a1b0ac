package consistency

import (
	"math"
	"strings"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
)

// metricClass selects the tolerance rule used to decide whether two
// observations of a metric agree.
type metricClass int

const (
	classFinancial metricClass = iota
	classPercentage
	classCount
	classDate
	classString
)

// metricClasses maps the canonical metric names onto tolerance rules.
// Names outside the table fall back by value shape in classify.
var metricClasses = map[string]metricClass{
	"arr":             classFinancial,
	"mrr":             classFinancial,
	"total_raised":    classFinancial,
	"last_round_size": classFinancial,
	"current_ask":     classFinancial,
	"valuation":       classFinancial,
	"burn_rate":       classFinancial,
	"tam":             classFinancial,
	"sam":             classFinancial,
	"som":             classFinancial,
	"ltv_cac_ratio":   classFinancial,

	"growth_rate":          classPercentage,
	"customer_growth_rate": classPercentage,
	"market_growth_rate":   classPercentage,
	"churn_rate":           classPercentage,
	"gross_margin":         classPercentage,
	"conversion_rate":      classPercentage,
	"nps":                  classPercentage,

	"customers":      classCount,
	"team_size":      classCount,
	"founders_count": classCount,
	"active_users":   classCount,
	"runway_months":  classCount,

	"founded_year":    classDate,
	"last_round_date": classDate,

	"company_name": classString,
	"sector":       classString,
	"stage":        classString,
}

// classify resolves the tolerance rule for a metric. Unknown names are
// classified by their first observed value: strings compare as strings,
// times as dates, and unnamed numerics use the count rule.
func classify(name string, values []models.MetricValue) metricClass {
	if class, ok := metricClasses[name]; ok {
		return class
	}
	if len(values) > 0 {
		switch values[0].Value.(type) {
		case string:
			return classString
		case time.Time:
			return classDate
		}
	}
	return classCount
}

// tolerances holds the configured comparison thresholds.
type tolerances struct {
	financial  float64
	percentage float64
	count      float64
	dateDays   int
}

func newTolerances(cfg *common.Config) tolerances {
	return tolerances{
		financial:  cfg.Consistency.ToleranceFinancial,
		percentage: cfg.Consistency.TolerancePercentage,
		count:      cfg.Consistency.ToleranceCount,
		dateDays:   cfg.Consistency.ToleranceDateDays,
	}
}

// equivalent reports whether two observations agree under the metric's
// tolerance rule. Values of different shapes never agree.
func (t tolerances) equivalent(class metricClass, a, b interface{}) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && strings.EqualFold(strings.TrimSpace(as), strings.TrimSpace(bs))
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return false
		}
		delta := at.Sub(bt)
		if delta < 0 {
			delta = -delta
		}
		return delta <= time.Duration(t.dateDays)*24*time.Hour
	}

	av, ok := asFloat(a)
	if !ok {
		return false
	}
	bv, ok := asFloat(b)
	if !ok {
		return false
	}

	switch class {
	case classPercentage:
		return math.Abs(av-bv) <= t.percentage
	case classCount:
		return relativeWithin(av, bv, t.count)
	case classDate:
		return math.Abs(av-bv) <= float64(t.dateDays)/365
	case classString:
		return av == bv
	default:
		return relativeWithin(av, bv, t.financial)
	}
}

// relativeWithin compares against the larger magnitude so the check is
// symmetric in its arguments.
func relativeWithin(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return true
	}
	return math.Abs(a-b) <= tolerance*denom
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// groupvalues partitions observations into equivalence groups. A value
// joins the first group whose representative it agrees with, so grouping
// is deterministic in document order.
func (t tolerances) groupValues(class metricClass, values []models.MetricValue) []models.ValueGroup {
	var groups []models.ValueGroup
	for _, value := range values {
		placed := false
		for i := range groups {
			if t.equivalent(class, groups[i].Representative, value.Value) {
				groups[i].Values = append(groups[i].Values, value)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, models.ValueGroup{
				Representative: value.Value,
				Values:         []models.MetricValue{value},
			})
		}
	}

	for i := range groups {
		groups[i].MeanConfidence = meanConfidence(groups[i].Values)
	}
	return groups
}

func meanConfidence(values []models.MetricValue) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value.Confidence
	}
	return sum / float64(len(values))
}
