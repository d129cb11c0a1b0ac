package llm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/aestimo/internal/models"
)

// Typed decoders for the four analysis prompt responses. Each decoder
// validates against its template's output shape but degrades per field
// group: a malformed block is dropped with a warning instead of failing
// the whole response.

type companyProfileWire struct {
	Name        string   `json:"name"`
	OneLiner    string   `json:"one_liner"`
	Sector      string   `json:"sector"`
	Stage       string   `json:"stage"`
	FoundedYear *float64 `json:"founded_year"`
	Location    string   `json:"location"`
	Website     string   `json:"website"`
	Description string   `json:"description"`
	SocialLinks []string `json:"social_links"`
}

func decodeCompanyProfile(response string) (models.CompanyProfile, []string, error) {
	var warnings []string
	var wire companyProfileWire

	repaired, err := unmarshalLenient(cleanResponseText(response), &wire)
	if err != nil {
		return models.CompanyProfile{}, nil, fmt.Errorf("company profile decode failed: %w", err)
	}
	if repaired {
		warnings = append(warnings, "company profile response required JSON repair")
	}

	profile := models.CompanyProfile{
		Name:        wire.Name,
		OneLiner:    wire.OneLiner,
		Sector:      wire.Sector,
		Stage:       models.ParseFundingStage(wire.Stage),
		Location:    wire.Location,
		Website:     wire.Website,
		Description: wire.Description,
		SocialLinks: wire.SocialLinks,
	}
	if wire.FoundedYear != nil {
		profile.FoundedYear = int(*wire.FoundedYear)
	}
	if wire.Stage != "" && profile.Stage == "" {
		warnings = append(warnings, fmt.Sprintf("company profile reported unrecognized funding stage %q", wire.Stage))
	}

	return profile, warnings, nil
}

// metricsEnvelope splits the investment metrics response into its four
// groups so one malformed block cannot take down the others.
type metricsEnvelope struct {
	Revenue  json.RawMessage `json:"revenue"`
	Traction json.RawMessage `json:"traction"`
	Team     json.RawMessage `json:"team"`
	Funding  json.RawMessage `json:"funding"`
}

type fundingWire struct {
	TotalRaised   *float64 `json:"total_raised"`
	LastRoundSize *float64 `json:"last_round_size"`
	LastRoundDate string   `json:"last_round_date"`
	CurrentAsk    *float64 `json:"current_ask"`
	Valuation     *float64 `json:"valuation"`
	Stage         string   `json:"stage"`
}

func decodeInvestmentMetrics(response string) (models.InvestmentMetrics, []string, error) {
	var warnings []string
	var envelope metricsEnvelope

	repaired, err := unmarshalLenient(cleanResponseText(response), &envelope)
	if err != nil {
		return models.InvestmentMetrics{}, nil, fmt.Errorf("investment metrics decode failed: %w", err)
	}
	if repaired {
		warnings = append(warnings, "investment metrics response required JSON repair")
	}

	var metrics models.InvestmentMetrics
	decodeMetricGroup(envelope.Revenue, &metrics.Revenue, "revenue", &warnings)
	decodeMetricGroup(envelope.Traction, &metrics.Traction, "traction", &warnings)
	decodeMetricGroup(envelope.Team, &metrics.Team, "team", &warnings)

	var funding fundingWire
	if decodeMetricGroup(envelope.Funding, &funding, "funding", &warnings) {
		metrics.Funding = models.FundingMetrics{
			TotalRaised:   funding.TotalRaised,
			LastRoundSize: funding.LastRoundSize,
			CurrentAsk:    funding.CurrentAsk,
			Valuation:     funding.Valuation,
			Stage:         models.ParseFundingStage(funding.Stage),
		}
		if funding.LastRoundDate != "" {
			if date, ok := parseLooseDate(funding.LastRoundDate); ok {
				metrics.Funding.LastRoundDate = &date
			} else {
				warnings = append(warnings, fmt.Sprintf("investment metrics reported unparseable last round date %q", funding.LastRoundDate))
			}
		}
	}

	return metrics, warnings, nil
}

// decodeMetricGroup unmarshals one envelope block, recording a warning and
// leaving the target zeroed when the block does not match the expected
// shape. Reports whether the block decoded.
func decodeMetricGroup(raw json.RawMessage, target interface{}, group string, warnings *[]string) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("investment metrics %s block did not match the expected shape and was dropped", group))
		return false
	}
	return true
}

func decodeMarketClaims(response string) (models.MarketClaims, []string, error) {
	var warnings []string
	var claims models.MarketClaims

	repaired, err := unmarshalLenient(cleanResponseText(response), &claims)
	if err != nil {
		return models.MarketClaims{}, nil, fmt.Errorf("market claims decode failed: %w", err)
	}
	if repaired {
		warnings = append(warnings, "market claims response required JSON repair")
	}

	return claims, warnings, nil
}

func decodeTeamAssessment(response string) (models.TeamAssessment, []string, error) {
	var warnings []string
	var assessment models.TeamAssessment

	repaired, err := unmarshalLenient(cleanResponseText(response), &assessment)
	if err != nil {
		return models.TeamAssessment{}, nil, fmt.Errorf("team assessment decode failed: %w", err)
	}
	if repaired {
		warnings = append(warnings, "team assessment response required JSON repair")
	}

	return assessment, warnings, nil
}

// dateLayouts are tried in order when parsing model-reported dates.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01", "January 2006", "2006"}

func parseLooseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
