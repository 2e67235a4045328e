/*
Package factory provides JSON to Go points configuration conversion.

PURPOSE:
  Converts JSON configuration documents into points.PointsConfig. This
  enables policy changes without code changes - HR can tune the monthly
  allowance, company values, and the reward catalog in JSON, and the
  factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify the points policy
  - Easy integration with an admin UI
  - Version control for policy documents
  - Database storage of the active config

JSON SCHEMA:
  {
    "monthly_allowance": 100,
    "values": [
      {"id": "teamwork", "label": "Teamwork"},
      {"id": "craft", "label": "Craftsmanship"}
    ],
    "catalog": [
      {"id": "coffee-card", "title": "Coffee Card", "cost": 250},
      {"id": "day-off", "title": "Extra Day Off", "cost": 2000}
    ]
  }

KEY FEATURES:
  - Validates structure and amounts
  - Sets sensible defaults (allowance defaults to 100)
  - Rejects duplicate value and reward IDs
  - Round-trips back to JSON for admin endpoints
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of the points policy.
type ConfigJSON struct {
	MonthlyAllowance float64      `json:"monthly_allowance"`
	Values           []ValueJSON  `json:"values,omitempty"`
	Catalog          []RewardJSON `json:"catalog,omitempty"`
}

// ValueJSON represents a company value recognitions can be tagged with.
type ValueJSON struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RewardJSON represents one catalog entry.
type RewardJSON struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Cost  float64 `json:"cost"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// DefaultMonthlyAllowance is used when the JSON omits monthly_allowance.
const DefaultMonthlyAllowance = 100

// ConfigFactory converts JSON policy documents to points.PointsConfig.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseConfig parses a JSON string into a PointsConfig.
func (f *ConfigFactory) ParseConfig(jsonStr string) (points.PointsConfig, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return points.PointsConfig{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to points.PointsConfig, applying defaults
// and validating the document.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (points.PointsConfig, error) {
	if cj.MonthlyAllowance == 0 {
		cj.MonthlyAllowance = DefaultMonthlyAllowance
	}
	if cj.MonthlyAllowance < 0 {
		return points.PointsConfig{}, fmt.Errorf("monthly_allowance must not be negative, got %v", cj.MonthlyAllowance)
	}

	cfg := points.PointsConfig{
		MonthlyAllowanceBase: ledger.PFromFloat(cj.MonthlyAllowance),
	}

	seenValues := map[string]bool{}
	for _, vj := range cj.Values {
		if vj.ID == "" {
			return points.PointsConfig{}, fmt.Errorf("value entries require an id")
		}
		if seenValues[vj.ID] {
			return points.PointsConfig{}, fmt.Errorf("duplicate value id: %s", vj.ID)
		}
		seenValues[vj.ID] = true
		cfg.Values = append(cfg.Values, points.CompanyValue{ID: vj.ID, Label: vj.Label})
	}

	seenRewards := map[string]bool{}
	for _, rj := range cj.Catalog {
		if rj.ID == "" {
			return points.PointsConfig{}, fmt.Errorf("catalog entries require an id")
		}
		if seenRewards[rj.ID] {
			return points.PointsConfig{}, fmt.Errorf("duplicate reward id: %s", rj.ID)
		}
		if rj.Cost <= 0 {
			return points.PointsConfig{}, fmt.Errorf("reward %s: cost must be positive, got %v", rj.ID, rj.Cost)
		}
		seenRewards[rj.ID] = true
		cfg.Catalog = append(cfg.Catalog, points.Reward{
			ID:    rj.ID,
			Title: rj.Title,
			Cost:  ledger.PFromFloat(rj.Cost),
		})
	}

	return cfg, nil
}

// ToJSON converts a PointsConfig back to its JSON representation.
func (f *ConfigFactory) ToJSON(cfg points.PointsConfig) ConfigJSON {
	cj := ConfigJSON{
		MonthlyAllowance: cfg.MonthlyAllowanceBase.Float64(),
	}
	for _, v := range cfg.Values {
		cj.Values = append(cj.Values, ValueJSON{ID: v.ID, Label: v.Label})
	}
	for _, r := range cfg.Catalog {
		cj.Catalog = append(cj.Catalog, RewardJSON{ID: r.ID, Title: r.Title, Cost: r.Cost.Float64()})
	}
	return cj
}

// =============================================================================
// PRESET CONFIGS
// =============================================================================

// StandardConfigJSON returns a ready-to-use policy document with the
// default allowance, a small set of company values, and a starter
// reward catalog. Useful for demos and tests.
func StandardConfigJSON() string {
	return `{
		"monthly_allowance": 100,
		"values": [
			{"id": "teamwork", "label": "Teamwork"},
			{"id": "craft", "label": "Craftsmanship"},
			{"id": "customer-first", "label": "Customer First"}
		],
		"catalog": [
			{"id": "coffee-card", "title": "Coffee Card", "cost": 250},
			{"id": "team-lunch", "title": "Team Lunch", "cost": 900},
			{"id": "day-off", "title": "Extra Day Off", "cost": 2000}
		]
	}`
}
