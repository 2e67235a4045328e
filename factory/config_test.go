package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/ledger"
	"github.com/warp/points-engine/points"
)

func TestParseConfig_FullDocument(t *testing.T) {
	f := factory.NewConfigFactory()

	cfg, err := f.ParseConfig(`{
		"monthly_allowance": 150,
		"values": [
			{"id": "teamwork", "label": "Teamwork"},
			{"id": "craft", "label": "Craftsmanship"}
		],
		"catalog": [
			{"id": "coffee-card", "title": "Coffee Card", "cost": 249.99}
		]
	}`)
	require.NoError(t, err)

	assert.Equal(t, "150", cfg.MonthlyAllowanceBase.String())
	require.Len(t, cfg.Values, 2)
	assert.Equal(t, "Craftsmanship", cfg.Values[1].Label)
	require.Len(t, cfg.Catalog, 1)
	// Fractional costs are preserved, not truncated to whole points.
	assert.Equal(t, "249.99", cfg.Catalog[0].Cost.String())
}

func TestParseConfig_DefaultsAllowanceWhenOmitted(t *testing.T) {
	f := factory.NewConfigFactory()

	cfg, err := f.ParseConfig(`{}`)
	require.NoError(t, err)
	assert.Equal(t, "100", cfg.MonthlyAllowanceBase.String())
	assert.Empty(t, cfg.Values)
	assert.Empty(t, cfg.Catalog)
}

func TestParseConfig_Rejections(t *testing.T) {
	f := factory.NewConfigFactory()

	tests := []struct {
		name string
		json string
	}{
		{"negative allowance", `{"monthly_allowance": -10}`},
		{"value without id", `{"values": [{"label": "Teamwork"}]}`},
		{"duplicate value id", `{"values": [{"id": "a"}, {"id": "a"}]}`},
		{"reward without id", `{"catalog": [{"title": "Coffee", "cost": 10}]}`},
		{"duplicate reward id", `{"catalog": [{"id": "r", "cost": 10}, {"id": "r", "cost": 20}]}`},
		{"zero cost", `{"catalog": [{"id": "r", "title": "Free", "cost": 0}]}`},
		{"negative cost", `{"catalog": [{"id": "r", "title": "Bad", "cost": -5}]}`},
		{"malformed JSON", `{"monthly_allowance": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseConfig(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_Roundtrip(t *testing.T) {
	f := factory.NewConfigFactory()

	original := points.PointsConfig{
		MonthlyAllowanceBase: ledger.P(120),
		Values: []points.CompanyValue{
			{ID: "teamwork", Label: "Teamwork"},
		},
		Catalog: []points.Reward{
			{ID: "coffee-card", Title: "Coffee Card", Cost: ledger.P(250)},
		},
	}

	back, err := f.FromJSON(f.ToJSON(original))
	require.NoError(t, err)
	assert.True(t, back.MonthlyAllowanceBase.Equal(original.MonthlyAllowanceBase))
	assert.Equal(t, original.Values, back.Values)
	require.Len(t, back.Catalog, 1)
	assert.True(t, back.Catalog[0].Cost.Equal(original.Catalog[0].Cost))
}

func TestStandardConfigJSON_Parses(t *testing.T) {
	f := factory.NewConfigFactory()

	cfg, err := f.ParseConfig(factory.StandardConfigJSON())
	require.NoError(t, err)

	assert.Equal(t, "100", cfg.MonthlyAllowanceBase.String())
	assert.Len(t, cfg.Values, 3)
	require.Len(t, cfg.Catalog, 3)

	reward, ok := cfg.FindReward("day-off")
	require.True(t, ok)
	assert.Equal(t, "2000", reward.Cost.String())
}
