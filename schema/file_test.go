package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlOverride = `
name: Household Ledger
version: "1.0"
dimensions:
  - key: month
    displayName: Month
    sampleValues: [Jan-2026, Feb-2026]
    groupable: true
    filterable: true
    isTemporal: true
    temporalFormat: MMM-yyyy
  - key: category
    displayName: Category
    sampleValues: [Income, Expense]
    groupable: true
    filterable: true
measures:
  - key: amount
    displayName: Amount
    unit: currency
    isCurrency: true
    defaultAggregation: sum
`

func TestUnmarshalYAML(t *testing.T) {
	cfg, err := Unmarshal([]byte(yamlOverride), "yaml")
	require.NoError(t, err)

	assert.Equal(t, "Household Ledger", cfg.Name)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, []string{"month", "category"}, cfg.DimensionKeys())
	assert.Equal(t, []string{"amount", RecordCountKey}, cfg.MeasureKeys(), "record count is appended")
	assert.Equal(t, "month", cfg.TemporalDimension())

	amount, _ := cfg.Measure("amount")
	assert.True(t, amount.IsCurrency)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"name":"x","dimensions":[],"measures":[]}`), "json")
	assert.ErrorContains(t, err, "no dimensions or measures")

	_, err = Unmarshal([]byte(`{"name":"x","colour":"red","measures":[{"key":"a"}]}`), "json")
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Unmarshal([]byte("name: [unclosed"), "yaml")
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	original, err := DiscoverFromCSV(financeCSV)
	require.NoError(t, err)

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			data, err := Marshal(original, format)
			require.NoError(t, err)

			back, err := Unmarshal(data, format)
			require.NoError(t, err)
			assert.Equal(t, original.DimensionKeys(), back.DimensionKeys())
			assert.Equal(t, original.MeasureKeys(), back.MeasureKeys())
			assert.Equal(t, original.Version, back.Version)
			require.NotNil(t, back.Currency)
			assert.Equal(t, original.Currency.BaseCurrency, back.Currency.BaseCurrency)
		})
	}

	data, err := Marshal(original, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Auto-discovered Dataset")
	assert.Contains(t, string(data), "- key: month")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "ledger.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlOverride), 0o644))
	cfg, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Household Ledger", cfg.Name)

	jsonData, err := Marshal(cfg, "json")
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(jsonPath, jsonData, 0o644))
	again, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.MeasureKeys(), again.MeasureKeys())

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read schema")
}
