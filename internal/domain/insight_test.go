package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleInsight(t *testing.T) {
	tables := DefaultTables()
	loc := Location{Lat: 52.52, Lon: 13.405, Label: "Berlin"}
	ts := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	score := scoreFor(t, reading(MetricPM25, 200), reading(MetricUVIndex, 9))
	risks := EvaluateRisk(score, HealthProfile{}, tables)

	t.Run("assembles all sections", func(t *testing.T) {
		alert := Alert{ID: "a-1", Category: CategoryAirQuality, Severity: RiskHigh, FiredAt: ts}
		insight, err := AssembleInsight(loc, ts, score, risks, []Alert{alert}, nil, tables)

		require.NoError(t, err)
		assert.Equal(t, loc, insight.Location)
		assert.Equal(t, ts, insight.Timestamp)
		assert.Equal(t, 250, insight.AQI.Value)
		assert.Equal(t, MetricPM25, insight.AQI.DominantPollutant)
		assert.Equal(t, "Very High", insight.UV.Band)
		assert.Equal(t, []Alert{alert}, insight.Alerts)
		assert.Equal(t, tables.Version, insight.TablesVersion)

		require.Len(t, insight.Advice, len(risks))
		for i, risk := range risks {
			assert.Equal(t, risk.Category, insight.Advice[i].Category)
			assert.NotEmpty(t, insight.Advice[i].Text)
		}
	})

	t.Run("nil alerts becomes empty slice", func(t *testing.T) {
		insight, err := AssembleInsight(loc, ts, score, risks, nil, nil, tables)
		require.NoError(t, err)
		assert.NotNil(t, insight.Alerts)
		assert.Empty(t, insight.Alerts)
	})

	t.Run("missing advice template is a configuration error", func(t *testing.T) {
		broken := DefaultTables()
		broken.Advice = map[Category]map[string]string{
			CategoryAirQuality: {"LOW": "ok"},
		}

		_, err := AssembleInsight(loc, ts, score, risks, nil, nil, broken)

		var missing *MissingAdviceTemplateError
		require.ErrorAs(t, err, &missing)
		assert.NotEmpty(t, missing.Category)
	})

	t.Run("advice lookup is deterministic", func(t *testing.T) {
		first, err := AssembleInsight(loc, ts, score, risks, nil, nil, tables)
		require.NoError(t, err)
		second, err := AssembleInsight(loc, ts, score, risks, nil, nil, tables)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("insight mismatch (-first +second):\n%s", diff)
		}

		// Feeding the same category+level keys through the tables again
		// yields identical text.
		for _, entry := range first.Advice {
			risk := riskFor(risks, entry.Category)
			text, ok := tables.AdviceFor(entry.Category, risk.Level)
			require.True(t, ok)
			assert.Equal(t, entry.Text, text)
		}
	})
}
