package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreFor(t *testing.T, readings ...CanonicalReading) CompositeScore {
	t.Helper()
	return Score(readings, DefaultTables())
}

func riskFor(risks []RiskAssessment, cat Category) RiskAssessment {
	for _, r := range risks {
		if r.Category == cat {
			return r
		}
	}
	return RiskAssessment{}
}

func TestEvaluateRisk_AirQuality(t *testing.T) {
	tables := DefaultTables()

	t.Run("respiratory sensitivity boosts into severe", func(t *testing.T) {
		score := scoreFor(t, reading(MetricPM25, 200), reading(MetricUVIndex, 1)) // AQI 250
		profile := HealthProfile{
			UserID:        "u-1",
			Sensitivities: []Sensitivity{SensitivityRespiratory},
		}

		risks := EvaluateRisk(score, profile, tables)
		air := riskFor(risks, CategoryAirQuality)

		assert.Equal(t, RiskSevere, air.Level) // 250 × 1.5 = 375
		assert.InDelta(t, 375, air.Score, 0.001)

		names := factorNames(air.Factors)
		assert.Contains(t, names, "respiratory_sensitivity")
		assert.Contains(t, names, "pm2_5")
	})

	t.Run("no sensitivity stays high", func(t *testing.T) {
		score := scoreFor(t, reading(MetricPM25, 200), reading(MetricUVIndex, 1))
		risks := EvaluateRisk(score, HealthProfile{UserID: "u-2"}, tables)

		assert.Equal(t, RiskHigh, riskFor(risks, CategoryAirQuality).Level)
	})

	t.Run("all pollutants unknown is low with insufficient data factor", func(t *testing.T) {
		score := scoreFor(t, reading(MetricUVIndex, 2))
		risks := EvaluateRisk(score, HealthProfile{UserID: "u-3"}, tables)
		air := riskFor(risks, CategoryAirQuality)

		assert.Equal(t, RiskLow, air.Level)
		require.Len(t, air.Factors, 1)
		assert.Equal(t, FactorInsufficientData, air.Factors[0].Name)
	})

	t.Run("pollutant factors ordered by contribution", func(t *testing.T) {
		score := scoreFor(t,
			reading(MetricPM25, 200), // 250
			reading(MetricO3, 60),    // 67
			reading(MetricUVIndex, 1),
		)
		risks := EvaluateRisk(score, HealthProfile{}, tables)
		air := riskFor(risks, CategoryAirQuality)

		require.GreaterOrEqual(t, len(air.Factors), 2)
		assert.Equal(t, "pm2_5", air.Factors[0].Name)
		assert.Greater(t, air.Factors[0].Weight, air.Factors[1].Weight)
	})
}

func TestEvaluateRisk_UV(t *testing.T) {
	tables := DefaultTables()

	t.Run("uv nine is high", func(t *testing.T) {
		score := scoreFor(t, reading(MetricUVIndex, 9))
		risks := EvaluateRisk(score, HealthProfile{}, tables)

		assert.Equal(t, RiskHigh, riskFor(risks, CategoryUV).Level)
	})

	t.Run("photosensitive boost escalates to severe", func(t *testing.T) {
		score := scoreFor(t, reading(MetricUVIndex, 9))
		profile := HealthProfile{Sensitivities: []Sensitivity{SensitivityPhotosensitive}}
		risks := EvaluateRisk(score, profile, tables)
		uv := riskFor(risks, CategoryUV)

		assert.Equal(t, RiskSevere, uv.Level) // 9 × 1.5 = 13.5
		assert.Contains(t, factorNames(uv.Factors), "photosensitive_sensitivity")
	})

	t.Run("missing uv is low with insufficient data", func(t *testing.T) {
		score := scoreFor(t, reading(MetricPM25, 10))
		risks := EvaluateRisk(score, HealthProfile{}, tables)
		uv := riskFor(risks, CategoryUV)

		assert.Equal(t, RiskLow, uv.Level)
		assert.Equal(t, FactorInsufficientData, uv.Factors[0].Name)
	})
}

func TestEvaluateRisk_Overall(t *testing.T) {
	tables := DefaultTables()

	t.Run("overall is the highest category level", func(t *testing.T) {
		score := scoreFor(t, reading(MetricPM25, 10), reading(MetricUVIndex, 9))
		risks := EvaluateRisk(score, HealthProfile{}, tables)

		overall := riskFor(risks, CategoryOverall)
		assert.Equal(t, RiskHigh, overall.Level)
		assert.Equal(t, "uv", overall.Factors[0].Name)
	})

	t.Run("air quality wins the tie", func(t *testing.T) {
		// Both air (AQI 250 → HIGH) and UV (7 → HIGH) at the same level.
		score := scoreFor(t, reading(MetricPM25, 200), reading(MetricUVIndex, 7))
		risks := EvaluateRisk(score, HealthProfile{}, tables)

		overall := riskFor(risks, CategoryOverall)
		assert.Equal(t, RiskHigh, overall.Level)
		assert.Equal(t, "air_quality", overall.Factors[0].Name)
	})

	t.Run("scenario: severe for respiratory user", func(t *testing.T) {
		sunrise := time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC)
		sunset := time.Date(2026, 8, 29, 19, 30, 0, 0, time.UTC)
		score := scoreFor(t,
			reading(MetricPM25, 200),
			reading(MetricUVIndex, 9),
			reading(MetricSunrise, float64(sunrise.Unix())),
			reading(MetricSunset, float64(sunset.Unix())),
		)
		profile := HealthProfile{
			UserID:        "u-resp",
			Sensitivities: []Sensitivity{SensitivityRespiratory},
		}

		risks := EvaluateRisk(score, profile, tables)

		assert.Equal(t, RiskSevere, riskFor(risks, CategoryOverall).Level)
		assert.Equal(t, 250, score.AQI)
		assert.Equal(t, MetricPM25, score.Dominant)
		assert.Equal(t, "Very High", score.UV.Band)
		assert.Equal(t, 810, score.Sunlight.DaylightMinutes)
	})

	t.Run("step goal adds factor when air is high", func(t *testing.T) {
		score := scoreFor(t, reading(MetricPM25, 200), reading(MetricUVIndex, 1))
		profile := HealthProfile{Goals: Goals{StepTarget: 10000}}
		risks := EvaluateRisk(score, profile, tables)

		assert.Contains(t, factorNames(riskFor(risks, CategoryOverall).Factors), "step_goal_outdoor_exposure")
	})

	t.Run("sleep goal notes short daylight", func(t *testing.T) {
		sunrise := time.Date(2026, 12, 21, 8, 30, 0, 0, time.UTC)
		sunset := time.Date(2026, 12, 21, 16, 0, 0, 0, time.UTC) // 7h30m
		score := scoreFor(t,
			reading(MetricPM25, 5),
			reading(MetricUVIndex, 1),
			reading(MetricSunrise, float64(sunrise.Unix())),
			reading(MetricSunset, float64(sunset.Unix())),
		)
		profile := HealthProfile{Goals: Goals{SleepTargetHours: 8}}
		risks := EvaluateRisk(score, profile, tables)

		assert.Contains(t, factorNames(riskFor(risks, CategoryOverall).Factors), "sleep_goal_short_daylight")
	})

	t.Run("pure function", func(t *testing.T) {
		score := scoreFor(t, reading(MetricPM25, 80), reading(MetricUVIndex, 4))
		profile := HealthProfile{Sensitivities: []Sensitivity{SensitivityCardiovascular}}

		first := EvaluateRisk(score, profile, tables)
		second := EvaluateRisk(score, profile, tables)
		assert.Equal(t, first, second)
	})
}

func TestAdvisories(t *testing.T) {
	tables := DefaultTables()

	temp := func(v float64) CompositeScore {
		return CompositeScore{Weather: Weather{TemperatureC: &v}}
	}

	t.Run("heat wave", func(t *testing.T) {
		got := Advisories(temp(38), tables)
		require.Len(t, got, 1)
		assert.Equal(t, "heat_wave", got[0].Type)
	})

	t.Run("cold wave", func(t *testing.T) {
		got := Advisories(temp(-5), tables)
		require.Len(t, got, 1)
		assert.Equal(t, "cold_wave", got[0].Type)
	})

	t.Run("snowstorm needs precipitation", func(t *testing.T) {
		tempC, precip := -3.0, 2.5
		score := CompositeScore{Weather: Weather{TemperatureC: &tempC, PrecipitationMM: &precip}}
		got := Advisories(score, tables)

		types := make([]string, 0, len(got))
		for _, a := range got {
			types = append(types, a.Type)
		}
		assert.ElementsMatch(t, []string{"cold_wave", "snowstorm"}, types)
	})

	t.Run("no temperature no advisories", func(t *testing.T) {
		assert.Nil(t, Advisories(CompositeScore{}, tables))
	})
}

func factorNames(factors []Factor) []string {
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		names = append(names, f.Name)
	}
	return names
}
