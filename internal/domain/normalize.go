package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultFreshnessWindow is how long a reading stays usable.
const DefaultFreshnessWindow = 3 * time.Hour

// Molecular weights (g/mol) for gas-phase unit conversion at 25°C, 1 atm.
const (
	molarVolume = 24.45
	mwO3        = 48.00
	mwNO2       = 46.01
	mwSO2       = 64.07
	mwCO        = 28.01
)

// NormalizerConfig controls normalization behavior.
type NormalizerConfig struct {
	// FreshnessWindow discards readings older than now minus this duration.
	// Zero means DefaultFreshnessWindow.
	FreshnessWindow time.Duration
}

func (c NormalizerConfig) freshness() time.Duration {
	if c.FreshnessWindow <= 0 {
		return DefaultFreshnessWindow
	}
	return c.FreshnessWindow
}

// Normalize converts a raw measurement set for one location into canonical
// readings: stale readings are discarded, duplicates collapse to the most
// recent per metric, units are converted to the canonical unit, and derived
// metrics (UV from solar radiation, humidity from dewpoint) are filled in.
//
// It fails with *IncompleteDataError when a required family — air quality or
// UV — has no fresh readings at all. Individual pollutants that are missing
// or carry an unconvertible unit are tolerated: they simply produce no
// canonical reading and score as unknown downstream.
//
// The result is sorted by metric type, so output is independent of input
// order.
func Normalize(measurements []RawMeasurement, now time.Time, cfg NormalizerConfig) ([]CanonicalReading, error) {
	window := cfg.freshness()

	fresh := make([]RawMeasurement, 0, len(measurements))
	for _, m := range measurements {
		if now.Sub(m.Timestamp) > window {
			continue
		}
		fresh = append(fresh, m)
	}

	if err := checkFamilies(fresh); err != nil {
		return nil, err
	}

	latest := make(map[MetricType]RawMeasurement, len(fresh))
	for _, m := range fresh {
		prev, ok := latest[m.Metric]
		if !ok || m.Timestamp.After(prev.Timestamp) {
			latest[m.Metric] = m
			continue
		}
		// Equal timestamps: break the tie on value so the result does not
		// depend on input order.
		if m.Timestamp.Equal(prev.Timestamp) && m.Value > prev.Value {
			latest[m.Metric] = m
		}
	}

	readings := make([]CanonicalReading, 0, len(latest))
	for metric, m := range latest {
		value, ok := toCanonical(metric, m.Value, m.Unit)
		if !ok {
			continue
		}
		readings = append(readings, CanonicalReading{
			Metric:     metric,
			Value:      value,
			Unit:       CanonicalUnit(metric),
			Timestamp:  m.Timestamp,
			ValidUntil: m.Timestamp.Add(window),
		})
	}

	readings = deriveReadings(readings)

	sort.Slice(readings, func(i, j int) bool { return readings[i].Metric < readings[j].Metric })
	return readings, nil
}

// checkFamilies verifies both required metric families are represented.
func checkFamilies(fresh []RawMeasurement) error {
	var hasAir, hasUV bool
	for _, m := range fresh {
		switch {
		case m.Metric.IsPollutant():
			hasAir = true
		case m.Metric == MetricUVIndex || m.Metric == MetricSolarRadiation:
			hasUV = true
		}
	}
	if !hasAir {
		return &IncompleteDataError{Family: "air_quality"}
	}
	if !hasUV {
		return &IncompleteDataError{Family: "uv"}
	}
	return nil
}

// deriveReadings fills in metrics that providers often report indirectly.
func deriveReadings(readings []CanonicalReading) []CanonicalReading {
	byMetric := make(map[MetricType]CanonicalReading, len(readings))
	for _, r := range readings {
		byMetric[r.Metric] = r
	}

	// UV index from downward solar radiation (W/m² / 25, capped at 15).
	if _, ok := byMetric[MetricUVIndex]; !ok {
		if solar, ok := byMetric[MetricSolarRadiation]; ok {
			uv := math.Min(math.Max(solar.Value/25.0, 0), 15)
			readings = append(readings, CanonicalReading{
				Metric:     MetricUVIndex,
				Value:      uv,
				Unit:       CanonicalUnit(MetricUVIndex),
				Timestamp:  solar.Timestamp,
				ValidUntil: solar.ValidUntil,
			})
		}
	}

	// Relative humidity from dewpoint via the Magnus approximation.
	if _, ok := byMetric[MetricHumidity]; !ok {
		temp, hasTemp := byMetric[MetricTemperature]
		dew, hasDew := byMetric[MetricDewpoint]
		if hasTemp && hasDew {
			rh := 100 * magnus(dew.Value) / magnus(temp.Value)
			readings = append(readings, CanonicalReading{
				Metric:     MetricHumidity,
				Value:      math.Min(math.Max(rh, 0), 100),
				Unit:       CanonicalUnit(MetricHumidity),
				Timestamp:  dew.Timestamp,
				ValidUntil: dew.ValidUntil,
			})
		}
	}

	return readings
}

func magnus(tempC float64) float64 {
	return math.Exp(17.625 * tempC / (243.04 + tempC))
}

// CanonicalUnit returns the unit every reading of a metric is normalized to.
func CanonicalUnit(metric MetricType) string {
	switch metric {
	case MetricPM25, MetricPM10:
		return "ug/m3"
	case MetricO3, MetricNO2, MetricSO2:
		return "ppb"
	case MetricCO:
		return "ppm"
	case MetricUVIndex:
		return "index"
	case MetricSunrise, MetricSunset:
		return "unix"
	case MetricTemperature, MetricDewpoint:
		return "c"
	case MetricHumidity:
		return "%"
	case MetricPrecipitation:
		return "mm"
	case MetricSolarRadiation:
		return "w/m2"
	default:
		return ""
	}
}

// toCanonical converts a value to the metric's canonical unit. The second
// return is false when the unit is not convertible for that metric.
func toCanonical(metric MetricType, value float64, unit string) (float64, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, "µ", "u")
	u = strings.ReplaceAll(u, "³", "3")
	u = strings.ReplaceAll(u, "²", "2")

	switch metric {
	case MetricPM25, MetricPM10:
		switch u {
		case "ug/m3", "":
			return value, true
		case "mg/m3":
			return value * 1000, true
		}
	case MetricO3, MetricNO2, MetricSO2:
		mw := map[MetricType]float64{MetricO3: mwO3, MetricNO2: mwNO2, MetricSO2: mwSO2}[metric]
		switch u {
		case "ppb", "":
			return value, true
		case "ppm":
			return value * 1000, true
		case "ug/m3":
			return value * molarVolume / mw, true
		case "mg/m3":
			return value * 1000 * molarVolume / mw, true
		}
	case MetricCO:
		switch u {
		case "ppm", "":
			return value, true
		case "ppb":
			return value / 1000, true
		case "mg/m3":
			return value * molarVolume / mwCO, true
		case "ug/m3":
			return value * molarVolume / mwCO / 1000, true
		}
	case MetricUVIndex:
		if u == "index" || u == "" {
			return value, true
		}
	case MetricSunrise, MetricSunset:
		switch u {
		case "unix", "unix_s", "":
			return value, true
		case "unix_ms":
			return value / 1000, true
		}
	case MetricTemperature, MetricDewpoint:
		switch u {
		case "c", "celsius", "":
			return value, true
		case "k", "kelvin":
			return value - 273.15, true
		case "f", "fahrenheit":
			return (value - 32) * 5 / 9, true
		}
	case MetricHumidity:
		if u == "%" || u == "percent" || u == "" {
			return value, true
		}
	case MetricPrecipitation:
		switch u {
		case "mm", "":
			return value, true
		case "m":
			return value * 1000, true
		}
	case MetricSolarRadiation:
		if u == "w/m2" || u == "" {
			return value, true
		}
	}
	return 0, false
}
