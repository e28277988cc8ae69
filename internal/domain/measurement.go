package domain

import "time"

// MetricType identifies an environmental metric.
type MetricType string

const (
	MetricPM25    MetricType = "pm2_5"
	MetricPM10    MetricType = "pm10"
	MetricO3      MetricType = "o3"
	MetricNO2     MetricType = "no2"
	MetricSO2     MetricType = "so2"
	MetricCO      MetricType = "co"
	MetricUVIndex MetricType = "uv_index"
	MetricSunrise MetricType = "sunrise"
	MetricSunset  MetricType = "sunset"

	// Supplemental weather metrics used for advisories and derived values.
	MetricTemperature    MetricType = "temperature"
	MetricHumidity       MetricType = "humidity"
	MetricDewpoint       MetricType = "dewpoint"
	MetricPrecipitation  MetricType = "precipitation"
	MetricSolarRadiation MetricType = "solar_radiation"
)

// PollutantMetrics lists the air-quality pollutants in canonical order.
var PollutantMetrics = []MetricType{
	MetricPM25, MetricPM10, MetricO3, MetricNO2, MetricSO2, MetricCO,
}

// IsPollutant reports whether m belongs to the air-quality family.
func (m MetricType) IsPollutant() bool {
	for _, p := range PollutantMetrics {
		if m == p {
			return true
		}
	}
	return false
}

// Location is a WGS-84 coordinate pair with an optional human-readable label.
type Location struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label,omitempty"`
}

// RawMeasurement is a single reading as delivered by an external data source.
// The engine never mutates these.
type RawMeasurement struct {
	Source    string     `json:"source"`
	Metric    MetricType `json:"metric"`
	Value     float64    `json:"value"`
	Unit      string     `json:"unit"`
	Timestamp time.Time  `json:"timestamp"`
	Location  Location   `json:"location"`
}

// CanonicalReading is a measurement normalized to its canonical unit.
// One reading per metric survives normalization.
type CanonicalReading struct {
	Metric     MetricType `json:"metric"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	Timestamp  time.Time  `json:"timestamp"`
	ValidUntil time.Time  `json:"valid_until"`
}
