package domain

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Breakpoint is one segment of a piecewise-linear concentration→index mapping.
type Breakpoint struct {
	ConcLo float64 `yaml:"conc_lo"`
	ConcHi float64 `yaml:"conc_hi"`
	AQILo  int     `yaml:"aqi_lo"`
	AQIHi  int     `yaml:"aqi_hi"`
}

// ScaleBand names the range starting at Min. Bands are ordered by Min; a
// value belongs to the last band whose Min it reaches.
type ScaleBand struct {
	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
}

// RiskThresholds are the lower bounds for bucketing a weighted score into
// MODERATE, HIGH, and SEVERE. Anything below Moderate is LOW.
type RiskThresholds struct {
	Moderate float64 `yaml:"moderate"`
	High     float64 `yaml:"high"`
	Severe   float64 `yaml:"severe"`
}

// Bucket maps a weighted score to a risk level.
func (t RiskThresholds) Bucket(score float64) RiskLevel {
	switch {
	case score >= t.Severe:
		return RiskSevere
	case score >= t.High:
		return RiskHigh
	case score >= t.Moderate:
		return RiskModerate
	default:
		return RiskLow
	}
}

// WarningThresholds configure the supplemental weather advisories.
type WarningThresholds struct {
	HeatWaveC float64 `yaml:"heat_wave_c"`
	ColdWaveC float64 `yaml:"cold_wave_c"`
}

// Tables is the immutable reference data the scorer, risk evaluator, and
// aggregator depend on. Loaded once at startup and never mutated; treat all
// fields as read-only.
type Tables struct {
	Version       string                      `yaml:"version"`
	Breakpoints   map[MetricType][]Breakpoint `yaml:"breakpoints"`
	AQICategories []ScaleBand                 `yaml:"aqi_categories"`
	UVBands       []ScaleBand                 `yaml:"uv_bands"`
	AirRisk       RiskThresholds              `yaml:"air_risk"`
	UVRisk        RiskThresholds              `yaml:"uv_risk"`
	Boosts        map[Sensitivity]float64     `yaml:"boosts"`
	Advice        map[Category]map[string]string `yaml:"advice"`
	Warnings      WarningThresholds           `yaml:"warnings"`
}

// AdviceFor looks up the advice template for a category at a risk level.
func (t *Tables) AdviceFor(cat Category, level RiskLevel) (string, bool) {
	byLevel, ok := t.Advice[cat]
	if !ok {
		return "", false
	}
	text, ok := byLevel[level.String()]
	return text, ok
}

// AQICategory names the band an AQI value falls into.
func (t *Tables) AQICategory(aqi int) string {
	return bandFor(t.AQICategories, float64(aqi))
}

// UVBand names the band a UV index falls into.
func (t *Tables) UVBand(uv float64) string {
	return bandFor(t.UVBands, uv)
}

func bandFor(bands []ScaleBand, v float64) string {
	name := ""
	for _, b := range bands {
		if v >= b.Min {
			name = b.Name
		}
	}
	return name
}

// LoadTables reads a YAML reference-table file and validates it.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tables file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tables file %s: %w", path, err)
	}
	return &t, nil
}

// Validate checks structural integrity: breakpoint monotonicity, band
// ordering, and advice-matrix completeness. An invalid table set is a
// deployment defect and must abort startup.
func (t *Tables) Validate() error {
	if problems := t.Problems(); len(problems) > 0 {
		return fmt.Errorf("%s", problems[0])
	}
	return nil
}

// Problems returns every integrity violation found, for diagnostic tooling
// that wants the full list rather than the first failure.
func (t *Tables) Problems() []string {
	var problems []string
	problems = append(problems, t.breakpointProblems()...)
	problems = append(problems, bandProblems("aqi_categories", t.AQICategories)...)
	problems = append(problems, bandProblems("uv_bands", t.UVBands)...)
	problems = append(problems, t.adviceProblems()...)

	if t.AirRisk.Moderate >= t.AirRisk.High || t.AirRisk.High >= t.AirRisk.Severe {
		problems = append(problems, "air_risk thresholds must be strictly increasing")
	}
	if t.UVRisk.Moderate >= t.UVRisk.High || t.UVRisk.High >= t.UVRisk.Severe {
		problems = append(problems, "uv_risk thresholds must be strictly increasing")
	}
	for s, boost := range t.Boosts {
		if boost < 1 {
			problems = append(problems, fmt.Sprintf("boost for %s must be >= 1, got %g", s, boost))
		}
	}
	return problems
}

func (t *Tables) breakpointProblems() []string {
	var problems []string
	for _, metric := range PollutantMetrics {
		segments, ok := t.Breakpoints[metric]
		if !ok || len(segments) == 0 {
			problems = append(problems, fmt.Sprintf("no breakpoint table for %s", metric))
			continue
		}
		for i, seg := range segments {
			if seg.ConcLo >= seg.ConcHi || seg.AQILo >= seg.AQIHi {
				problems = append(problems, fmt.Sprintf("%s segment %d is not increasing", metric, i))
			}
			if i == 0 {
				continue
			}
			prev := segments[i-1]
			if seg.ConcLo <= prev.ConcHi || seg.AQILo <= prev.AQIHi {
				problems = append(problems, fmt.Sprintf("%s segment %d overlaps segment %d", metric, i, i-1))
			}
		}
	}
	return problems
}

func bandProblems(name string, bands []ScaleBand) []string {
	var problems []string
	if len(bands) == 0 {
		return []string{fmt.Sprintf("%s is empty", name)}
	}
	if bands[0].Min != 0 {
		problems = append(problems, fmt.Sprintf("%s must start at 0", name))
	}
	if !sort.SliceIsSorted(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min }) {
		problems = append(problems, fmt.Sprintf("%s bands must be sorted by min", name))
	}
	return problems
}

func (t *Tables) adviceProblems() []string {
	var problems []string
	for _, cat := range []Category{CategoryAirQuality, CategoryUV, CategoryOverall} {
		for _, level := range []RiskLevel{RiskLow, RiskModerate, RiskHigh, RiskSevere} {
			if _, ok := t.AdviceFor(cat, level); !ok {
				problems = append(problems, fmt.Sprintf("missing advice for %s/%s", cat, level))
			}
		}
	}
	return problems
}

// DefaultTables returns the compiled-in reference data: EPA AQI breakpoints
// (PM in µg/m³, O3/NO2/SO2 in ppb, CO in ppm), EPA category bands, and WHO
// UV index bands.
func DefaultTables() *Tables {
	return &Tables{
		Version: "2026-08",
		Breakpoints: map[MetricType][]Breakpoint{
			MetricPM25: {
				{0, 12.0, 0, 50}, {12.1, 35.4, 51, 100}, {35.5, 55.4, 101, 150},
				{55.5, 150.4, 151, 200}, {150.5, 250.4, 201, 300}, {250.5, 500.4, 301, 500},
			},
			MetricPM10: {
				{0, 54, 0, 50}, {55, 154, 51, 100}, {155, 254, 101, 150},
				{255, 354, 151, 200}, {355, 424, 201, 300}, {425, 604, 301, 500},
			},
			MetricO3: {
				{0, 54, 0, 50}, {55, 70, 51, 100}, {71, 85, 101, 150},
				{86, 105, 151, 200}, {106, 200, 201, 300}, {201, 404, 301, 500},
			},
			MetricNO2: {
				{0, 53, 0, 50}, {54, 100, 51, 100}, {101, 360, 101, 150},
				{361, 649, 151, 200}, {650, 1249, 201, 300}, {1250, 2049, 301, 500},
			},
			MetricSO2: {
				{0, 35, 0, 50}, {36, 75, 51, 100}, {76, 185, 101, 150},
				{186, 304, 151, 200}, {305, 604, 201, 300}, {605, 1004, 301, 500},
			},
			MetricCO: {
				{0, 4.4, 0, 50}, {4.5, 9.4, 51, 100}, {9.5, 12.4, 101, 150},
				{12.5, 15.4, 151, 200}, {15.5, 30.4, 201, 300}, {30.5, 50.4, 301, 500},
			},
		},
		AQICategories: []ScaleBand{
			{Name: "Good", Min: 0},
			{Name: "Moderate", Min: 51},
			{Name: "Unhealthy for Sensitive Groups", Min: 101},
			{Name: "Unhealthy", Min: 151},
			{Name: "Very Unhealthy", Min: 201},
			{Name: "Hazardous", Min: 301},
		},
		UVBands: []ScaleBand{
			{Name: "Low", Min: 0},
			{Name: "Moderate", Min: 3},
			{Name: "High", Min: 6},
			{Name: "Very High", Min: 8},
			{Name: "Extreme", Min: 11},
		},
		AirRisk: RiskThresholds{Moderate: 51, High: 151, Severe: 301},
		UVRisk:  RiskThresholds{Moderate: 3, High: 6, Severe: 11},
		Boosts: map[Sensitivity]float64{
			SensitivityRespiratory:    1.5,
			SensitivityCardiovascular: 1.25,
			SensitivityPhotosensitive: 1.5,
		},
		Advice: map[Category]map[string]string{
			CategoryAirQuality: {
				"LOW":      "Air quality is good. Enjoy your usual outdoor activities.",
				"MODERATE": "Air quality is acceptable. Unusually sensitive people should consider shorter outdoor efforts.",
				"HIGH":     "Reduce prolonged or heavy outdoor exertion. Keep windows closed during peak hours.",
				"SEVERE":   "Avoid outdoor activity. Use an air purifier indoors and wear a well-fitting mask if you must go out.",
			},
			CategoryUV: {
				"LOW":      "UV exposure is low. No special protection needed for most people.",
				"MODERATE": "Wear sunglasses and use SPF 30+ sunscreen if you will be outside for a while.",
				"HIGH":     "Seek shade during midday hours. Sunscreen, a hat, and protective clothing are recommended.",
				"SEVERE":   "Avoid midday sun. Full protection is essential: sunscreen, hat, sunglasses, and long sleeves.",
			},
			CategoryOverall: {
				"LOW":      "Environmental conditions are favorable today.",
				"MODERATE": "Conditions are mostly fine; sensitive individuals should check the category details.",
				"HIGH":     "Conditions warrant caution. Plan outdoor activities for early morning or evening.",
				"SEVERE":   "Hazardous environmental conditions. Stay indoors where possible and follow the category advice.",
			},
		},
		Warnings: WarningThresholds{HeatWaveC: 35, ColdWaveC: 0},
	}
}
