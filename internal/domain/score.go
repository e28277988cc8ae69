package domain

import (
	"math"
	"time"
)

// SubScore is the AQI contribution of a single pollutant.
type SubScore struct {
	Pollutant     MetricType `json:"pollutant"`
	AQI           int        `json:"aqi"`
	Concentration float64    `json:"concentration"`
	Unit          string     `json:"unit"`
	// Extrapolated marks concentrations beyond the top breakpoint segment,
	// clamped to the table maximum.
	Extrapolated bool `json:"extrapolated,omitempty"`
}

// UVScore is the measured UV index with its named band.
type UVScore struct {
	Value float64 `json:"value"`
	Band  string  `json:"band"`
}

// Sunlight describes the daylight window for the location.
type Sunlight struct {
	Sunrise         time.Time `json:"sunrise"`
	Sunset          time.Time `json:"sunset"`
	DaylightMinutes int       `json:"daylightMinutes"`
}

// Weather carries the supplemental readings used for advisories. Nil fields
// were not measured.
type Weather struct {
	TemperatureC    *float64 `json:"temperatureC,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	PrecipitationMM *float64 `json:"precipitationMm,omitempty"`
}

// CompositeScore is the scored view of one canonical reading set.
type CompositeScore struct {
	// AQI is the composite index: the maximum sub-score. Only meaningful
	// when AQIKnown is true; every present pollutant was unconvertible
	// otherwise.
	AQI       int        `json:"aqi"`
	AQIKnown  bool       `json:"aqiKnown"`
	Category  string     `json:"category,omitempty"`
	Dominant  MetricType `json:"dominantPollutant,omitempty"`
	SubScores []SubScore `json:"subScores"`
	UV        *UVScore   `json:"uv,omitempty"`
	Sunlight  *Sunlight  `json:"sunlight,omitempty"`
	Weather   Weather    `json:"weather,omitempty"`
}

// Score computes the composite score for a canonical reading set. It is a
// pure function of its inputs: no clock, no randomness.
func Score(readings []CanonicalReading, tables *Tables) CompositeScore {
	byMetric := make(map[MetricType]CanonicalReading, len(readings))
	for _, r := range readings {
		byMetric[r.Metric] = r
	}

	score := CompositeScore{SubScores: scoreSubIndexes(byMetric, tables)}
	for _, sub := range score.SubScores {
		if !score.AQIKnown || sub.AQI > score.AQI {
			score.AQIKnown = true
			score.AQI = sub.AQI
			score.Dominant = sub.Pollutant
		}
	}
	if score.AQIKnown {
		score.Category = tables.AQICategory(score.AQI)
	}

	if uv, ok := byMetric[MetricUVIndex]; ok {
		score.UV = &UVScore{Value: uv.Value, Band: tables.UVBand(uv.Value)}
	}
	score.Sunlight = scoreSunlight(byMetric)
	score.Weather = weatherReadings(byMetric)
	return score
}

// scoreSubIndexes computes one sub-score per present pollutant, in canonical
// pollutant order.
func scoreSubIndexes(byMetric map[MetricType]CanonicalReading, tables *Tables) []SubScore {
	subs := make([]SubScore, 0, len(PollutantMetrics))
	for _, metric := range PollutantMetrics {
		reading, ok := byMetric[metric]
		if !ok {
			continue
		}
		segments, ok := tables.Breakpoints[metric]
		if !ok {
			continue
		}
		aqi, extrapolated := subIndex(segments, reading.Value)
		subs = append(subs, SubScore{
			Pollutant:     metric,
			AQI:           aqi,
			Concentration: reading.Value,
			Unit:          reading.Unit,
			Extrapolated:  extrapolated,
		})
	}
	return subs
}

// subIndex interpolates a concentration into its AQI segment. Segment
// boundaries map to the boundary index exactly; concentrations above the top
// segment clamp to the table maximum and report extrapolation.
func subIndex(segments []Breakpoint, conc float64) (int, bool) {
	if conc < 0 {
		conc = 0
	}
	for _, seg := range segments {
		if conc > seg.ConcHi {
			continue
		}
		if conc <= seg.ConcLo {
			return seg.AQILo, false
		}
		ratio := (conc - seg.ConcLo) / (seg.ConcHi - seg.ConcLo)
		return int(math.Round(float64(seg.AQILo) + ratio*float64(seg.AQIHi-seg.AQILo))), false
	}
	return segments[len(segments)-1].AQIHi, true
}

func scoreSunlight(byMetric map[MetricType]CanonicalReading) *Sunlight {
	sunrise, hasRise := byMetric[MetricSunrise]
	sunset, hasSet := byMetric[MetricSunset]
	if !hasRise || !hasSet {
		return nil
	}
	rise := time.Unix(int64(sunrise.Value), 0).UTC()
	set := time.Unix(int64(sunset.Value), 0).UTC()
	if !set.After(rise) {
		return nil
	}
	return &Sunlight{
		Sunrise:         rise,
		Sunset:          set,
		DaylightMinutes: int(set.Sub(rise).Minutes()),
	}
}

func weatherReadings(byMetric map[MetricType]CanonicalReading) Weather {
	var w Weather
	if r, ok := byMetric[MetricTemperature]; ok {
		v := r.Value
		w.TemperatureC = &v
	}
	if r, ok := byMetric[MetricHumidity]; ok {
		v := r.Value
		w.Humidity = &v
	}
	if r, ok := byMetric[MetricPrecipitation]; ok {
		v := r.Value
		w.PrecipitationMM = &v
	}
	return w
}
