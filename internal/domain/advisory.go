package domain

// Advisory is a supplemental weather warning derived from optional
// temperature and precipitation readings.
type Advisory struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Advisories derives weather warnings from the supplemental readings on a
// composite score. Missing readings produce no advisories.
func Advisories(score CompositeScore, tables *Tables) []Advisory {
	temp := score.Weather.TemperatureC
	precip := score.Weather.PrecipitationMM
	if temp == nil {
		return nil
	}

	var advisories []Advisory
	if *temp > tables.Warnings.HeatWaveC {
		advisories = append(advisories, Advisory{
			Type:     "heat_wave",
			Severity: "high",
			Message:  "Heat wave warning: high temperatures expected",
		})
	}
	if *temp < tables.Warnings.ColdWaveC {
		advisories = append(advisories, Advisory{
			Type:     "cold_wave",
			Severity: "high",
			Message:  "Cold weather warning: low temperatures expected",
		})
	}
	if *temp < 0 && precip != nil && *precip > 0 {
		advisories = append(advisories, Advisory{
			Type:     "snowstorm",
			Severity: "high",
			Message:  "Snowstorm warning: snow expected",
		})
	}
	return advisories
}
