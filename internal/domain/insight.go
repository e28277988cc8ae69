package domain

import "time"

// AQISummary is the air-quality portion of an insight response.
type AQISummary struct {
	Value             int        `json:"value"`
	Known             bool       `json:"known"`
	Category          string     `json:"category,omitempty"`
	DominantPollutant MetricType `json:"dominantPollutant,omitempty"`
	SubScores         []SubScore `json:"subScores"`
}

// AdviceEntry pairs a risk category with its advice text.
type AdviceEntry struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Insight is the complete response object returned to the presentation
// layer.
type Insight struct {
	Location   Location         `json:"location"`
	Timestamp  time.Time        `json:"timestamp"`
	AQI        AQISummary       `json:"aqi"`
	UV         *UVScore         `json:"uv,omitempty"`
	Sunlight   *Sunlight        `json:"sunlight,omitempty"`
	Risks      []RiskAssessment `json:"risks"`
	Alerts     []Alert          `json:"alerts"`
	Advice     []AdviceEntry    `json:"advice"`
	Advisories []Advisory       `json:"advisories,omitempty"`
	// AlertsDeferred is set when the alert-state store was unreachable:
	// scores and risks are valid but alert evaluation was skipped and should
	// be retried by the caller.
	AlertsDeferred bool   `json:"alertsDeferred,omitempty"`
	TablesVersion  string `json:"tablesVersion,omitempty"`
}

// AssembleInsight builds the response object from already-computed parts.
// Pure assembly: no computation beyond advice lookup. Every risk category
// must have an advice template; a hole in the matrix is a configuration
// defect reported as *MissingAdviceTemplateError, never a silent omission.
func AssembleInsight(loc Location, ts time.Time, score CompositeScore, risks []RiskAssessment,
	alerts []Alert, advisories []Advisory, tables *Tables) (Insight, error) {

	advice := make([]AdviceEntry, 0, len(risks))
	for _, risk := range risks {
		text, ok := tables.AdviceFor(risk.Category, risk.Level)
		if !ok {
			return Insight{}, &MissingAdviceTemplateError{Category: risk.Category, Level: risk.Level}
		}
		advice = append(advice, AdviceEntry{Category: risk.Category, Text: text})
	}

	if alerts == nil {
		alerts = []Alert{}
	}

	return Insight{
		Location:  loc,
		Timestamp: ts,
		AQI: AQISummary{
			Value:             score.AQI,
			Known:             score.AQIKnown,
			Category:          score.Category,
			DominantPollutant: score.Dominant,
			SubScores:         score.SubScores,
		},
		UV:            score.UV,
		Sunlight:      score.Sunlight,
		Risks:         risks,
		Alerts:        alerts,
		Advice:        advice,
		Advisories:    advisories,
		TablesVersion: tables.Version,
	}, nil
}
