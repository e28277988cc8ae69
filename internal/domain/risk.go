package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RiskLevel orders personal risk from LOW to SEVERE.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskHigh
	RiskSevere
)

var riskLevelNames = map[RiskLevel]string{
	RiskLow:      "LOW",
	RiskModerate: "MODERATE",
	RiskHigh:     "HIGH",
	RiskSevere:   "SEVERE",
}

func (l RiskLevel) String() string {
	if name, ok := riskLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("RiskLevel(%d)", int(l))
}

// ParseRiskLevel converts a level name back to its RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for level, name := range riskLevelNames {
		if name == s {
			return level, nil
		}
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// Category identifies a risk category.
type Category string

const (
	CategoryAirQuality Category = "air_quality"
	CategoryUV         Category = "uv"
	CategorySunlight   Category = "sunlight"
	CategoryOverall    Category = "overall"
)

// categoryPriority breaks ties when two categories share the highest level:
// air quality beats UV beats sunlight.
var categoryPriority = []Category{CategoryAirQuality, CategoryUV, CategorySunlight}

// Factor is a named contribution to a risk assessment, heaviest first.
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// RiskAssessment is the evaluated risk for one category. Ephemeral: computed
// per request, never persisted by the engine.
type RiskAssessment struct {
	Category Category  `json:"category"`
	Level    RiskLevel `json:"level"`
	Score    float64   `json:"score"`
	Factors  []Factor  `json:"factors"`
}

// FactorInsufficientData marks a category evaluated without usable readings.
const FactorInsufficientData = "insufficient_data"

// EvaluateRisk combines a composite score with a health profile into per-
// category risk assessments: air quality, UV, and overall, in that order.
// Sensitivity flags boost the category score multiplicatively before
// re-bucketing; active goals contribute factors to the overall assessment.
// Pure: identical inputs produce identical output.
func EvaluateRisk(score CompositeScore, profile HealthProfile, tables *Tables) []RiskAssessment {
	air := evaluateAir(score, profile, tables)
	uv := evaluateUV(score, profile, tables)
	overall := evaluateOverall(score, profile, air, uv)
	return []RiskAssessment{air, uv, overall}
}

func evaluateAir(score CompositeScore, profile HealthProfile, tables *Tables) RiskAssessment {
	if !score.AQIKnown {
		// Every pollutant unknown: explicit insufficient-data outcome, never
		// a silent zero.
		return RiskAssessment{
			Category: CategoryAirQuality,
			Level:    RiskLow,
			Factors:  []Factor{{Name: FactorInsufficientData, Weight: 1}},
		}
	}

	weighted := float64(score.AQI)
	factors := pollutantFactors(score.SubScores)

	for _, s := range []Sensitivity{SensitivityRespiratory, SensitivityCardiovascular} {
		if !profile.HasSensitivity(s) {
			continue
		}
		boost := tables.Boosts[s]
		if boost <= 0 {
			continue
		}
		weighted *= boost
		factors = append(factors, Factor{Name: string(s) + "_sensitivity", Weight: boost})
	}

	return RiskAssessment{
		Category: CategoryAirQuality,
		Level:    tables.AirRisk.Bucket(weighted),
		Score:    weighted,
		Factors:  factors,
	}
}

// pollutantFactors weights each sub-score by its share of the summed
// sub-indexes, heaviest first.
func pollutantFactors(subs []SubScore) []Factor {
	total := 0
	for _, sub := range subs {
		total += sub.AQI
	}

	factors := make([]Factor, 0, len(subs))
	for _, sub := range subs {
		weight := 0.0
		if total > 0 {
			weight = float64(sub.AQI) / float64(total)
		}
		factors = append(factors, Factor{Name: string(sub.Pollutant), Weight: weight})
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Weight > factors[j].Weight })
	return factors
}

func evaluateUV(score CompositeScore, profile HealthProfile, tables *Tables) RiskAssessment {
	if score.UV == nil {
		return RiskAssessment{
			Category: CategoryUV,
			Level:    RiskLow,
			Factors:  []Factor{{Name: FactorInsufficientData, Weight: 1}},
		}
	}

	weighted := score.UV.Value
	factors := []Factor{{Name: string(MetricUVIndex), Weight: 1}}

	if profile.HasSensitivity(SensitivityPhotosensitive) {
		if boost := tables.Boosts[SensitivityPhotosensitive]; boost > 0 {
			weighted *= boost
			factors = append(factors, Factor{Name: string(SensitivityPhotosensitive) + "_sensitivity", Weight: boost})
		}
	}

	return RiskAssessment{
		Category: CategoryUV,
		Level:    tables.UVRisk.Bucket(weighted),
		Score:    weighted,
		Factors:  factors,
	}
}

// shortDaylightMinutes is the daylight duration below which an active sleep
// goal adds a note to the overall assessment.
const shortDaylightMinutes = 600

func evaluateOverall(score CompositeScore, profile HealthProfile, categories ...RiskAssessment) RiskAssessment {
	level := RiskLow
	for _, c := range categories {
		if c.Level > level {
			level = c.Level
		}
	}

	byCategory := make(map[Category]RiskAssessment, len(categories))
	for _, c := range categories {
		byCategory[c.Category] = c
	}

	// Leading factor: the highest-priority category at the overall level.
	factors := make([]Factor, 0, len(categories)+2)
	for _, cat := range categoryPriority {
		c, ok := byCategory[cat]
		if ok && c.Level == level {
			factors = append(factors, Factor{Name: string(cat), Weight: 1})
			break
		}
	}
	for _, cat := range categoryPriority {
		c, ok := byCategory[cat]
		if !ok || c.Level != level {
			continue
		}
		if len(factors) > 0 && string(cat) == factors[0].Name {
			continue
		}
		factors = append(factors, Factor{Name: string(cat), Weight: 0.5})
	}

	factors = append(factors, goalFactors(score, profile, byCategory)...)

	var maxScore float64
	for _, c := range categories {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}

	return RiskAssessment{
		Category: CategoryOverall,
		Level:    level,
		Score:    maxScore,
		Factors:  factors,
	}
}

// goalFactors cross-references active health goals with current conditions.
func goalFactors(score CompositeScore, profile HealthProfile, byCategory map[Category]RiskAssessment) []Factor {
	var factors []Factor

	airHigh := byCategory[CategoryAirQuality].Level >= RiskHigh
	uvHigh := byCategory[CategoryUV].Level >= RiskHigh

	if profile.Goals.StepTarget > 0 && airHigh {
		factors = append(factors, Factor{Name: "step_goal_outdoor_exposure", Weight: 0.5})
	}
	if profile.Goals.CalorieTarget > 0 && (airHigh || uvHigh) {
		factors = append(factors, Factor{Name: "calorie_goal_outdoor_activity", Weight: 0.25})
	}
	if profile.Goals.SleepTargetHours > 0 && score.Sunlight != nil &&
		score.Sunlight.DaylightMinutes < shortDaylightMinutes {
		factors = append(factors, Factor{Name: "sleep_goal_short_daylight", Weight: 0.25})
	}
	return factors
}
