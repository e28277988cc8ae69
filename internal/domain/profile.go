package domain

// Sensitivity is a user-profile attribute indicating heightened vulnerability
// to a specific environmental factor.
type Sensitivity string

const (
	SensitivityRespiratory    Sensitivity = "respiratory"
	SensitivityCardiovascular Sensitivity = "cardiovascular"
	SensitivityPhotosensitive Sensitivity = "photosensitive"
)

// Goals are the user's active health goals. Zero values mean the goal is not
// set.
type Goals struct {
	SleepTargetHours float64 `json:"sleep_target_hours,omitempty"`
	StepTarget       int     `json:"step_target,omitempty"`
	CalorieTarget    int     `json:"calorie_target,omitempty"`
}

// HealthProfile is the read-only per-user input to risk evaluation. Owned by
// the user-profile store; the engine never writes it.
type HealthProfile struct {
	UserID        string        `json:"user_id"`
	Sensitivities []Sensitivity `json:"sensitivities,omitempty"`
	Goals         Goals         `json:"goals"`
}

// HasSensitivity reports whether the profile carries the given flag.
func (p HealthProfile) HasSensitivity(s Sensitivity) bool {
	for _, have := range p.Sensitivities {
		if have == s {
			return true
		}
	}
	return false
}
