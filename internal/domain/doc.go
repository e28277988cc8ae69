// Package domain models environmental measurements and the insight pipeline
// that turns them into personalized risk assessments and alerts.
//
// # Data Flow
//
// Raw measurements arrive from external collectors (air-quality, UV, and
// sun-timing providers) as [RawMeasurement] values. The pipeline is a chain
// of pure functions:
//
//	RawMeasurement set → Normalize → CanonicalReading set
//	                   → Score     → CompositeScore
//	                   → EvaluateRisk (+ HealthProfile) → RiskAssessment set
//	                   → NextAlertState (+ AlertState)  → AlertTransition
//	                   → AssembleInsight → Insight
//
// Every stage takes its time reference as an argument, so identical inputs
// always produce identical outputs.
//
// # Units
//
// Canonical units follow the EPA AQI reference tables: µg/m³ for particulates
// (PM2.5, PM10), ppb for gas-phase pollutants (O3, NO2, SO2), and ppm for CO.
// Gas concentrations reported in µg/m³ are converted using the molar volume
// at 25°C and 1 atm (24.45 L/mol):
//
//	ppb = µg/m³ × 24.45 / M
//
// where M is the pollutant's molecular weight. UV index is dimensionless;
// sunrise and sunset are carried as Unix seconds (unit "unix").
//
// # AQI
//
// Sub-index values come from piecewise-linear interpolation over the EPA
// breakpoint segments in [DefaultTables]. A concentration equal to a segment
// boundary maps to that boundary's index value exactly. The composite AQI is
// the maximum sub-index, and the maximizing pollutant is recorded as
// dominant. Concentrations above the top segment are clamped to the
// segment's upper index and flagged as extrapolated.
//
// Category bands (0–50 Good through 301–500 Hazardous) and UV bands
// (Low 0–2, Moderate 3–5, High 6–7, Very High 8–10, Extreme 11+) follow the
// published EPA and WHO scales.
//
// # Alert Lifecycle
//
// Alerts are governed by a per-(user, category) state machine with three
// phases: QUIET, ACTIVE, and SUPPRESSED. A risk at or above HIGH fires an
// alert; repeats within the cooldown window are suppressed unless severity
// strictly increases (escalation overrides suppression). The state returns
// to QUIET once severity has stayed below HIGH for a full cooldown period.
// Transitions are pure ([NextAlertState]); persistence is the caller's
// concern.
package domain
