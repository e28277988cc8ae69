// Command validate performs integrity checks on a reference-table YAML file
// before it is rolled out: breakpoint continuity, band ordering, threshold
// sanity, advice-matrix completeness, and scoring spot-checks against the
// loaded tables. It exists so a bad table deploy is caught in CI, not by the
// first request that hits an uncovered cell.
//
// Usage:
//
//	go run ./cmd/validate -tables config/tables.yaml
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/envsense/insight-engine/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	tablesPath := flag.String("tables", "", "path to reference tables YAML (empty: validate built-in defaults)")
	flag.Parse()

	if code := run(*tablesPath); code != 0 {
		os.Exit(code)
	}
}

func run(tablesPath string) int {
	fmt.Println("=== Reference Table Validation ===")
	fmt.Println()

	tables, err := loadTables(tablesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateBreakpoints(tables),
		validateBands(tables),
		validateThresholds(tables),
		validateAdvice(tables),
		validateScoring(tables),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Printf("\nTables %q passed all validations.\n", tables.Version)
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadTables reads the YAML without running the library's own Validate, so
// every phase reports its findings instead of the first failure aborting.
func loadTables(path string) (*domain.Tables, error) {
	if path == "" {
		fmt.Println("No -tables flag given, validating built-in defaults.")
		return domain.DefaultTables(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	var t domain.Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tables file: %w", err)
	}
	fmt.Printf("Loaded %s (version %q).\n", path, t.Version)
	return &t, nil
}

// ── Phase 1: Breakpoints ──
// Each pollutant needs a contiguous, strictly increasing piecewise mapping.

func validateBreakpoints(t *domain.Tables) *phase {
	p := &phase{name: "Phase 1: AQI Breakpoints"}

	for _, metric := range domain.PollutantMetrics {
		segments, ok := t.Breakpoints[metric]
		if !ok || len(segments) == 0 {
			p.errorf("%s: no breakpoint table", metric)
			continue
		}

		if segments[0].ConcLo != 0 {
			p.errorf("%s: first segment starts at %g, not 0", metric, segments[0].ConcLo)
		}
		if segments[0].AQILo != 0 {
			p.errorf("%s: first segment AQI starts at %d, not 0", metric, segments[0].AQILo)
		}

		for i, seg := range segments {
			if seg.ConcLo >= seg.ConcHi {
				p.errorf("%s segment %d: concentration range [%g, %g] is not increasing", metric, i, seg.ConcLo, seg.ConcHi)
			}
			if seg.AQILo >= seg.AQIHi {
				p.errorf("%s segment %d: AQI range [%d, %d] is not increasing", metric, i, seg.AQILo, seg.AQIHi)
			}
			if i == 0 {
				continue
			}
			prev := segments[i-1]
			if seg.ConcLo <= prev.ConcHi {
				p.errorf("%s segment %d: concentration %g overlaps previous segment ending at %g", metric, i, seg.ConcLo, prev.ConcHi)
			}
			if seg.AQILo != prev.AQIHi+1 {
				p.errorf("%s segment %d: AQI %d leaves a gap after previous segment ending at %d", metric, i, seg.AQILo, prev.AQIHi)
			}
		}
	}
	return p
}

// ── Phase 2: Scale bands ──

func validateBands(t *domain.Tables) *phase {
	p := &phase{name: "Phase 2: Category and UV Bands"}

	checkBands(p, "aqi_categories", t.AQICategories)
	checkBands(p, "uv_bands", t.UVBands)
	return p
}

func checkBands(p *phase, name string, bands []domain.ScaleBand) {
	if len(bands) == 0 {
		p.errorf("%s: empty", name)
		return
	}
	if bands[0].Min != 0 {
		p.errorf("%s: first band starts at %g, not 0", name, bands[0].Min)
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Min <= bands[i-1].Min {
			p.errorf("%s: band %q (min %g) does not come after %q (min %g)",
				name, bands[i].Name, bands[i].Min, bands[i-1].Name, bands[i-1].Min)
		}
	}
	for i, b := range bands {
		if b.Name == "" {
			p.errorf("%s: band %d has no name", name, i)
		}
	}
}

// ── Phase 3: Thresholds and boosts ──

func validateThresholds(t *domain.Tables) *phase {
	p := &phase{name: "Phase 3: Risk Thresholds and Boosts"}

	checkThresholds(p, "air_risk", t.AirRisk)
	checkThresholds(p, "uv_risk", t.UVRisk)

	for s, boost := range t.Boosts {
		if boost < 1 {
			p.errorf("boost for %s is %g, must be >= 1 (boosts only raise risk)", s, boost)
		}
		if boost > 3 {
			p.errorf("boost for %s is %g, implausibly large", s, boost)
		}
	}
	return p
}

func checkThresholds(p *phase, name string, th domain.RiskThresholds) {
	if th.Moderate <= 0 {
		p.errorf("%s: moderate threshold %g must be positive", name, th.Moderate)
	}
	if th.Moderate >= th.High || th.High >= th.Severe {
		p.errorf("%s: thresholds %g/%g/%g must be strictly increasing", name, th.Moderate, th.High, th.Severe)
	}
}

// ── Phase 4: Advice matrix ──
// Every (category, level) cell must have a template: a hole aborts requests
// at runtime.

func validateAdvice(t *domain.Tables) *phase {
	p := &phase{name: "Phase 4: Advice Matrix"}

	for _, cat := range []domain.Category{domain.CategoryAirQuality, domain.CategoryUV, domain.CategoryOverall} {
		for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskModerate, domain.RiskHigh, domain.RiskSevere} {
			text, ok := t.AdviceFor(cat, level)
			if !ok {
				p.errorf("missing advice for %s/%s", cat, level)
			} else if text == "" {
				p.errorf("empty advice for %s/%s", cat, level)
			}
		}
	}
	return p
}

// ── Phase 5: Scoring spot-checks ──
// Runs every breakpoint boundary through the real scorer and verifies the
// sub-index lands exactly on the segment's AQI endpoints.

func validateScoring(t *domain.Tables) *phase {
	p := &phase{name: "Phase 5: Scoring Spot-Checks"}

	for _, metric := range domain.PollutantMetrics {
		for i, seg := range t.Breakpoints[metric] {
			checkBoundary(p, t, metric, i, seg.ConcLo, seg.AQILo)
			checkBoundary(p, t, metric, i, seg.ConcHi, seg.AQIHi)
		}
	}
	return p
}

func checkBoundary(p *phase, t *domain.Tables, metric domain.MetricType, segment int, conc float64, wantAQI int) {
	score := domain.Score([]domain.CanonicalReading{
		{Metric: metric, Value: conc, Unit: domain.CanonicalUnit(metric)},
	}, t)

	for _, sub := range score.SubScores {
		if sub.Pollutant != metric {
			continue
		}
		if sub.AQI != wantAQI {
			p.errorf("%s segment %d: concentration %g scores AQI %d, expected %d",
				metric, segment, conc, sub.AQI, wantAQI)
		}
		return
	}
	p.errorf("%s segment %d: concentration %g produced no sub-score", metric, segment, conc)
}
