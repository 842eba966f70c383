package domain

import (
	"strings"
	"time"
)

// ForecastStatus represents the lifecycle state of a forecast. The only legal
// transition is open -> resolved, exactly once.
type ForecastStatus string

const (
	ForecastStatusOpen     ForecastStatus = "open"
	ForecastStatusResolved ForecastStatus = "resolved"
)

// Outcome is the settled result of a forecast question.
type Outcome string

const (
	OutcomeYes     Outcome = "yes"
	OutcomeNo      Outcome = "no"
	OutcomeUnknown Outcome = "unknown"
)

// NormalizeOutcome maps free-form judge output onto the closed outcome set.
// Anything that is not recognisably yes or no becomes unknown.
func NormalizeOutcome(s string) Outcome {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "y":
		return OutcomeYes
	case "no", "false", "n":
		return OutcomeNo
	default:
		return OutcomeUnknown
	}
}

// SourceRef is a single evidence reference captured when a forecast is seeded.
type SourceRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Verdict is the judge's structured settlement verdict, stored verbatim on the
// forecast row for later audit.
type Verdict struct {
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
	// Raw carries the unparsed judge reply when the reply was not valid JSON.
	Raw string `json:"raw,omitempty"`
}

// Forecast is a single falsifiable forecasting question tracked from seeding
// through resolution.
type Forecast struct {
	ID                 string
	Topic              string
	Question           string
	ResolutionCriteria string
	HorizonTS          time.Time
	Probability        float64
	Rationale          string
	MethodologyTags    []string
	Sources            []SourceRef
	Status             ForecastStatus
	Outcome            Outcome
	Judge              *Verdict
	ResolvedAt         *time.Time
	BrierScore         *float64
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Due reports whether the forecast is open and past its horizon.
func (f Forecast) Due(now time.Time) bool {
	return f.Status == ForecastStatusOpen && !f.HorizonTS.After(now)
}

// Clamp01 clamps a probability into [0,1]. NaN is treated as 0.
func Clamp01(p float64) float64 {
	if !(p >= 0) { // catches NaN as well as negatives
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ComputeBrier returns the Brier score for a probability and settled outcome:
// (p-1)^2 for yes, p^2 for no, and nil for unknown. The probability is clamped
// before scoring.
func ComputeBrier(p float64, o Outcome) *float64 {
	var y float64
	switch o {
	case OutcomeYes:
		y = 1
	case OutcomeNo:
		y = 0
	default:
		return nil
	}
	d := Clamp01(p) - y
	score := d * d
	return &score
}
