// Package roster maps complexity tiers to concrete model identifiers.
// The roster is policy, not computation: it trades latency/cost against
// quality, and an explicit quality override beats the detected tier.
package roster

import (
	"fmt"

	"formsmith/internal/classify"
)

// Quality is the caller-requested quality mode.
type Quality string

const (
	// QualityQuick runs the primary-only fast path on the detected tier.
	QualityQuick Quality = "quick"
	// QualityHigh forces the most capable model regardless of detected tier.
	QualityHigh Quality = "high"
)

// Roster is a fixed set of model identifiers with three capability tiers.
type Roster struct {
	// Fast is the cheap/fast model used for simple requests and for the
	// validator critique pass.
	Fast string `json:"fast" yaml:"fast"`

	// Balanced is the structured mid-tier model.
	Balanced string `json:"balanced" yaml:"balanced"`

	// Max is the maximum-capability model used for complex requests, the
	// high-quality override, and the refiner.
	Max string `json:"max" yaml:"max"`

	// Secondary is an architecturally different model used for the ensemble
	// second opinion. Falls back to Balanced when empty.
	Secondary string `json:"secondary" yaml:"secondary"`
}

// Default returns the stock roster.
func Default() Roster {
	return Roster{
		Fast:      "claude-haiku-4-5",
		Balanced:  "claude-sonnet-4-5",
		Max:       "claude-opus-4-1",
		Secondary: "gpt-4o",
	}
}

// Validate checks that every tier resolves to a non-empty identifier.
func (r Roster) Validate() error {
	if r.Fast == "" || r.Balanced == "" || r.Max == "" {
		return fmt.Errorf("roster is incomplete: fast=%q balanced=%q max=%q", r.Fast, r.Balanced, r.Max)
	}
	return nil
}

// Select maps a complexity tier to a model identifier. Total over all tiers:
// an unknown tier falls back to the balanced model rather than failing.
func (r Roster) Select(tier classify.Complexity) string {
	switch tier {
	case classify.ComplexitySimple:
		return r.Fast
	case classify.ComplexityComplex:
		return r.Max
	default:
		return r.Balanced
	}
}

// SelectForQuality applies the quality override on top of tier selection.
func (r Roster) SelectForQuality(tier classify.Complexity, q Quality) string {
	if q == QualityHigh {
		return r.Max
	}
	return r.Select(tier)
}

// SecondaryModel returns the ensemble second-opinion model.
func (r Roster) SecondaryModel() string {
	if r.Secondary != "" {
		return r.Secondary
	}
	return r.Balanced
}

// ValidatorModel returns the cheap model used for the audit pass.
func (r Roster) ValidatorModel() string { return r.Fast }

// RefinerModel returns the most capable model, used to repair analyses.
func (r Roster) RefinerModel() string { return r.Max }
