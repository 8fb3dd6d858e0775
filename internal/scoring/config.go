package scoring

import (
	"fmt"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

// NotAvailable labels an indicator that could not be computed.
const NotAvailable = "—"

// EngineConfig holds every tuning parameter of the engine. It is passed
// explicitly into all scoring functions.
type EngineConfig struct {
	RankWeights RankWeights
	// Alpha scales the extra weight given to answers far from Midpoint.
	Alpha    float64
	Midpoint float64
	ScaleMin int
	ScaleMax int

	CoherenceThreshold float64
	CoherenceBands     []assessment.Band
	DesirabilityBands  []assessment.Band
	// SignificanceBands are matched against |z| on Min, highest first.
	SignificanceBands []assessment.Band

	ShortlistSize  int
	HighlightCount int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RankWeights:        DefaultRankWeights(),
		Alpha:              1.0,
		Midpoint:           2.5,
		ScaleMin:           1,
		ScaleMax:           4,
		CoherenceThreshold: 0.8,
		CoherenceBands: []assessment.Band{
			{Min: 70, Label: "Reliable"},
			{Min: 50, Label: "To verify"},
			{Min: 0, Label: "Inconsistent"},
		},
		DesirabilityBands: []assessment.Band{
			{Max: 55, Label: "Sincere"},
			{Max: 75, Label: "Embellishing"},
			{Max: 100, Label: "High social desirability"},
		},
		SignificanceBands: []assessment.Band{
			{Min: 3, Label: "Highly significant"},
			{Min: 2, Label: "Significant"},
			{Min: 1, Label: "Weakly significant"},
			{Min: 0, Label: "Not significant"},
		},
		ShortlistSize:  3,
		HighlightCount: 3,
	}
}

// Validate rejects configurations that would make scores meaningless.
func (c EngineConfig) Validate() error {
	if err := c.RankWeights.Validate(); err != nil {
		return err
	}
	if c.ScaleMax <= c.ScaleMin {
		return fmt.Errorf("scale max %d must exceed scale min %d", c.ScaleMax, c.ScaleMin)
	}
	if n := c.ScaleMax - c.ScaleMin + 1; len(c.RankWeights) != n {
		return fmt.Errorf("%d rank weights for a %d-value scale", len(c.RankWeights), n)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("alpha must be >= 0, got %f", c.Alpha)
	}
	if c.CoherenceThreshold < 0 {
		return fmt.Errorf("coherence threshold must be >= 0, got %f", c.CoherenceThreshold)
	}
	if c.ShortlistSize < 1 {
		return fmt.Errorf("shortlist size must be >= 1, got %d", c.ShortlistSize)
	}
	if c.HighlightCount < 0 {
		return fmt.Errorf("highlight count must be >= 0, got %d", c.HighlightCount)
	}
	if err := assessment.ValidateMinBands("coherence", c.CoherenceBands); err != nil {
		return err
	}
	if err := assessment.ValidateMaxBands("desirability", c.DesirabilityBands); err != nil {
		return err
	}
	return assessment.ValidateMinBands("significance", c.SignificanceBands)
}

// ForDefinition returns a copy of c with the definition's reliability
// overrides applied.
func (c EngineConfig) ForDefinition(def *assessment.Definition) EngineConfig {
	if def == nil {
		return c
	}
	r := def.Reliability
	if r.CoherenceThreshold > 0 {
		c.CoherenceThreshold = r.CoherenceThreshold
	}
	if len(r.CoherenceBands) > 0 {
		c.CoherenceBands = r.CoherenceBands
	}
	if len(r.DesirabilityBands) > 0 {
		c.DesirabilityBands = r.DesirabilityBands
	}
	return c
}

// values returns the calibrated value set ScaleMin..ScaleMax.
func (c EngineConfig) values() []float64 {
	out := make([]float64, 0, c.ScaleMax-c.ScaleMin+1)
	for v := c.ScaleMin; v <= c.ScaleMax; v++ {
		out = append(out, float64(v))
	}
	return out
}
