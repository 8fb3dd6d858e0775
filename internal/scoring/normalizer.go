package scoring

import (
	"math"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

// Snapshot is the read-only view of a session the engine scores.
type Snapshot struct {
	Code           string             `json:"code"`
	AssessmentType string             `json:"assessment_type"`
	Format         string             `json:"format"`
	Questions      []SelectedQuestion `json:"questions"`
	Answers        Answers            `json:"answers"`
}

// ScoreResult holds raw (weighted-value scale) and normalized (0..100) scores.
type ScoreResult struct {
	RawByDimension        map[string]float64 `json:"raw_by_dimension"`
	NormalizedByDimension map[string]int     `json:"normalized_by_dimension"`
	AnsweredByDimension   map[string]int     `json:"answered_by_dimension"`
	RawByPillar           []float64          `json:"raw_by_pillar"`
	NormalizedByPillar    []int              `json:"normalized_by_pillar"`
	GlobalRaw             float64            `json:"global_raw"`
	GlobalNormalized      int                `json:"global_normalized"`
}

// DeviationWeightedMean averages values giving weight 1 + alpha·|v - midpoint|
// to each, so decisive answers count more than hesitant ones. Empty input is 0.
func DeviationWeightedMean(values []float64, alpha, midpoint float64) float64 {
	var num, den float64
	for _, v := range values {
		w := 1 + alpha*math.Abs(v-midpoint)
		num += v * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Normalize maps a raw score onto 0..100 between the reachable bounds.
func Normalize(raw float64, b Bounds) int {
	if b.Max == b.Min {
		return 0
	}
	return int(math.Round(clamp((raw-b.Min)/(b.Max-b.Min)*100, 0, 100)))
}

// ComputeScores scores every dimension, pillar and the global profile of s.
// Dimensions without answers score 0.
func ComputeScores(s Snapshot, def *assessment.Definition, cfg EngineConfig) ScoreResult {
	bounds := ComputeBounds(cfg)
	res := ScoreResult{
		RawByDimension:        make(map[string]float64, len(def.Dimensions)),
		NormalizedByDimension: make(map[string]int, len(def.Dimensions)),
		AnsweredByDimension:   make(map[string]int, len(def.Dimensions)),
		RawByPillar:           make([]float64, len(def.Pillars)),
		NormalizedByPillar:    make([]int, len(def.Pillars)),
	}

	var globalSum float64
	for _, dim := range def.Dimensions {
		values := s.Answers.Values(dim.ID)
		raw := DeviationWeightedMean(values, cfg.Alpha, cfg.Midpoint)
		res.RawByDimension[dim.ID] = raw
		res.NormalizedByDimension[dim.ID] = Normalize(raw, bounds)
		res.AnsweredByDimension[dim.ID] = len(values)
		globalSum += raw
	}

	for p := range def.Pillars {
		dims := def.DimensionsInPillar(p)
		if len(dims) == 0 {
			continue
		}
		var sum float64
		for _, dim := range dims {
			sum += res.RawByDimension[dim.ID]
		}
		res.RawByPillar[p] = sum / float64(len(dims))
		res.NormalizedByPillar[p] = Normalize(res.RawByPillar[p], bounds)
	}

	if len(def.Dimensions) > 0 {
		res.GlobalRaw = globalSum / float64(len(def.Dimensions))
	}
	res.GlobalNormalized = Normalize(res.GlobalRaw, bounds)
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
