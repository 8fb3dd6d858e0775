package scoring

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

// Reliability flags raised for downstream consumers.
const (
	FlagLowCoherence     = "low coherence"
	FlagHighDesirability = "social desirability bias"
	FlagRandomPattern    = "indistinguishable from random"
)

// PairCoherence details one mirror pair. Original and Mirror are nil when
// the corresponding answer is missing; such pairs are not evaluated.
type PairCoherence struct {
	MirrorKey string   `json:"mirror_key"`
	Dimension string   `json:"dimension"`
	Order     int      `json:"order"`
	Original  *float64 `json:"original"`
	Mirror    *float64 `json:"mirror"`
	Gap       *float64 `json:"gap"`
	Coherent  bool     `json:"coherent"`
}

type ReliabilityResult struct {
	CoherenceIndex    *int            `json:"coherence_index"`
	CoherentPairs     int             `json:"coherent_pairs"`
	EvaluatedPairs    int             `json:"evaluated_pairs"`
	CoherenceLabel    string          `json:"coherence_label"`
	Pairs             []PairCoherence `json:"pairs"`
	DesirabilityScore *int            `json:"desirability_score"`
	DesirabilityCount int             `json:"desirability_answers"`
	DesirabilityLabel string          `json:"desirability_label"`
	ZScore            *float64        `json:"z_score"`
	SignificanceLabel string          `json:"significance_label"`
	Warnings          []string        `json:"flags"`
}

// Flags returns the human-readable reliability warnings.
func (r ReliabilityResult) Flags() []string {
	return r.Warnings
}

// ComputeReliability evaluates response coherence, social desirability and
// the distance of the global score from random responding.
func ComputeReliability(s Snapshot, def *assessment.Definition, cfg EngineConfig) ReliabilityResult {
	var r ReliabilityResult
	coherence(&r, s, def, cfg)
	desirability(&r, s, cfg)
	significance(&r, s, def, cfg)
	return r
}

func coherence(r *ReliabilityResult, s Snapshot, def *assessment.Definition, cfg EngineConfig) {
	r.CoherenceLabel = NotAvailable
	for _, p := range def.MirrorPairs {
		pc := PairCoherence{MirrorKey: p.MirrorKey, Dimension: p.OriginalDimension, Order: p.OriginalOrder}
		if v, ok := originalAnswer(s.Answers[p.OriginalDimension], p.OriginalOrder); ok {
			pc.Original = &v
		}
		if mirrors := s.Answers[p.MirrorKey]; len(mirrors) > 0 {
			v := mirrors[0].Value
			pc.Mirror = &v
		}
		if pc.Original != nil && pc.Mirror != nil {
			gap := math.Abs(*pc.Original - *pc.Mirror)
			pc.Gap = &gap
			pc.Coherent = gap <= cfg.CoherenceThreshold
			r.EvaluatedPairs++
			if pc.Coherent {
				r.CoherentPairs++
			}
		}
		r.Pairs = append(r.Pairs, pc)
	}

	if r.EvaluatedPairs == 0 {
		return
	}
	idx := int(math.Round(100 * float64(r.CoherentPairs) / float64(r.EvaluatedPairs)))
	r.CoherenceIndex = &idx
	pos, label := minBand(float64(idx), cfg.CoherenceBands)
	r.CoherenceLabel = label
	if pos > 0 {
		r.Warnings = append(r.Warnings, FlagLowCoherence)
	}
}

// originalAnswer finds the answer to the question of the given order. Answers
// recorded without an order fall back to their position in the list.
func originalAnswer(answers []Answer, order int) (float64, bool) {
	for _, a := range answers {
		if a.Order == order {
			return a.Value, true
		}
	}
	if i := order - 1; i >= 0 && i < len(answers) && answers[i].Order == 0 {
		return answers[i].Value, true
	}
	return 0, false
}

func desirability(r *ReliabilityResult, s Snapshot, cfg EngineConfig) {
	r.DesirabilityLabel = NotAvailable
	values := s.Answers.Values(assessment.DesirabilityKey)
	r.DesirabilityCount = len(values)
	if len(values) == 0 {
		return
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	span := float64(cfg.ScaleMax - cfg.ScaleMin)
	score := int(math.Round(clamp((float64(cfg.ScaleMax)-avg)/span*100, 0, 100)))
	r.DesirabilityScore = &score

	pos, label := maxBand(float64(score), cfg.DesirabilityBands)
	r.DesirabilityLabel = label
	if pos > 0 {
		r.Warnings = append(r.Warnings, FlagHighDesirability)
	}
}

func significance(r *ReliabilityResult, s Snapshot, def *assessment.Definition, cfg EngineConfig) {
	r.SignificanceLabel = NotAvailable

	core := 0
	for _, dim := range def.Dimensions {
		core += len(s.Answers[dim.ID])
	}
	if core == 0 {
		return
	}

	// Expected number of core answers; unknown formats use what was answered.
	n := core
	if f, ok := def.Format(s.Format); ok {
		n = f.QuestionsPerDimension * len(def.Dimensions)
	}
	varGlobal := RandomRankingVariance(cfg) / float64(n)
	if varGlobal <= 0 {
		return
	}

	global := ComputeScores(s, def, cfg).GlobalRaw
	z := (global - cfg.Midpoint) / math.Sqrt(varGlobal)
	r.ZScore = &z

	pos, label := minBand(math.Abs(z), cfg.SignificanceBands)
	r.SignificanceLabel = label
	if len(cfg.SignificanceBands) > 0 && pos == len(cfg.SignificanceBands)-1 {
		r.Warnings = append(r.Warnings, FlagRandomPattern)
	}
}

// RandomRankingVariance is the null-hypothesis variance of a single weighted
// value under uniformly random ranking:
//
//	varSingle = wVar · sVar / (Σw)² / (n-1)
//
// wVar is the population variance of the rank weights and sVar the sum of
// squared deviations of the value set (5.0 for 1..4).
func RandomRankingVariance(cfg EngineConfig) float64 {
	n := len(cfg.RankWeights)
	sum := cfg.RankWeights.Sum()
	if n < 2 || sum == 0 {
		return 0
	}
	values := cfg.values()
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sVar float64
	for _, v := range values {
		sVar += (v - mean) * (v - mean)
	}
	return cfg.RankWeights.variance() * sVar / (sum * sum) / float64(n-1)
}

// minBand returns the position and label of the first band whose Min is at
// most v, scanning from the highest Min.
func minBand(v float64, bands []assessment.Band) (int, string) {
	if len(bands) == 0 {
		return 0, NotAvailable
	}
	sorted := sortedBands(bands, func(a, b assessment.Band) bool { return a.Min > b.Min })
	for i, b := range sorted {
		if v >= b.Min {
			return i, b.Label
		}
	}
	last := len(sorted) - 1
	return last, sorted[last].Label
}

// maxBand returns the position and label of the first band whose Max is at
// least v, scanning from the lowest Max.
func maxBand(v float64, bands []assessment.Band) (int, string) {
	if len(bands) == 0 {
		return 0, NotAvailable
	}
	sorted := sortedBands(bands, func(a, b assessment.Band) bool { return a.Max < b.Max })
	for i, b := range sorted {
		if v <= b.Max {
			return i, b.Label
		}
	}
	last := len(sorted) - 1
	return last, sorted[last].Label
}

func sortedBands(bands []assessment.Band, less func(a, b assessment.Band) bool) []assessment.Band {
	out := make([]assessment.Band, len(bands))
	copy(out, bands)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
