package scoring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

// ErrInvalidRanking is returned when a ranking is not a permutation of the
// question's option ids.
var ErrInvalidRanking = errors.New("invalid ranking")

// Answer is one aggregated response. Order is the declared order of the
// question that produced it.
type Answer struct {
	Order int     `json:"order"`
	Value float64 `json:"value"`
}

// Answers accumulates responses by target (dimension id, mirror key or
// desirability key).
type Answers map[string][]Answer

// Record returns a copy of a with value appended under the question's target.
func (a Answers) Record(q assessment.Question, value float64) Answers {
	out := make(Answers, len(a)+1)
	for k, v := range a {
		out[k] = append([]Answer(nil), v...)
	}
	out[q.Target] = append(out[q.Target], Answer{Order: q.Order, Value: value})
	return out
}

// Values returns the raw values stored under target, in answer order.
func (a Answers) Values(target string) []float64 {
	list := a[target]
	out := make([]float64, len(list))
	for i, ans := range list {
		out[i] = ans.Value
	}
	return out
}

// Count returns the total number of recorded answers.
func (a Answers) Count() int {
	n := 0
	for _, v := range a {
		n += len(v)
	}
	return n
}

// Bounds is the reachable range of a single weighted value.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// WeightedValue collapses a ranking (option ids, most representative first)
// into Σ value·weight(position) / Σ weight.
func WeightedValue(q assessment.Question, ranking []string, weights RankWeights) (float64, error) {
	if len(ranking) != len(q.Options) {
		return 0, fmt.Errorf("%w: %d ids for %d options", ErrInvalidRanking, len(ranking), len(q.Options))
	}
	if len(weights) != len(q.Options) {
		return 0, fmt.Errorf("%w: %d rank weights for %d options", ErrInvalidRanking, len(weights), len(q.Options))
	}

	seen := make(map[string]bool, len(ranking))
	values := make([]float64, len(ranking))
	for pos, id := range ranking {
		if seen[id] {
			return 0, fmt.Errorf("%w: option %q ranked twice", ErrInvalidRanking, id)
		}
		seen[id] = true
		v, ok := q.OptionValue(id)
		if !ok {
			return 0, fmt.Errorf("%w: unknown option %q", ErrInvalidRanking, id)
		}
		values[pos] = float64(v)
	}
	return weightedMean(values, weights), nil
}

// weightedMean pairs ranked values with position weights.
func weightedMean(ranked []float64, weights RankWeights) float64 {
	var total float64
	for i, v := range ranked {
		total += v * weights[i]
	}
	return total / weights.Sum()
}

// ComputeBounds returns the analytic range of a weighted value. With weights
// strictly decreasing, the rearrangement inequality puts the maximum at
// values sorted descending and the minimum at values sorted ascending.
func ComputeBounds(cfg EngineConfig) Bounds {
	asc := cfg.values()
	desc := make([]float64, len(asc))
	copy(desc, asc)
	sort.Sort(sort.Reverse(sort.Float64Slice(desc)))

	return Bounds{
		Min: weightedMean(asc, cfg.RankWeights),
		Max: weightedMean(desc, cfg.RankWeights),
	}
}

// BruteForceBounds enumerates every ranking of the value set.
func BruteForceBounds(cfg EngineConfig) Bounds {
	b := Bounds{Min: float64(cfg.ScaleMax) + 1, Max: float64(cfg.ScaleMin) - 1}
	permute(cfg.values(), func(p []float64) {
		v := weightedMean(p, cfg.RankWeights)
		if v < b.Min {
			b.Min = v
		}
		if v > b.Max {
			b.Max = v
		}
	})
	return b
}

// permute calls fn with every permutation of values (Heap's algorithm).
// fn must not retain its argument.
func permute(values []float64, fn func([]float64)) {
	a := make([]float64, len(values))
	copy(a, values)
	c := make([]int, len(a))
	fn(a)
	for i := 0; i < len(a); {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			fn(a)
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}
