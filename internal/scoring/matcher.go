package scoring

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

// ArchetypeMatch is one archetype evaluated against a pillar profile.
type ArchetypeMatch struct {
	Name          string  `json:"name"`
	Icon          string  `json:"icon,omitempty"`
	WeightedScore float64 `json:"weighted_score"`
	MatchPct      int     `json:"match_pct"`
	Eligible      bool    `json:"eligible"`
}

type MatchResult struct {
	Primary   ArchetypeMatch   `json:"primary"`
	Shortlist []ArchetypeMatch `json:"shortlist"`
	// primaryIndex locates Primary in the archetype list.
	primaryIndex int
}

// MatchProfiles scores every archetype against the pillar raws. The primary
// match is the first eligible archetype in list order, so list order encodes
// precedence; when none is eligible the last archetype is used.
func MatchProfiles(pillarRaw []float64, archetypes []assessment.Archetype, cfg EngineConfig) MatchResult {
	if len(archetypes) == 0 {
		return MatchResult{}
	}

	matches := make([]ArchetypeMatch, len(archetypes))
	for i, a := range archetypes {
		var ws float64
		for p := 0; p < len(a.Weights) && p < len(pillarRaw); p++ {
			ws += pillarRaw[p] * a.Weights[p]
		}
		matches[i] = ArchetypeMatch{
			Name:          a.Name,
			Icon:          a.Icon,
			WeightedScore: ws,
			MatchPct:      int(math.Round(math.Min(100, ws/float64(cfg.ScaleMax)*100))),
			Eligible:      ws >= a.MinScore,
		}
	}

	res := MatchResult{primaryIndex: len(matches) - 1}
	for i, m := range matches {
		if m.Eligible {
			res.primaryIndex = i
			break
		}
	}
	res.Primary = matches[res.primaryIndex]

	ranked := make([]ArchetypeMatch, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].WeightedScore > ranked[j].WeightedScore })
	n := cfg.ShortlistSize
	if n > len(ranked) {
		n = len(ranked)
	}
	res.Shortlist = ranked[:n]
	return res
}

// DimensionScore is a dimension's place in the analysis.
type DimensionScore struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Pillar     int     `json:"pillar"`
	Raw        float64 `json:"raw"`
	Normalized int     `json:"normalized"`
	Answered   int     `json:"answered"`
}

type PillarScore struct {
	Name       string  `json:"name"`
	Raw        float64 `json:"raw"`
	Normalized int     `json:"normalized"`
}

type Narrative struct {
	Description string `json:"description,omitempty"`
	Strengths   string `json:"strengths,omitempty"`
	Development string `json:"development,omitempty"`
	Context     string `json:"context,omitempty"`
}

// Analysis is the interpreted profile handed to report consumers.
type Analysis struct {
	Profile     ArchetypeMatch   `json:"profile"`
	Narrative   Narrative        `json:"narrative"`
	Shortlist   []ArchetypeMatch `json:"shortlist"`
	Strengths   []DimensionScore `json:"strengths"`
	Development []DimensionScore `json:"development"`
	Dimensions  []DimensionScore `json:"dimensions"`
	Pillars     []PillarScore    `json:"pillars"`

	GlobalRaw        float64 `json:"global_raw"`
	GlobalNormalized int     `json:"global_normalized"`
}

// GetAnalysis matches archetypes and extracts the strongest and weakest
// dimensions. Development dimensions are listed weakest first.
func GetAnalysis(scores ScoreResult, def *assessment.Definition, cfg EngineConfig) Analysis {
	match := MatchProfiles(scores.RawByPillar, def.Archetypes, cfg)

	a := Analysis{
		Profile:          match.Primary,
		Shortlist:        match.Shortlist,
		GlobalRaw:        scores.GlobalRaw,
		GlobalNormalized: scores.GlobalNormalized,
	}
	if len(def.Archetypes) > 0 {
		arch := def.Archetypes[match.primaryIndex]
		a.Narrative = Narrative{
			Description: arch.Description,
			Strengths:   arch.Strengths,
			Development: arch.Development,
			Context:     arch.Context,
		}
	}

	for i, p := range def.Pillars {
		ps := PillarScore{Name: p.Name}
		if i < len(scores.RawByPillar) {
			ps.Raw = scores.RawByPillar[i]
			ps.Normalized = scores.NormalizedByPillar[i]
		}
		a.Pillars = append(a.Pillars, ps)
	}

	for _, dim := range def.Dimensions {
		a.Dimensions = append(a.Dimensions, DimensionScore{
			ID:         dim.ID,
			Name:       dim.Name,
			Pillar:     dim.Pillar,
			Raw:        scores.RawByDimension[dim.ID],
			Normalized: scores.NormalizedByDimension[dim.ID],
			Answered:   scores.AnsweredByDimension[dim.ID],
		})
	}

	n := cfg.HighlightCount
	if n > len(a.Dimensions) {
		n = len(a.Dimensions)
	}
	byRaw := make([]DimensionScore, len(a.Dimensions))
	copy(byRaw, a.Dimensions)
	sort.SliceStable(byRaw, func(i, j int) bool { return byRaw[i].Raw > byRaw[j].Raw })
	a.Strengths = append([]DimensionScore(nil), byRaw[:n]...)

	sort.SliceStable(byRaw, func(i, j int) bool { return byRaw[i].Raw < byRaw[j].Raw })
	a.Development = append([]DimensionScore(nil), byRaw[:n]...)
	return a
}
