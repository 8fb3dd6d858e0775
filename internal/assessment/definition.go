package assessment

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// DesirabilityKey is the target of every social-desirability question.
	DesirabilityKey = "desirability"
	// MirrorPrefix prefixes the target of mirror questions ("mirror_vision").
	MirrorPrefix = "mirror_"
	// OptionsPerQuestion is fixed by the forced-ranking format.
	OptionsPerQuestion = 4
)

type Pillar struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

type Dimension struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Pillar int    `yaml:"pillar" json:"pillar"`
	Icon   string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Color  string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Option is one of the four answers of a question. Value is the calibrated
// score (1..4) and is deliberately unrelated to presentation order.
type Option struct {
	ID    string `yaml:"id" json:"id"`
	Text  string `yaml:"text" json:"text"`
	Value int    `yaml:"value" json:"value"`
}

type Question struct {
	Target  string   `yaml:"target" json:"target"`
	Order   int      `yaml:"order" json:"order"`
	Text    string   `yaml:"text" json:"text"`
	Options []Option `yaml:"options" json:"options"`
}

// QuestionKey identifies a question inside a definition.
type QuestionKey struct {
	Target string
	Order  int
}

func (k QuestionKey) String() string {
	return fmt.Sprintf("%s#%d", k.Target, k.Order)
}

func (q Question) Key() QuestionKey {
	return QuestionKey{Target: q.Target, Order: q.Order}
}

// IsMirror reports whether the question targets a mirror key.
func (q Question) IsMirror() bool {
	return strings.HasPrefix(q.Target, MirrorPrefix)
}

// IsDesirability reports whether the question belongs to the desirability scale.
func (q Question) IsDesirability() bool {
	return q.Target == DesirabilityKey
}

// OptionValue returns the calibrated value of the option with the given id.
func (q Question) OptionValue(id string) (int, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o.Value, true
		}
	}
	return 0, false
}

// MirrorPair declares which core question a mirror question reproduces.
type MirrorPair struct {
	MirrorKey         string `yaml:"mirror_key" json:"mirror_key"`
	OriginalDimension string `yaml:"original_dimension" json:"original_dimension"`
	OriginalOrder     int    `yaml:"original_order" json:"original_order"`
}

func (p MirrorPair) OriginalKey() QuestionKey {
	return QuestionKey{Target: p.OriginalDimension, Order: p.OriginalOrder}
}

type Format struct {
	Key                   string `yaml:"key" json:"key"`
	Label                 string `yaml:"label" json:"label"`
	QuestionsPerDimension int    `yaml:"questions_per_dimension" json:"questions_per_dimension"`
	MirrorCount           int    `yaml:"mirror_count" json:"mirror_count"`
	DesirabilityCount     int    `yaml:"desirability_count" json:"desirability_count"`
	Duration              string `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Total returns the number of questions a session of this format presents.
func (f Format) Total(dimensions int) int {
	return f.QuestionsPerDimension*dimensions + f.MirrorCount + f.DesirabilityCount
}

// Archetype is a weighted pillar pattern. Weights need not sum to 1.
type Archetype struct {
	Name        string    `yaml:"name" json:"name"`
	Icon        string    `yaml:"icon,omitempty" json:"icon,omitempty"`
	Weights     []float64 `yaml:"weights" json:"weights"`
	MinScore    float64   `yaml:"min_score" json:"min_score"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Strengths   string    `yaml:"strengths,omitempty" json:"strengths,omitempty"`
	Development string    `yaml:"development,omitempty" json:"development,omitempty"`
	Context     string    `yaml:"context,omitempty" json:"context,omitempty"`
}

// Band labels a 0..100 index. Coherence and significance bands are matched
// on Min (highest first); desirability bands on Max (lowest first).
type Band struct {
	Min   float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max   float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Label string  `yaml:"label" json:"label"`
	Color string  `yaml:"color,omitempty" json:"color,omitempty"`
}

// ReliabilitySettings overrides the engine's reliability defaults for one
// assessment. Zero values mean "use the engine default".
type ReliabilitySettings struct {
	CoherenceThreshold float64 `yaml:"coherence_threshold,omitempty" json:"coherence_threshold,omitempty"`
	CoherenceBands     []Band  `yaml:"coherence_bands,omitempty" json:"coherence_bands,omitempty"`
	DesirabilityBands  []Band  `yaml:"desirability_bands,omitempty" json:"desirability_bands,omitempty"`
}

type Section struct {
	Heading string `yaml:"heading" json:"heading"`
	Content string `yaml:"content" json:"content"`
}

type Methodology struct {
	Title    string    `yaml:"title" json:"title"`
	Summary  string    `yaml:"summary" json:"summary"`
	Sections []Section `yaml:"sections,omitempty" json:"sections,omitempty"`
}

// Definition is an immutable assessment catalogue. Distinct assessments
// (professions, languages) are distinct definitions, never distinct code.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Subtitle    string `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	CodePrefix  string `yaml:"code_prefix,omitempty" json:"code_prefix,omitempty"`
	DefaultRole string `yaml:"default_role,omitempty" json:"default_role,omitempty"`

	Pillars    []Pillar    `yaml:"pillars" json:"pillars"`
	Dimensions []Dimension `yaml:"dimensions" json:"dimensions"`
	Formats    []Format    `yaml:"formats" json:"formats"`
	Archetypes []Archetype `yaml:"archetypes" json:"archetypes"`

	Reliability ReliabilitySettings `yaml:"reliability,omitempty" json:"reliability,omitempty"`
	MirrorPairs []MirrorPair        `yaml:"mirror_pairs,omitempty" json:"mirror_pairs,omitempty"`

	Questions             []Question `yaml:"questions" json:"questions"`
	MirrorQuestions       []Question `yaml:"mirror_questions,omitempty" json:"mirror_questions,omitempty"`
	DesirabilityQuestions []Question `yaml:"desirability_questions,omitempty" json:"desirability_questions,omitempty"`

	Methodology *Methodology `yaml:"methodology,omitempty" json:"methodology,omitempty"`
}

func (d *Definition) Format(key string) (Format, bool) {
	for _, f := range d.Formats {
		if f.Key == key {
			return f, true
		}
	}
	return Format{}, false
}

func (d *Definition) Dimension(id string) (Dimension, bool) {
	for _, dim := range d.Dimensions {
		if dim.ID == id {
			return dim, true
		}
	}
	return Dimension{}, false
}

// DimensionsInPillar returns the pillar's dimensions in catalogue order.
func (d *Definition) DimensionsInPillar(pillar int) []Dimension {
	var out []Dimension
	for _, dim := range d.Dimensions {
		if dim.Pillar == pillar {
			out = append(out, dim)
		}
	}
	return out
}

// CoreQuestions returns a dimension's questions sorted by their canonical order.
func (d *Definition) CoreQuestions(dimensionID string) []Question {
	var out []Question
	for _, q := range d.Questions {
		if q.Target == dimensionID {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Question looks a question up by key across all three pools.
func (d *Definition) Question(key QuestionKey) (Question, bool) {
	for _, pool := range [][]Question{d.Questions, d.MirrorQuestions, d.DesirabilityQuestions} {
		for _, q := range pool {
			if q.Key() == key {
				return q, true
			}
		}
	}
	return Question{}, false
}

// MirrorQuestion returns the mirror question stored under mirrorKey.
func (d *Definition) MirrorQuestion(mirrorKey string) (Question, bool) {
	for _, q := range d.MirrorQuestions {
		if q.Target == mirrorKey {
			return q, true
		}
	}
	return Question{}, false
}

// Summary is the public, value-free view of a definition.
type Summary struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Subtitle    string       `json:"subtitle,omitempty"`
	DefaultRole string       `json:"default_role,omitempty"`
	Pillars     []Pillar     `json:"pillars"`
	Dimensions  []Dimension  `json:"dimensions"`
	Formats     []FormatInfo `json:"formats"`
	Methodology *Methodology `json:"methodology,omitempty"`
}

type FormatInfo struct {
	Format
	Total int `json:"total"`
}

func (d *Definition) Summary() Summary {
	formats := make([]FormatInfo, 0, len(d.Formats))
	for _, f := range d.Formats {
		formats = append(formats, FormatInfo{Format: f, Total: f.Total(len(d.Dimensions))})
	}
	return Summary{
		ID:          d.ID,
		Label:       d.Label,
		Subtitle:    d.Subtitle,
		DefaultRole: d.DefaultRole,
		Pillars:     d.Pillars,
		Dimensions:  d.Dimensions,
		Formats:     formats,
		Methodology: d.Methodology,
	}
}
