package assessment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidDefinition wraps every structural problem found by Validate.
var ErrInvalidDefinition = errors.New("invalid assessment definition")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// Validate checks the catalogue invariants the engine relies on. A definition
// that fails here must never reach a scoring call.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return invalid("missing id")
	}
	if len(d.Pillars) == 0 {
		return invalid("no pillars")
	}
	if len(d.Dimensions) == 0 {
		return invalid("no dimensions")
	}
	if len(d.Formats) == 0 {
		return invalid("no formats")
	}
	if len(d.Archetypes) == 0 {
		return invalid("no archetypes")
	}

	if err := d.validateDimensions(); err != nil {
		return err
	}
	if err := d.validateQuestions(); err != nil {
		return err
	}
	if err := d.validateMirrorPairs(); err != nil {
		return err
	}
	if err := d.validateArchetypes(); err != nil {
		return err
	}
	if err := d.validateFormats(); err != nil {
		return err
	}
	return d.validateBands()
}

func (d *Definition) validateDimensions() error {
	seen := make(map[string]bool, len(d.Dimensions))
	owned := make([]int, len(d.Pillars))
	for _, dim := range d.Dimensions {
		if dim.ID == "" {
			return invalid("dimension %q has no id", dim.Name)
		}
		if dim.ID == DesirabilityKey || strings.HasPrefix(dim.ID, MirrorPrefix) {
			return invalid("dimension id %q is reserved", dim.ID)
		}
		if seen[dim.ID] {
			return invalid("duplicate dimension %q", dim.ID)
		}
		seen[dim.ID] = true
		if dim.Pillar < 0 || dim.Pillar >= len(d.Pillars) {
			return invalid("dimension %q: pillar %d out of range", dim.ID, dim.Pillar)
		}
		owned[dim.Pillar]++
	}
	for i, n := range owned {
		if n == 0 {
			return invalid("pillar %d (%s) owns no dimension", i, d.Pillars[i].Name)
		}
	}
	return nil
}

func (d *Definition) validateQuestions() error {
	mirrorKeys := make(map[string]bool, len(d.MirrorPairs))
	for _, p := range d.MirrorPairs {
		mirrorKeys[p.MirrorKey] = true
	}

	seen := make(map[QuestionKey]bool)
	check := func(q Question) error {
		if q.Order < 1 {
			return invalid("question %s must have an order of at least 1", q.Key())
		}
		if seen[q.Key()] {
			return invalid("duplicate question %s", q.Key())
		}
		seen[q.Key()] = true
		return validateOptions(q)
	}

	for _, q := range d.Questions {
		if _, ok := d.Dimension(q.Target); !ok {
			return invalid("question %s targets unknown dimension", q.Key())
		}
		if err := check(q); err != nil {
			return err
		}
	}
	for _, q := range d.MirrorQuestions {
		if !q.IsMirror() || !mirrorKeys[q.Target] {
			return invalid("mirror question %s has no declared pair", q.Key())
		}
		if err := check(q); err != nil {
			return err
		}
	}
	for _, q := range d.DesirabilityQuestions {
		if !q.IsDesirability() {
			return invalid("desirability question %s must target %q", q.Key(), DesirabilityKey)
		}
		if err := check(q); err != nil {
			return err
		}
	}
	return nil
}

// validateOptions requires four distinct option ids whose values are exactly
// a permutation of 1..4.
func validateOptions(q Question) error {
	if len(q.Options) != OptionsPerQuestion {
		return invalid("question %s has %d options, want %d", q.Key(), len(q.Options), OptionsPerQuestion)
	}
	ids := make(map[string]bool, len(q.Options))
	values := make([]int, 0, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" || ids[o.ID] {
			return invalid("question %s: missing or duplicate option id %q", q.Key(), o.ID)
		}
		ids[o.ID] = true
		values = append(values, o.Value)
	}
	sort.Ints(values)
	for i, v := range values {
		if v != i+1 {
			return invalid("question %s: option values %v are not a permutation of 1..%d", q.Key(), values, OptionsPerQuestion)
		}
	}
	return nil
}

func (d *Definition) validateMirrorPairs() error {
	seen := make(map[string]bool, len(d.MirrorPairs))
	for _, p := range d.MirrorPairs {
		if !strings.HasPrefix(p.MirrorKey, MirrorPrefix) {
			return invalid("mirror key %q must start with %q", p.MirrorKey, MirrorPrefix)
		}
		if seen[p.MirrorKey] {
			return invalid("duplicate mirror pair %q", p.MirrorKey)
		}
		seen[p.MirrorKey] = true

		originals := 0
		for _, q := range d.Questions {
			if q.Key() == p.OriginalKey() {
				originals++
			}
		}
		if originals != 1 {
			return invalid("mirror pair %q: original %s resolves to %d questions", p.MirrorKey, p.OriginalKey(), originals)
		}

		mirrors := 0
		for _, q := range d.MirrorQuestions {
			if q.Target == p.MirrorKey {
				mirrors++
			}
		}
		if mirrors != 1 {
			return invalid("mirror pair %q has %d mirror questions, want 1", p.MirrorKey, mirrors)
		}
	}
	return nil
}

func (d *Definition) validateArchetypes() error {
	for _, a := range d.Archetypes {
		if len(a.Weights) != len(d.Pillars) {
			return invalid("archetype %q has %d weights for %d pillars", a.Name, len(a.Weights), len(d.Pillars))
		}
		for _, w := range a.Weights {
			if w < 0 {
				return invalid("archetype %q has negative weight %g", a.Name, w)
			}
		}
	}
	if last := d.Archetypes[len(d.Archetypes)-1]; last.MinScore != 0 {
		return invalid("last archetype %q must be the catch-all (min_score 0)", last.Name)
	}
	return nil
}

func (d *Definition) validateFormats() error {
	smallest := -1
	for _, dim := range d.Dimensions {
		n := len(d.CoreQuestions(dim.ID))
		if smallest < 0 || n < smallest {
			smallest = n
		}
	}

	keys := make(map[string]bool, len(d.Formats))
	for _, f := range d.Formats {
		if f.Key == "" || keys[f.Key] {
			return invalid("missing or duplicate format key %q", f.Key)
		}
		keys[f.Key] = true

		if f.QuestionsPerDimension < 1 || f.QuestionsPerDimension > smallest {
			return invalid("format %q: %d questions per dimension, pool allows 1..%d", f.Key, f.QuestionsPerDimension, smallest)
		}
		if f.MirrorCount < 0 || f.DesirabilityCount < 0 {
			return invalid("format %q has negative counts", f.Key)
		}
		if eligible := len(d.EligibleMirrorPairs(f)); f.MirrorCount > eligible {
			return invalid("format %q wants %d mirror questions, only %d pairs are eligible", f.Key, f.MirrorCount, eligible)
		}
		if f.DesirabilityCount > len(d.DesirabilityQuestions) {
			return invalid("format %q wants %d desirability questions, pool has %d", f.Key, f.DesirabilityCount, len(d.DesirabilityQuestions))
		}
	}
	return nil
}

func (d *Definition) validateBands() error {
	r := d.Reliability
	if r.CoherenceThreshold < 0 {
		return invalid("negative coherence threshold")
	}
	if err := ValidateMinBands("coherence", r.CoherenceBands); err != nil {
		return err
	}
	return ValidateMaxBands("desirability", r.DesirabilityBands)
}

// ValidateMinBands checks bands matched on a lower bound: strictly
// descending Min ending at 0. An empty list is accepted.
func ValidateMinBands(name string, bands []Band) error {
	if len(bands) == 0 {
		return nil
	}
	for i, b := range bands {
		if b.Label == "" {
			return invalid("%s band %d has no label", name, i)
		}
		if i > 0 && b.Min >= bands[i-1].Min {
			return invalid("%s bands must have strictly descending min", name)
		}
	}
	if last := bands[len(bands)-1]; last.Min != 0 {
		return invalid("%s bands must end at min 0", name)
	}
	return nil
}

// ValidateMaxBands checks bands matched on an upper bound: strictly
// ascending Max ending at 100. An empty list is accepted.
func ValidateMaxBands(name string, bands []Band) error {
	if len(bands) == 0 {
		return nil
	}
	for i, b := range bands {
		if b.Label == "" {
			return invalid("%s band %d has no label", name, i)
		}
		if i > 0 && b.Max <= bands[i-1].Max {
			return invalid("%s bands must have strictly ascending max", name)
		}
	}
	if last := bands[len(bands)-1]; last.Max != 100 {
		return invalid("%s bands must end at max 100", name)
	}
	return nil
}

// EligibleMirrorPairs returns the pairs whose original question is part of
// a session of format f.
func (d *Definition) EligibleMirrorPairs(f Format) []MirrorPair {
	var out []MirrorPair
	for _, p := range d.MirrorPairs {
		core := d.CoreQuestions(p.OriginalDimension)
		for i := 0; i < f.QuestionsPerDimension && i < len(core); i++ {
			if core[i].Order == p.OriginalOrder {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
