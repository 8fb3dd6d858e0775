package scoring

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

var (
	ErrUnknownFormat = errors.New("unknown format")
	ErrPoolExhausted = errors.New("question pool exhausted")
)

// SelectedQuestion is a catalogue question placed at Index in a session.
type SelectedQuestion struct {
	Index int `json:"index"`
	assessment.Question
}

// SelectQuestions builds the question list of a new session: the first N
// core questions of every dimension, a random sample of eligible mirror and
// desirability questions, all shuffled together.
func SelectQuestions(def *assessment.Definition, formatKey string, rng *rand.Rand) ([]SelectedQuestion, error) {
	format, ok := def.Format(formatKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, formatKey)
	}

	picked := make([]assessment.Question, 0, format.Total(len(def.Dimensions)))
	for _, dim := range def.Dimensions {
		core := def.CoreQuestions(dim.ID)
		if len(core) < format.QuestionsPerDimension {
			return nil, fmt.Errorf("%w: dimension %q has %d questions, format %q needs %d",
				ErrPoolExhausted, dim.ID, len(core), format.Key, format.QuestionsPerDimension)
		}
		picked = append(picked, core[:format.QuestionsPerDimension]...)
	}

	var mirrors []assessment.Question
	for _, p := range def.EligibleMirrorPairs(format) {
		if q, ok := def.MirrorQuestion(p.MirrorKey); ok {
			mirrors = append(mirrors, q)
		}
	}
	sampled, err := sample(mirrors, format.MirrorCount, rng)
	if err != nil {
		return nil, fmt.Errorf("mirror questions: %w", err)
	}
	picked = append(picked, sampled...)

	sampled, err = sample(def.DesirabilityQuestions, format.DesirabilityCount, rng)
	if err != nil {
		return nil, fmt.Errorf("desirability questions: %w", err)
	}
	picked = append(picked, sampled...)

	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

	out := make([]SelectedQuestion, len(picked))
	for i, q := range picked {
		out[i] = SelectedQuestion{Index: i, Question: q}
	}
	return out, nil
}

// sample draws k questions without replacement. The pool is not modified.
func sample(pool []assessment.Question, k int, rng *rand.Rand) ([]assessment.Question, error) {
	if k > len(pool) {
		return nil, fmt.Errorf("%w: need %d, pool has %d", ErrPoolExhausted, k, len(pool))
	}
	shuffled := make([]assessment.Question, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:k], nil
}

// ShuffleOptions returns the question's options in a random presentation order.
func ShuffleOptions(q assessment.Question, rng *rand.Rand) []assessment.Option {
	out := make([]assessment.Option, len(q.Options))
	copy(out, q.Options)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
