package main

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

// Strategy ranks the options of one question.
type Strategy func(q assessment.Question, rng *rand.Rand) []string

//nolint:gochecknoglobals // strategy table
var strategies = map[string]Strategy{
	"max": func(q assessment.Question, _ *rand.Rand) []string { return byValue(q, true) },
	"min": func(q assessment.Question, _ *rand.Rand) []string { return byValue(q, false) },
	"random": func(q assessment.Question, rng *rand.Rand) []string {
		opts := scoring.ShuffleOptions(q, rng)
		ids := make([]string, len(opts))
		for i, o := range opts {
			ids[i] = o.ID
		}
		return ids
	},
	// flattering answers core questions at the top of the scale and picks
	// the implausibly virtuous option on desirability probes.
	"flattering": func(q assessment.Question, _ *rand.Rand) []string {
		return byValue(q, !q.IsDesirability())
	},
}

func byValue(q assessment.Question, desc bool) []string {
	opts := append([]assessment.Option(nil), q.Options...)
	sort.SliceStable(opts, func(i, j int) bool {
		if desc {
			return opts[i].Value > opts[j].Value
		}
		return opts[i].Value < opts[j].Value
	})
	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	return ids
}

// Simulate selects a session and answers every question with the strategy.
func Simulate(def *assessment.Definition, formatKey string, strategy Strategy, weights scoring.RankWeights, rng *rand.Rand) (s scoring.Snapshot, err error) {
	var questions []scoring.SelectedQuestion
	questions, err = scoring.SelectQuestions(def, formatKey, rng)
	if err != nil {
		return s, errors.Wrap(err, "selection failed")
	}

	s = scoring.Snapshot{
		Code:           "SIMULATED",
		AssessmentType: def.ID,
		Format:         formatKey,
		Questions:      questions,
		Answers:        scoring.Answers{},
	}
	for _, q := range questions {
		var v float64
		v, err = scoring.WeightedValue(q.Question, strategy(q.Question, rng), weights)
		if err != nil {
			return s, errors.Wrapf(err, "question %s", q.Key())
		}
		s.Answers = s.Answers.Record(q.Question, v)
	}
	return s, err
}

//nolint:gochecknoglobals // Cobra boilerplate
var strategyName string

//nolint:gochecknoglobals // Cobra boilerplate
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Answer a full session with a fixed strategy and print the report",
	Long: `Selects a session, answers every question with one strategy and prints
the engine report as JSON.

Strategies:
  max         best-valued option first everywhere
  min         worst-valued option first everywhere
  random      uniformly random rankings
  flattering  best options on core items, virtuous options on desirability probes

Examples:
  profilectl simulate --strategy random --seed 7
  profilectl simulate --format complet --strategy flattering`,
	RunE: runSimulate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(simulateCmd)
	addSessionFlags(simulateCmd)
	simulateCmd.Flags().StringVar(&strategyName, "strategy", "random", "answer strategy: max, min, random or flattering")
}

func runSimulate(cmd *cobra.Command, _ []string) (err error) {
	strategy, ok := strategies[strategyName]
	if !ok {
		return errors.Errorf("unknown strategy %q", strategyName)
	}

	var tk toolkit
	tk, err = loadToolkit()
	if err != nil {
		return err
	}
	def, err := tk.defs.Resolve(assessmentType)
	if err != nil {
		return errors.Wrap(err, "failed to resolve assessment")
	}

	snapshot, err := Simulate(def, format, strategy, tk.engine.Config().RankWeights, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), tk.engine.Evaluate(snapshot, def))
}
