package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

//nolint:gochecknoglobals // Cobra boilerplate
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Print the questions a session would receive",
	Long: `Runs the question selector for one assessment format and prints the
selection in presentation order. The same seed always yields the same
selection.

Examples:
  profilectl select --format court --seed 42`,
	RunE: runSelect,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(selectCmd)
	addSessionFlags(selectCmd)
}

func runSelect(cmd *cobra.Command, _ []string) (err error) {
	var tk toolkit
	tk, err = loadToolkit()
	if err != nil {
		return err
	}
	def, err := tk.defs.Resolve(assessmentType)
	if err != nil {
		return errors.Wrap(err, "failed to resolve assessment")
	}

	questions, err := scoring.SelectQuestions(def, format, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return errors.Wrap(err, "selection failed")
	}

	out := cmd.OutOrStdout()
	for _, q := range questions {
		kind := "core"
		switch {
		case q.IsMirror():
			kind = "mirror"
		case q.IsDesirability():
			kind = "desirability"
		}
		fmt.Fprintf(out, "%3d  %-14s %-12s %s\n", q.Index+1, q.Target, kind, q.Key())
	}
	fmt.Fprintf(out, "%d questions\n", len(questions))
	return nil
}
