package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

//nolint:gochecknoglobals // Cobra boilerplate
var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Parse and validate assessment definition files",
	Long: `Parses each YAML definition and runs the full validation: option
values, mirror pairs, archetypes, formats and reliability bands.

Without arguments, validates the built-in definitions and any definitions in
the configured assessments directory.`,
	RunE: runValidate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) (err error) {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		var tk toolkit
		tk, err = loadToolkit()
		if err != nil {
			return err
		}
		for _, s := range tk.defs.List() {
			if _, err = tk.defs.Resolve(s.ID); err != nil {
				return errors.Wrapf(err, "assessment %s", s.ID)
			}
			fmt.Fprintf(out, "ok  %s (%d dimensions, %d formats)\n", s.ID, len(s.Dimensions), len(s.Formats))
		}
		return nil
	}

	failed := 0
	for _, path := range args {
		if verr := validateFile(path); verr != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", path, verr)
			failed++
			continue
		}
		fmt.Fprintf(out, "ok  %s\n", path)
	}
	if failed > 0 {
		err = errors.Errorf("%d of %d definitions invalid", failed, len(args))
	}
	return err
}

func validateFile(path string) (err error) {
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read definition")
	}
	_, err = assessment.Parse(data)
	return err
}
