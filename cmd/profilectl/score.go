package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Profile/internal/session"
)

//nolint:gochecknoglobals // Cobra boilerplate
var sessionFile string

//nolint:gochecknoglobals // Cobra boilerplate
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Evaluate a stored session record",
	Long: `Reads a session record as returned by GET /api/v1/admin/sessions/{code}
and prints the engine report. Scoring is recomputed with the current
configuration, so the output may differ from an archived report.

Examples:
  profilectl score --session AMA-7KQ2.json`,
	RunE: runScore,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVar(&sessionFile, "session", "", "session record (JSON)")
	_ = scoreCmd.MarkFlagRequired("session")
}

func runScore(cmd *cobra.Command, _ []string) (err error) {
	var data []byte
	data, err = os.ReadFile(sessionFile)
	if err != nil {
		return errors.Wrap(err, "failed to read session")
	}
	var sess session.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return errors.Wrap(err, "failed to decode session")
	}

	var tk toolkit
	tk, err = loadToolkit()
	if err != nil {
		return err
	}
	def, err := tk.defs.Resolve(sess.AssessmentType)
	if err != nil {
		return errors.Wrapf(err, "session %s", sess.Code)
	}
	return printJSON(cmd.OutOrStdout(), tk.engine.Evaluate(sess.Snapshot(), def))
}
