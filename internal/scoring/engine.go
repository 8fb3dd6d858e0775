package scoring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

// Recorder observes engine activity. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveEvaluation(assessmentType string, d time.Duration)
	IncReliabilityFlag(flag string)
}

// Report bundles everything the engine derives from one snapshot.
type Report struct {
	Code           string            `json:"code"`
	AssessmentType string            `json:"assessment_type"`
	Format         string            `json:"format"`
	Answered       int               `json:"answered"`
	Total          int               `json:"total"`
	Complete       bool              `json:"complete"`
	Bounds         Bounds            `json:"bounds"`
	Scores         ScoreResult       `json:"scores"`
	Analysis       Analysis          `json:"analysis"`
	Reliability    ReliabilityResult `json:"reliability"`
}

// Engine is the scoring facade used by the service. Its operations are pure
// functions of the snapshot and definition.
type Engine struct {
	cfg      EngineConfig
	bounds   Bounds
	logger   *slog.Logger
	recorder Recorder
}

// NewEngine validates cfg and precomputes the weighted-value bounds.
// recorder may be nil.
func NewEngine(cfg EngineConfig, logger *slog.Logger, recorder Recorder) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		bounds:   ComputeBounds(cfg),
		logger:   logger,
		recorder: recorder,
	}
	logger.Debug("scoring engine ready", "min", e.bounds.Min, "max", e.bounds.Max, "rank_weights", []float64(cfg.RankWeights))
	return e, nil
}

func (e *Engine) Config() EngineConfig { return e.cfg }

func (e *Engine) Bounds() Bounds { return e.bounds }

// ComputeScores returns per-dimension, per-pillar and global scores.
func (e *Engine) ComputeScores(s Snapshot, def *assessment.Definition) ScoreResult {
	return ComputeScores(s, def, e.cfg.ForDefinition(def))
}

// GetAnalysis interprets previously computed scores.
func (e *Engine) GetAnalysis(scores ScoreResult, def *assessment.Definition) Analysis {
	return GetAnalysis(scores, def, e.cfg.ForDefinition(def))
}

// ComputeReliability returns the coherence, desirability and significance indicators.
func (e *Engine) ComputeReliability(s Snapshot, def *assessment.Definition) ReliabilityResult {
	return ComputeReliability(s, def, e.cfg.ForDefinition(def))
}

// Evaluate runs all three operations. Partial sessions are scored on what
// has been answered.
func (e *Engine) Evaluate(s Snapshot, def *assessment.Definition) Report {
	start := time.Now()

	scores := e.ComputeScores(s, def)
	report := Report{
		Code:           s.Code,
		AssessmentType: s.AssessmentType,
		Format:         s.Format,
		Answered:       s.Answers.Count(),
		Total:          len(s.Questions),
		Bounds:         e.bounds,
		Scores:         scores,
		Analysis:       e.GetAnalysis(scores, def),
		Reliability:    e.ComputeReliability(s, def),
	}
	report.Complete = report.Total > 0 && report.Answered >= report.Total

	if e.recorder != nil {
		e.recorder.ObserveEvaluation(s.AssessmentType, time.Since(start))
		for _, f := range report.Reliability.Flags() {
			e.recorder.IncReliabilityFlag(f)
		}
	}
	e.logger.Debug("session evaluated",
		"code", s.Code,
		"profile", report.Analysis.Profile.Name,
		"global", scores.GlobalNormalized,
		"answered", report.Answered,
		"total", report.Total,
	)
	return report
}
