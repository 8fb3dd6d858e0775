package hermes

import "time"

type SessionCreatedEvent struct {
	SessionID      string    `json:"session_id"`
	Code           string    `json:"code"`
	AssessmentType string    `json:"assessment_type"`
	Format         string    `json:"format"`
	CandidateName  string    `json:"candidate_name,omitempty"`
	TotalQuestions int       `json:"total_questions"`
	Timestamp      time.Time `json:"timestamp"`
}

type SessionAnsweredEvent struct {
	Code      string    `json:"code"`
	Index     int       `json:"index"`
	Target    string    `json:"target"`
	Answered  int       `json:"answered"`
	Total     int       `json:"total"`
	ElapsedMs int64     `json:"elapsed_ms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionCompletedEvent struct {
	Code           string    `json:"code"`
	AssessmentType string    `json:"assessment_type"`
	TotalTimeMs    int64     `json:"total_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// ResultsComputedEvent summarises a finalized report; the full report lives
// in the archive under ArchiveKey.
type ResultsComputedEvent struct {
	Code              string    `json:"code"`
	AssessmentType    string    `json:"assessment_type"`
	Profile           string    `json:"profile"`
	GlobalScore       int       `json:"global_score"`
	CoherenceIndex    *int      `json:"coherence_index"`
	DesirabilityScore *int      `json:"desirability_score"`
	ZScore            *float64  `json:"z_score"`
	Flags             []string  `json:"flags,omitempty"`
	ArchiveKey        string    `json:"archive_key,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
