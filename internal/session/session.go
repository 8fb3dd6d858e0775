package session

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("session already completed")
	ErrOutOfOrder       = errors.New("answer out of order")
	// ErrCodeTaken is returned by Store.Create when the code already exists.
	ErrCodeTaken = errors.New("session code already taken")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Session struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	AssessmentType string    `json:"assessment_type"`
	Format         string    `json:"format"`
	CandidateName  string    `json:"candidate_name"`
	CandidateRole  string    `json:"candidate_role,omitempty"`

	Status          Status                     `json:"status"`
	Questions       []scoring.SelectedQuestion `json:"questions"`
	Answers         scoring.Answers            `json:"answers"`
	CurrentQuestion int                        `json:"current_question"`
	TotalTimeMs     int64                      `json:"total_time_ms"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

type Filter struct {
	AssessmentType string
	Status         *Status
	Limit          int
	Offset         int
}

// Snapshot returns the engine's view of the session.
func (s *Session) Snapshot() scoring.Snapshot {
	answers := s.Answers
	if answers == nil {
		answers = scoring.Answers{}
	}
	return scoring.Snapshot{
		Code:           s.Code,
		AssessmentType: s.AssessmentType,
		Format:         s.Format,
		Questions:      s.Questions,
		Answers:        answers,
	}
}

// PresentedOptions returns the options of question i in the order shown to
// the candidate. The order is derived from the session id, so it is stable
// across requests.
func (s *Session) PresentedOptions(i int) []assessment.Option {
	if i < 0 || i >= len(s.Questions) {
		return nil
	}
	hi := binary.BigEndian.Uint64(s.ID[:8])
	lo := binary.BigEndian.Uint64(s.ID[8:])
	rng := rand.New(rand.NewPCG(hi, lo^uint64(i)))
	return scoring.ShuffleOptions(s.Questions[i].Question, rng)
}

// CandidateOption hides the calibrated value.
type CandidateOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type CandidateQuestion struct {
	Index   int               `json:"index"`
	Text    string            `json:"text"`
	Options []CandidateOption `json:"options"`
}

// CandidateView is what the candidate-facing API exposes: progress and the
// current question, never option values or targets.
type CandidateView struct {
	Code           string             `json:"code"`
	AssessmentType string             `json:"assessment_type"`
	Format         string             `json:"format"`
	CandidateName  string             `json:"candidate_name"`
	Status         Status             `json:"status"`
	Answered       int                `json:"answered"`
	Total          int                `json:"total"`
	Current        *CandidateQuestion `json:"current,omitempty"`
}

func (s *Session) CandidateView() CandidateView {
	v := CandidateView{
		Code:           s.Code,
		AssessmentType: s.AssessmentType,
		Format:         s.Format,
		CandidateName:  s.CandidateName,
		Status:         s.Status,
		Answered:       s.CurrentQuestion,
		Total:          len(s.Questions),
	}
	if s.Status == StatusCompleted || s.CurrentQuestion >= len(s.Questions) {
		return v
	}
	q := s.Questions[s.CurrentQuestion]
	cq := &CandidateQuestion{Index: q.Index, Text: q.Text}
	for _, o := range s.PresentedOptions(s.CurrentQuestion) {
		cq.Options = append(cq.Options, CandidateOption{ID: o.ID, Text: o.Text})
	}
	v.Current = cq
	return v
}

func clone(s *Session) *Session {
	c := *s
	c.Questions = append([]scoring.SelectedQuestion(nil), s.Questions...)
	c.Answers = make(scoring.Answers, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = append([]scoring.Answer(nil), v...)
	}
	return &c
}
