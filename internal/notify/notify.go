package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 3900

// Summary is what an operator sees when a session has been scored.
type Summary struct {
	Code              string
	CandidateName     string
	CandidateRole     string
	AssessmentType    string
	Format            string
	Profile           string
	MatchPct          int
	GlobalScore       int
	CoherenceLabel    string
	DesirabilityLabel string
	SignificanceLabel string
	Flags             []string
	ArchiveKey        string
}

func NewSummary(candidateName, candidateRole string, r scoring.Report) Summary {
	return Summary{
		Code:              r.Code,
		CandidateName:     candidateName,
		CandidateRole:     candidateRole,
		AssessmentType:    r.AssessmentType,
		Format:            r.Format,
		Profile:           r.Analysis.Profile.Name,
		MatchPct:          r.Analysis.Profile.MatchPct,
		GlobalScore:       r.Scores.GlobalNormalized,
		CoherenceLabel:    r.Reliability.CoherenceLabel,
		DesirabilityLabel: r.Reliability.DesirabilityLabel,
		SignificanceLabel: r.Reliability.SignificanceLabel,
		Flags:             r.Reliability.Flags(),
	}
}

// Text renders the summary as a plain-text message.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assessment completed: %s\n", s.Code)
	name := s.CandidateName
	if name == "" {
		name = "(anonymous)"
	}
	if s.CandidateRole != "" {
		fmt.Fprintf(&b, "Candidate: %s, %s\n", name, s.CandidateRole)
	} else {
		fmt.Fprintf(&b, "Candidate: %s\n", name)
	}
	fmt.Fprintf(&b, "Assessment: %s (%s)\n", s.AssessmentType, s.Format)
	fmt.Fprintf(&b, "Profile: %s (%d%%)\n", s.Profile, s.MatchPct)
	fmt.Fprintf(&b, "Global score: %d/100\n", s.GlobalScore)
	fmt.Fprintf(&b, "Coherence: %s\n", s.CoherenceLabel)
	fmt.Fprintf(&b, "Desirability: %s\n", s.DesirabilityLabel)
	fmt.Fprintf(&b, "Significance: %s\n", s.SignificanceLabel)
	if len(s.Flags) > 0 {
		fmt.Fprintf(&b, "Warnings: %s\n", strings.Join(s.Flags, "; "))
	}
	if s.ArchiveKey != "" {
		fmt.Fprintf(&b, "Report: %s\n", s.ArchiveKey)
	}
	text := b.String()
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen] + "…"
	}
	return text
}

// Notifier tells an operator that a session has been scored.
type Notifier interface {
	SessionCompleted(ctx context.Context, s Summary) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) SessionCompleted(context.Context, Summary) error { return nil }

// sender is the subset of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts summaries to a single chat.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

// NewTelegramNotifier authenticates the bot token against the Telegram API.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) SessionCompleted(ctx context.Context, s Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, s.Text())
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message for %s: %w", s.Code, err)
	}
	return nil
}
