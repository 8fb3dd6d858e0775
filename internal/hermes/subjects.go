package hermes

import "strings"

const (
	StreamName = "PROFILE_EVENTS"

	// SubjectSessionCompletedAll matches every session completion.
	SubjectSessionCompletedAll = "profile.session.*.completed"
)

// StreamSubjects are captured by the JetStream stream.
var StreamSubjects = []string{"profile.session.>", "profile.results.>"}

func SubjectSessionCreated(code string) string   { return "profile.session." + code + ".created" }
func SubjectSessionAnswered(code string) string  { return "profile.session." + code + ".answered" }
func SubjectSessionCompleted(code string) string { return "profile.session." + code + ".completed" }

func SubjectResultsComputed(code string) string { return "profile.results." + code + ".computed" }

// MessageID returns the deduplication id of subjects that are published once
// per session, and "" for the others.
func MessageID(subject string) string {
	if strings.HasPrefix(subject, "profile.results.") || strings.HasSuffix(subject, ".completed") {
		return subject
	}
	return ""
}
