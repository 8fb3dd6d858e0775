package hermes

import (
	"strings"
	"testing"
	"time"
)

func TestSubjectsInsideStream(t *testing.T) {
	subjects := []string{
		SubjectSessionCreated("AMA-7KQ2"),
		SubjectSessionAnswered("AMA-7KQ2"),
		SubjectSessionCompleted("AMA-7KQ2"),
		SubjectResultsComputed("AMA-7KQ2"),
	}
	for _, s := range subjects {
		covered := false
		for _, pattern := range StreamSubjects {
			if strings.HasPrefix(s, strings.TrimSuffix(pattern, ">")) {
				covered = true
			}
		}
		if !covered {
			t.Errorf("subject %s not captured by stream %v", s, StreamSubjects)
		}
	}
}

func TestSubjectFormat(t *testing.T) {
	if got := SubjectSessionCompleted("AMA-7KQ2"); got != "profile.session.AMA-7KQ2.completed" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := SubjectResultsComputed("AMA-7KQ2"); got != "profile.results.AMA-7KQ2.computed" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestNopClient(t *testing.T) {
	var c Client = Nop{}
	if err := c.Publish("x", map[string]string{"a": "b"}); err != nil {
		t.Errorf("nop publish: %v", err)
	}
	if err := c.Subscribe("x", func(string, []byte) {}); err != nil {
		t.Errorf("nop subscribe: %v", err)
	}
	c.Close()
}

func TestMessageID(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{SubjectResultsComputed("AMA-7KQ2"), "profile.results.AMA-7KQ2.computed"},
		{SubjectSessionCompleted("AMA-7KQ2"), "profile.session.AMA-7KQ2.completed"},
		{SubjectSessionAnswered("AMA-7KQ2"), ""},
		{SubjectSessionCreated("AMA-7KQ2"), ""},
	}
	for _, tt := range tests {
		if got := MessageID(tt.subject); got != tt.want {
			t.Errorf("MessageID(%s) = %q, expected %q", tt.subject, got, tt.want)
		}
	}
}

func TestStreamConfigDefaults(t *testing.T) {
	cfg := Options{URL: "nats://localhost:4222"}.StreamConfig()
	if cfg.Name != StreamName {
		t.Errorf("stream name = %s, expected %s", cfg.Name, StreamName)
	}
	if cfg.MaxAge != DefaultRetention {
		t.Errorf("retention = %s, expected %s", cfg.MaxAge, DefaultRetention)
	}
	if len(cfg.Subjects) != len(StreamSubjects) {
		t.Errorf("subjects = %v, expected %v", cfg.Subjects, StreamSubjects)
	}
	if cfg.Duplicates <= 0 {
		t.Error("expected a duplicate window for results events")
	}
}

func TestStreamConfigOverrides(t *testing.T) {
	cfg := Options{Stream: "PROFILE_STAGING", Retention: 7 * 24 * time.Hour}.StreamConfig()
	if cfg.Name != "PROFILE_STAGING" {
		t.Errorf("stream name = %s", cfg.Name)
	}
	if cfg.MaxAge != 7*24*time.Hour {
		t.Errorf("retention = %s", cfg.MaxAge)
	}
}
