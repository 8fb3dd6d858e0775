package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

var ErrNotFound = errors.New("report not found")

// Archive keeps finalized reports, one object per session code.
type Archive interface {
	Put(ctx context.Context, report scoring.Report) (string, error)
	Get(ctx context.Context, code string) (scoring.Report, error)
}

// Key returns the object key of a session's report.
func Key(code string) string {
	return "results/" + strings.TrimSpace(code) + ".json"
}

// MemoryArchive stores encoded reports in memory.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

func (m *MemoryArchive) Put(_ context.Context, report scoring.Report) (string, error) {
	if strings.TrimSpace(report.Code) == "" {
		return "", fmt.Errorf("report code is required")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := Key(report.Code)
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryArchive) Get(_ context.Context, code string) (scoring.Report, error) {
	m.mu.RLock()
	data, ok := m.objects[Key(code)]
	m.mu.RUnlock()
	if !ok {
		return scoring.Report{}, ErrNotFound
	}
	var r scoring.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return scoring.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
