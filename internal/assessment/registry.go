package assessment

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var builtinFS embed.FS

// ErrUnknownAssessment is returned when no definition exists for a type.
var ErrUnknownAssessment = errors.New("unknown assessment type")

var validType = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Provider resolves assessment definitions by type.
type Provider interface {
	Resolve(assessmentType string) (*Definition, error)
	List() []Summary
}

// Parse decodes a YAML definition, rejecting unknown keys, and validates it.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Registry serves the embedded definitions and, optionally, YAML files from a
// directory. Directory definitions are parsed on first use and kept in an LRU.
type Registry struct {
	builtin map[string]*Definition
	dir     string
	cache   *lru.Cache[string, *Definition]
	logger  *slog.Logger
}

// NewRegistry loads and validates every built-in definition. dir may be empty.
func NewRegistry(dir string, cacheSize int, logger *slog.Logger) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New[string, *Definition](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating definition cache: %w", err)
	}

	r := &Registry{
		builtin: make(map[string]*Definition),
		dir:     dir,
		cache:   cache,
		logger:  logger,
	}

	entries, err := builtinFS.ReadDir("definitions")
	if err != nil {
		return nil, fmt.Errorf("reading built-in definitions: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := builtinFS.ReadFile("definitions/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		def, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("built-in %s: %w", entry.Name(), err)
		}
		r.builtin[def.ID] = def
	}
	return r, nil
}

// Resolve returns the definition for assessmentType. Built-ins shadow
// directory files of the same name.
func (r *Registry) Resolve(assessmentType string) (*Definition, error) {
	if def, ok := r.builtin[assessmentType]; ok {
		return def, nil
	}
	if r.dir == "" || !validType.MatchString(assessmentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAssessment, assessmentType)
	}
	if def, ok := r.cache.Get(assessmentType); ok {
		return def, nil
	}

	data, err := os.ReadFile(filepath.Join(r.dir, assessmentType+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAssessment, assessmentType)
	}
	if err != nil {
		return nil, fmt.Errorf("reading definition %q: %w", assessmentType, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("definition %q: %w", assessmentType, err)
	}
	if def.ID != assessmentType {
		return nil, fmt.Errorf("%w: file %s.yaml declares id %q", ErrInvalidDefinition, assessmentType, def.ID)
	}

	r.cache.Add(assessmentType, def)
	r.logger.Info("assessment definition loaded", "type", assessmentType, "dimensions", len(def.Dimensions))
	return def, nil
}

// List returns summaries of every resolvable definition, sorted by id.
// Directory files that fail validation are logged and skipped.
func (r *Registry) List() []Summary {
	ids := make(map[string]bool, len(r.builtin))
	for id := range r.builtin {
		ids[id] = true
	}
	if r.dir != "" {
		matches, err := filepath.Glob(filepath.Join(r.dir, "*.yaml"))
		if err != nil {
			r.logger.Warn("listing definitions directory", "dir", r.dir, "error", err)
		}
		for _, m := range matches {
			ids[strings.TrimSuffix(filepath.Base(m), ".yaml")] = true
		}
	}

	out := make([]Summary, 0, len(ids))
	for id := range ids {
		def, err := r.Resolve(id)
		if err != nil {
			r.logger.Warn("skipping assessment definition", "type", id, "error", err)
			continue
		}
		out = append(out, def.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
