package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Hermes      HermesConfig      `yaml:"hermes"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Assessments AssessmentsConfig `yaml:"assessments"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Finalizer   FinalizerConfig   `yaml:"finalizer"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port                     int    `yaml:"port"`
	MetricsPort              int    `yaml:"metrics_port"`
	AdminToken               string `yaml:"admin_token"`
	RequestsPerMinute        int    `yaml:"requests_per_minute"`
	SessionRequestsPerMinute int    `yaml:"session_requests_per_minute"`
	ShutdownTimeoutMs        int    `yaml:"shutdown_timeout_ms"`
}

// DatabaseConfig selects the session store. An empty URL keeps sessions in
// memory.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type HermesConfig struct {
	URL            string `yaml:"url"`
	Stream         string `yaml:"stream"`
	RetentionHours int    `yaml:"retention_hours"`
}

// ArchiveConfig points at an S3-compatible bucket. An empty endpoint
// disables archiving.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type AssessmentsConfig struct {
	Dir           string `yaml:"dir"`
	CacheSize     int    `yaml:"cache_size"`
	Default       string `yaml:"default"`
	DefaultFormat string `yaml:"default_format"`
}

type ScoringConfig struct {
	RankWeights        []float64         `yaml:"rank_weights"`
	Alpha              float64           `yaml:"alpha"`
	Midpoint           float64           `yaml:"midpoint"`
	CoherenceThreshold float64           `yaml:"coherence_threshold"`
	CoherenceBands     []assessment.Band `yaml:"coherence_bands"`
	DesirabilityBands  []assessment.Band `yaml:"desirability_bands"`
	SignificanceBands  []assessment.Band `yaml:"significance_bands"`
	ShortlistSize      int               `yaml:"shortlist_size"`
	HighlightCount     int               `yaml:"highlight_count"`
}

type FinalizerConfig struct {
	Enabled      bool `yaml:"enabled"`
	IntervalMs   int  `yaml:"interval_ms"`
	BatchSize    int  `yaml:"batch_size"`
	MaxBackoffMs int  `yaml:"max_backoff_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) FinalizerInterval() time.Duration {
	return time.Duration(c.Finalizer.IntervalMs) * time.Millisecond
}

func (c *Config) FinalizerMaxBackoff() time.Duration {
	return time.Duration(c.Finalizer.MaxBackoffMs) * time.Millisecond
}

func (c *Config) HermesRetention() time.Duration {
	return time.Duration(c.Hermes.RetentionHours) * time.Hour
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}

// EngineConfig converts the scoring section into engine parameters.
func (c *Config) EngineConfig() scoring.EngineConfig {
	ec := scoring.DefaultEngineConfig()
	s := c.Scoring
	ec.RankWeights = scoring.RankWeights(append([]float64(nil), s.RankWeights...))
	ec.Alpha = s.Alpha
	ec.Midpoint = s.Midpoint
	ec.CoherenceThreshold = s.CoherenceThreshold
	ec.CoherenceBands = s.CoherenceBands
	ec.DesirabilityBands = s.DesirabilityBands
	ec.SignificanceBands = s.SignificanceBands
	ec.ShortlistSize = s.ShortlistSize
	ec.HighlightCount = s.HighlightCount
	return ec
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.MetricsPort <= 0 {
		return fmt.Errorf("server ports must be positive")
	}
	if c.Server.Port == c.Server.MetricsPort {
		return fmt.Errorf("api and metrics ports must differ, both are %d", c.Server.Port)
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when a token is set")
	}
	if c.Finalizer.Enabled && c.Finalizer.IntervalMs <= 0 {
		return fmt.Errorf("finalizer interval must be positive")
	}
	if c.Finalizer.MaxBackoffMs < 0 {
		return fmt.Errorf("finalizer max backoff must not be negative")
	}
	if c.Hermes.RetentionHours < 0 {
		return fmt.Errorf("hermes retention must not be negative")
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and PROFILE_* environment variables, in that order of
// precedence (last wins). With no envFiles, ./.env is read when present.
func Load(path string, envFiles ...string) (*Config, error) {
	engine := scoring.DefaultEngineConfig()
	cfg := &Config{
		Server: ServerConfig{
			Port:                     8700,
			MetricsPort:              8701,
			RequestsPerMinute:        120,
			SessionRequestsPerMinute: 60,
			ShutdownTimeoutMs:        10000,
		},
		Database: DatabaseConfig{
			MaxConns: 10,
		},
		Hermes: HermesConfig{
			URL:            "nats://localhost:4222",
			Stream:         "PROFILE_EVENTS",
			RetentionHours: 2160,
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Bucket: "profile-results",
		},
		Assessments: AssessmentsConfig{
			CacheSize:     32,
			Default:       "dsi",
			DefaultFormat: "standard",
		},
		Scoring: ScoringConfig{
			RankWeights:        engine.RankWeights,
			Alpha:              engine.Alpha,
			Midpoint:           engine.Midpoint,
			CoherenceThreshold: engine.CoherenceThreshold,
			CoherenceBands:     engine.CoherenceBands,
			DesirabilityBands:  engine.DesirabilityBands,
			SignificanceBands:  engine.SignificanceBands,
			ShortlistSize:      engine.ShortlistSize,
			HighlightCount:     engine.HighlightCount,
		},
		Finalizer: FinalizerConfig{
			Enabled:    true,
			IntervalMs:   10000,
			BatchSize:    50,
			MaxBackoffMs: 300000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setInt("PROFILE_PORT", &cfg.Server.Port)
	setInt("PROFILE_METRICS_PORT", &cfg.Server.MetricsPort)
	setString("PROFILE_ADMIN_TOKEN", &cfg.Server.AdminToken)
	setInt("PROFILE_REQUESTS_PER_MINUTE", &cfg.Server.RequestsPerMinute)

	setString("PROFILE_DATABASE_URL", &cfg.Database.URL)
	if v := os.Getenv("PROFILE_DATABASE_MAX_CONNS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.Database.MaxConns = int32(n)
		}
	}
	setString("PROFILE_HERMES_URL", &cfg.Hermes.URL)
	setString("PROFILE_HERMES_STREAM", &cfg.Hermes.Stream)
	setInt("PROFILE_HERMES_RETENTION_HOURS", &cfg.Hermes.RetentionHours)

	setString("PROFILE_S3_ENDPOINT", &cfg.Archive.Endpoint)
	setString("PROFILE_S3_REGION", &cfg.Archive.Region)
	setString("PROFILE_S3_ACCESS_KEY", &cfg.Archive.AccessKey)
	setString("PROFILE_S3_SECRET_KEY", &cfg.Archive.SecretKey)
	setString("PROFILE_S3_BUCKET", &cfg.Archive.Bucket)
	setBool("PROFILE_S3_USE_SSL", &cfg.Archive.UseSSL)

	setString("PROFILE_TELEGRAM_TOKEN", &cfg.Telegram.Token)
	if v := os.Getenv("PROFILE_TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = n
		}
	}

	setString("PROFILE_ASSESSMENTS_DIR", &cfg.Assessments.Dir)
	setString("PROFILE_DEFAULT_ASSESSMENT", &cfg.Assessments.Default)
	setString("PROFILE_DEFAULT_FORMAT", &cfg.Assessments.DefaultFormat)

	if v := os.Getenv("PROFILE_SCORING_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.Alpha = f
		}
	}
	if v := os.Getenv("PROFILE_SCORING_RANK_WEIGHTS"); v != "" {
		if w, err := parseFloats(v); err == nil {
			cfg.Scoring.RankWeights = w
		}
	}

	setBool("PROFILE_FINALIZER_ENABLED", &cfg.Finalizer.Enabled)
	setInt("PROFILE_FINALIZER_INTERVAL_MS", &cfg.Finalizer.IntervalMs)
	setInt("PROFILE_FINALIZER_MAX_BACKOFF_MS", &cfg.Finalizer.MaxBackoffMs)

	setString("PROFILE_LOG_LEVEL", &cfg.Logging.Level)
	setString("PROFILE_LOG_FORMAT", &cfg.Logging.Format)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// parseFloats reads a comma-separated list such as "1,0.5,0.15,0".
func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// NewLogger builds the process logger: JSON on stdout unless format is
// "text".
func NewLogger(c LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
