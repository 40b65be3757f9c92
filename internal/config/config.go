// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrModelAPIKeyRequired is returned when MODEL_API_KEY is not set and
	// the selected model identifier needs one.
	ErrModelAPIKeyRequired = errors.New("config: MODEL_API_KEY is required")
	// ErrModelEndpointRequired is returned when MODEL_ENDPOINT_ID is not
	// set and the selected model identifier needs one.
	ErrModelEndpointRequired = errors.New("config: MODEL_ENDPOINT_ID is required")
)

// Config holds all configuration for the pipeline. Field names track the
// spec's configuration keys; env tags are the upper-snake-case form of the
// same name.
type Config struct {
	// Server settings (ambient HTTP inspection surface)
	Port int `env:"PORT, default=8080" json:"port"`

	// Model Adapter settings
	ModelIdentifier string `env:"MODEL_IDENTIFIER, default=claude-subtitle-v1" json:"model_identifier"`
	ModelAPIKey     string `env:"MODEL_API_KEY" json:"-"` // Masked in JSON
	ModelEndpointID string `env:"MODEL_ENDPOINT_ID" json:"model_endpoint_id,omitempty"`

	// Object store settings (optional; empty selects the local-disk blob
	// adapter)
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Pipeline stage & scheduler settings (spec §6)
	ChunkDurationS           float64 `env:"CHUNK_DURATION_S, default=60" json:"chunk_duration_s"`
	MaxAttempts              int     `env:"MAX_ATTEMPTS, default=3" json:"max_attempts"`
	MaxConcurrentJobs        int64   `env:"MAX_CONCURRENT_JOBS, default=3" json:"max_concurrent_jobs"`
	MaxConcurrentUploads     int64   `env:"MAX_CONCURRENT_UPLOADS, default=3" json:"max_concurrent_uploads"`
	MaxConcurrentGenerations int64   `env:"MAX_CONCURRENT_GENERATIONS, default=4" json:"max_concurrent_generations"`
	QuotaCooldownS           int     `env:"QUOTA_COOLDOWN_S, default=60" json:"quota_cooldown_s"`

	// Media admission settings (spec §4.2)
	MaxVideoSizeBytes int64    `env:"MAX_VIDEO_SIZE_BYTES, default=10737418240" json:"max_video_size_bytes"` // 10GiB
	MaxDurationS      float64  `env:"MAX_DURATION_S, default=43200" json:"max_duration_s"`                   // 12h
	AdmittedCodecs    []string `env:"ADMITTED_CODECS, delimiter=," json:"admitted_codecs,omitempty"`

	// Quality Gate settings (spec §4.8)
	MinCoverage           float64 `env:"MIN_COVERAGE, default=0.6" json:"min_coverage"`
	MaxDensityCPS         float64 `env:"MAX_DENSITY_CPS, default=25" json:"max_density_cps"`
	MaxCueDurationS       float64 `env:"MAX_CUE_DURATION_S, default=10" json:"max_cue_duration_s"`
	MinTranslationQuality float64 `env:"MIN_TRANSLATION_QUALITY, default=0.70" json:"min_translation_quality"`
	MinCulturalAccuracy   float64 `env:"MIN_CULTURAL_ACCURACY, default=0.80" json:"min_cultural_accuracy"`

	// Cleanup Reaper settings (spec §4.9)
	RetentionS       int64 `env:"RETENTION_S, default=86400" json:"retention_s"`
	DiskReserveBytes int64 `env:"DISK_RESERVE_BYTES, default=0" json:"disk_reserve_bytes"` // 0 selects dynamic sizing

	// Storage & registry directories
	TempDir                   string `env:"TEMP_DIR, default=/tmp/subtitlegen/scratch" json:"temp_dir"`
	OutputDir                 string `env:"OUTPUT_DIR, default=/tmp/subtitlegen/output" json:"output_dir"`
	JobStoreDir               string `env:"JOB_STORE_DIR, default=/tmp/subtitlegen/jobs" json:"job_store_dir"`
	PromptTemplateRegistryDir string `env:"PROMPT_TEMPLATE_REGISTRY_DIR, default=/etc/subtitlegen/prompts" json:"prompt_template_registry_dir"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided; otherwise the
// blob adapter falls back to a local-disk implementation.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RemoteModelEnabled returns true if a model endpoint ID is configured,
// selecting the HTTP-backed endpoint (RunPod-style submit/poll) rather than
// a direct Anthropic Messages call; Validate then also requires an API key.
func (c *Config) RemoteModelEnabled() bool {
	return c.ModelEndpointID != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Checks that depend on the selected backends are left to Validate.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present given the
// backends the rest of the config selects.
func (c *Config) Validate() error {
	if c.RemoteModelEnabled() {
		if c.ModelAPIKey == "" {
			return ErrModelAPIKeyRequired
		}
		if c.ModelEndpointID == "" {
			return ErrModelEndpointRequired
		}
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive
// values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ModelIdentifier: %s, ChunkDurationS: %.0f, MaxAttempts: %d, "+
			"MaxConcurrentJobs: %d, MaxConcurrentUploads: %d, MaxConcurrentGenerations: %d, "+
			"TempDir: %s, OutputDir: %s, JobStoreDir: %s, S3Bucket: %s, S3Region: %s, "+
			"LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ModelIdentifier,
		c.ChunkDurationS,
		c.MaxAttempts,
		c.MaxConcurrentJobs,
		c.MaxConcurrentUploads,
		c.MaxConcurrentGenerations,
		c.TempDir,
		c.OutputDir,
		c.JobStoreDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
