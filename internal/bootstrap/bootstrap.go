// Package bootstrap wires the pipeline's concrete adapters (blob storage,
// the model backend, the prompt registry, the job store) into a running
// Scheduler and Reaper pair.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	langchainanthropic "github.com/tmc/langchaingo/llms/anthropic"

	"github.com/maauso/subtitlegen/internal/blob"
	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/config"
	"github.com/maauso/subtitlegen/internal/jobstore"
	"github.com/maauso/subtitlegen/internal/modeladapter"
	"github.com/maauso/subtitlegen/internal/modeladapter/prompt"
	"github.com/maauso/subtitlegen/internal/probe"
	"github.com/maauso/subtitlegen/internal/quality"
	"github.com/maauso/subtitlegen/internal/reaper"
	"github.com/maauso/subtitlegen/internal/scheduler"
	"github.com/maauso/subtitlegen/internal/segmenter"
)

// Dependencies holds every wired component the CLI harness and the HTTP
// inspection surface share.
type Dependencies struct {
	Store     jobstore.Store
	Scheduler *scheduler.Scheduler
	Reaper    *reaper.Reaper
	Config    *config.Config
}

// New creates and wires all dependencies for the pipeline from cfg. The
// returned Reaper is constructed but not started; callers run it with
// Run(ctx) on their own goroutine once they're ready to begin sweeping.
func New(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}

	blobStore, err := initBlobStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := jobstore.NewFileStore(cfg.JobStoreDir, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create job store: %w", err)
	}
	logger.Info("job store initialized", slog.String("dir", cfg.JobStoreDir))

	prober := probe.NewFFprobeProber("")
	if ffPath, err := exec.LookPath("ffprobe"); err != nil {
		logger.Warn("ffprobe not found in PATH; admission probing may fail")
	} else {
		logger.Info("media prober initialized", slog.String("ffprobe_path", ffPath))
	}

	extractor := segmenter.NewFFmpegExtractor("")
	seg := segmenter.New(extractor, 0)

	templates, err := prompt.Load(cfg.PromptTemplateRegistryDir)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load prompt templates: %w", err)
	}
	logger.Info("prompt template registry loaded",
		slog.String("dir", cfg.PromptTemplateRegistryDir),
	)

	backend, err := initModelBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	model := modeladapter.New(backend, templates, cfg.ModelIdentifier, cfg.MaxAttempts)

	scorer := initScorer(cfg, logger)

	schedCfg := scheduler.DefaultConfig()
	schedCfg.ChunkDurationS = cfg.ChunkDurationS
	schedCfg.MaxAttempts = cfg.MaxAttempts
	schedCfg.MaxConcurrentJobs = cfg.MaxConcurrentJobs
	schedCfg.MaxConcurrentUploads = cfg.MaxConcurrentUploads
	schedCfg.MaxConcurrentGenerations = cfg.MaxConcurrentGenerations
	schedCfg.QuotaCooldown = time.Duration(cfg.QuotaCooldownS) * time.Second
	schedCfg.ScratchDir = cfg.TempDir
	schedCfg.OutputDir = cfg.OutputDir
	schedCfg.Quality = quality.Config{
		MinCoverage:         cfg.MinCoverage,
		MaxDensity:          cfg.MaxDensityCPS,
		MaxCueDuration:      time.Duration(cfg.MaxCueDurationS * float64(time.Second)),
		MinTranslationScore: cfg.MinTranslationQuality,
		MinCulturalScore:    cfg.MinCulturalAccuracy,
		MaxAttempts:         cfg.MaxAttempts,
	}

	limits := probe.DefaultLimits()
	limits.MaxSizeBytes = cfg.MaxVideoSizeBytes
	limits.MaxDurationSeconds = cfg.MaxDurationS
	limits.AdmittedCodecs = cfg.AdmittedCodecs

	reaperCfg := reaper.DefaultConfig()
	reaperCfg.Retention = time.Duration(cfg.RetentionS) * time.Second
	r := reaper.New(store, blobStore, cfg.TempDir, clock.System{}, logger, reaperCfg)

	sched := scheduler.New(
		store,
		prober,
		limits,
		seg,
		blobStore,
		model,
		scorer,
		clock.System{},
		logger,
		schedCfg,
		nil,
		r,
	)

	return &Dependencies{
		Store:     store,
		Scheduler: sched,
		Reaper:    r,
		Config:    cfg,
	}, nil
}

// initBlobStore creates the appropriate blob backend based on configuration.
func initBlobStore(cfg *config.Config, logger *slog.Logger) (blob.Adapter, error) {
	if cfg.S3Enabled() {
		s3Cfg := blob.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := blob.NewS3Adapter(s3Cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create S3 blob adapter: %w", err)
		}
		logger.Info("S3 blob storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := blob.NewLocalAdapter(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create local blob adapter: %w", err)
	}
	logger.Info("local blob storage configured", slog.String("base_dir", cfg.TempDir))
	return localStore, nil
}

// initModelBackend selects the HTTP (async submit/poll) or direct Anthropic
// Messages backend depending on whether a remote endpoint ID is configured.
func initModelBackend(cfg *config.Config, logger *slog.Logger) (modeladapter.Backend, error) {
	if cfg.RemoteModelEnabled() {
		backend, err := modeladapter.NewHTTPBackend(cfg.ModelEndpointID, modeladapter.WithAPIKey(cfg.ModelAPIKey))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create HTTP model backend: %w", err)
		}
		logger.Info("remote model backend initialized",
			slog.String("endpoint_id", cfg.ModelEndpointID),
			slog.Bool("api_key_set", cfg.ModelAPIKey != ""),
		)
		return backend, nil
	}

	logger.Info("direct Anthropic model backend initialized",
		slog.String("model", cfg.ModelIdentifier),
	)
	return modeladapter.NewAnthropicBackend(cfg.ModelAPIKey, anthropic.Model(cfg.ModelIdentifier)), nil
}

// initScorer builds the optional linguistic/cultural Scorer used when a
// job's source and target languages differ. A missing API key disables it;
// the gate then falls back to structural checks alone.
func initScorer(cfg *config.Config, logger *slog.Logger) quality.Scorer {
	if cfg.ModelAPIKey == "" {
		logger.Info("quality scorer disabled: no model API key configured")
		return nil
	}

	llm, err := langchainanthropic.New(
		langchainanthropic.WithToken(cfg.ModelAPIKey),
		langchainanthropic.WithModel(cfg.ModelIdentifier),
	)
	if err != nil {
		logger.Warn("quality scorer disabled: failed to construct LLM client",
			slog.String("error", err.Error()),
		)
		return nil
	}
	logger.Info("quality scorer initialized", slog.String("model", cfg.ModelIdentifier))
	return quality.NewLangchainScorer(llm)
}
