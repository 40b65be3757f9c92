// Package main provides the subtitlegen batch CLI: it drives one or more
// source videos through the pipeline scheduler and reports progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/maauso/subtitlegen/internal/bootstrap"
	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/config"
	"github.com/maauso/subtitlegen/internal/job"
)

// targetSpec is the validated, pre-conversion form of a --target flag value.
type targetSpec struct {
	Language string `validate:"required"`
	Mode     string
}

// jobRequest is the validated shape of one batch item before it becomes a
// job.Job, mirroring the way the teacher's server.Handlers validates
// CreateJobRequest before touching the domain.
type jobRequest struct {
	SourcePath string       `validate:"required"`
	Targets    []targetSpec `validate:"required,min=1,dive"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sources  = flag.StringArrayP("source", "s", nil, "source video path (repeatable)")
		targets  = flag.StringArrayP("target", "t", nil, "target language[:mode] applied to every source (repeatable)")
		keepTemp = flag.Bool("keep-temp", false, "skip cleanup of scratch/blob storage after each job")
		noColor  = flag.Bool("no-color", false, "disable colorized output")
		quiet    = flag.BoolP("quiet", "q", false, "suppress progress bars")
	)
	flag.Parse()

	if len(*sources) == 0 {
		return errors.New("at least one --source is required")
	}
	if len(*targets) == 0 {
		return errors.New("at least one --target is required")
	}

	colorEnabled := !*noColor && isatty.IsTerminal(os.Stdout.Fd())
	color.NoColor = !colorEnabled

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	parsedTargets, err := parseTargets(*targets)
	if err != nil {
		return err
	}

	v := validator.New()
	requests := make([]jobRequest, 0, len(*sources))
	for _, src := range *sources {
		req := jobRequest{SourcePath: src, Targets: parsedTargets}
		if err := v.Struct(req); err != nil {
			return fmt.Errorf("invalid job request for %q: %w", src, err)
		}
		requests = append(requests, req)
	}

	deps, err := bootstrap.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go deps.Reaper.Run(ctx)

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.NewOptions(len(requests),
			progressbar.OptionSetDescription("processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
		)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	for _, req := range requests {
		targetList := toJobTargets(req.Targets)
		j := job.New(clock.System{}, req.SourcePath, targetList)
		j.KeepTemp = *keepTemp

		if err := deps.Store.Create(j); err != nil {
			return fmt.Errorf("register job for %q: %w", req.SourcePath, err)
		}

		wg.Add(1)
		go func(j *job.Job) {
			defer wg.Done()
			runErr := deps.Scheduler.RunJob(ctx, j)

			mu.Lock()
			defer mu.Unlock()
			if bar != nil {
				_ = bar.Add(1)
			}
			reportJob(j, runErr)
			if runErr != nil || j.GetStage() != job.StageCompleted {
				failures++
			}
		}(j)
	}
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d jobs did not complete", failures, len(requests))
	}
	return nil
}

// parseTargets converts "language" or "language:mode" flag values into
// targetSpecs.
func parseTargets(raw []string) ([]targetSpec, error) {
	specs := make([]targetSpec, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 2)
		spec := targetSpec{Language: parts[0]}
		if len(parts) == 2 {
			spec.Mode = parts[1]
		}
		if spec.Language == "" {
			return nil, fmt.Errorf("invalid --target %q: language is required", r)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func toJobTargets(specs []targetSpec) []job.Target {
	out := make([]job.Target, len(specs))
	for i, s := range specs {
		out[i] = job.Target{Language: s.Language, Mode: s.Mode}
	}
	return out
}

// reportJob prints a colorized one-line status for a finished job.
func reportJob(j *job.Job, runErr error) {
	stage := j.GetStage()
	switch {
	case runErr != nil:
		color.Red("%s  %s: %v", j.SourcePath, stage, runErr)
	case stage == job.StageCompleted:
		color.Green("%s  %s", j.SourcePath, stage)
	default:
		color.Yellow("%s  %s", j.SourcePath, stage)
	}
}
