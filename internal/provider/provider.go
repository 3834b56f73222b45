// Package provider implements pluggable scene-graph generators backed by
// remote text-generation services. The evaluator never sees providers;
// it only consumes their JSON output.
package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sgannotator/sg-annotator/internal/config"
	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// Generator produces a temporal scene graph from a text description.
type Generator interface {
	// Name identifies the provider.
	Name() string

	// Generate produces frames for one input text.
	Generate(ctx context.Context, text string) ([]scenegraph.Frame, error)
}

// GenerationResult is the outcome for one input text.
type GenerationResult struct {
	InputText  string              `json:"input_text"`
	Frames     []scenegraph.Frame  `json:"scenegraph,omitempty"`
	Err        string              `json:"error,omitempty"`
	Provider   string              `json:"provider"`
	RetryCount int                 `json:"retry_count"`
	Elapsed    time.Duration       `json:"-"`
}

// Success reports whether generation produced frames.
func (r GenerationResult) Success() bool {
	return r.Err == ""
}

// Runner drives a Generator over batches of texts with retry, pacing,
// and bounded concurrency.
type Runner struct {
	gen        Generator
	limiter    *rate.Limiter
	maxRetries int
	maxWorkers int
	log        *logger.Logger
}

// NewRunner creates a batch runner for the generator.
func NewRunner(gen Generator, cfg config.ProviderConfig, log *logger.Logger) *Runner {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		gen:        gen,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: cfg.MaxRetries,
		maxWorkers: workers,
		log:        log,
	}
}

// GenerateOne runs one text through the generator with retry and
// exponential backoff. Failures are captured in the result, not
// returned, so a batch never aborts on a single bad text.
func (r *Runner) GenerateOne(ctx context.Context, text string) GenerationResult {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.log.Info("retrying generation", "attempt", attempt, "max", r.maxRetries)
			backoff := time.Duration(1<<(attempt-1)) * 2 * time.Second
			select {
			case <-ctx.Done():
				return r.failure(text, attempt, ctx.Err(), start)
			case <-time.After(backoff):
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return r.failure(text, attempt, err, start)
		}

		frames, err := r.gen.Generate(ctx, text)
		if err == nil {
			return GenerationResult{
				InputText:  text,
				Frames:     frames,
				Provider:   r.gen.Name(),
				RetryCount: attempt,
				Elapsed:    time.Since(start),
			}
		}

		lastErr = err
		r.log.WithError(err).Warn("generation attempt failed", "attempt", attempt+1)
	}

	return r.failure(text, r.maxRetries,
		fmt.Errorf("failed after %d attempts: %w", r.maxRetries+1, lastErr), start)
}

// GenerateBatch runs all texts through the generator with bounded
// concurrency, preserving input order in the results.
func (r *Runner) GenerateBatch(ctx context.Context, texts []string) []GenerationResult {
	results := make([]GenerationResult, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxWorkers)

	for i, text := range texts {
		g.Go(func() error {
			results[i] = r.GenerateOne(gctx, text)
			return nil
		})
	}

	_ = g.Wait() // workers never return errors; failures live in results
	return results
}

func (r *Runner) failure(text string, attempt int, err error, start time.Time) GenerationResult {
	return GenerationResult{
		InputText:  text,
		Err:        err.Error(),
		Provider:   r.gen.Name(),
		RetryCount: attempt,
		Elapsed:    time.Since(start),
	}
}

// New creates a Generator based on the configuration.
func New(cfg config.ProviderConfig, log *logger.Logger) (Generator, error) {
	switch cfg.Type {
	case "ollama", "":
		return NewOllama(cfg, log), nil
	case "deepseek":
		if cfg.DeepseekAPIKey == "" {
			return nil, apperrors.ValidationError("deepseek provider requires an API key")
		}
		return NewDeepseek(cfg, log), nil
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown provider type: %s", cfg.Type))
	}
}
