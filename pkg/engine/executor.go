package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/observability"
	"github.com/storyloom/storyloom/pkg/provider"
	"github.com/storyloom/storyloom/pkg/storage"
)

// ExecResult carries the validated output of one generation attempt-chain.
type ExecResult struct {
	Payloads []api.Variant
	Model    string
	Usage    provider.Usage
}

// Executor runs generation attempt-chains against the provider backend.
// The context snapshot is frozen for the whole chain; retries resend the
// same request. The executor updates the Generation record in place and
// never writes ContentEntities.
type Executor struct {
	gen    provider.Generator
	store  storage.Store
	cfg    Config
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(gen provider.Generator, store storage.Store, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{gen: gen, store: store, cfg: cfg, logger: logger}
}

// Execute runs the attempt-chain for g using the frozen context and schema.
// Transient capability errors and validation failures are retried up to
// the configured attempt limit with exponential backoff; permanent errors
// short-circuit. Cancellation is observed at the retry boundary and marks
// the generation cancelled rather than failed. On failure the last error
// is preserved on the record.
func (x *Executor) Execute(ctx context.Context, g *api.Generation, gctx *Context, schema api.OutputSchema) (*ExecResult, error) {
	if g.Status != api.GenerationStatusRunning {
		return nil, api.NewConflictError(
			fmt.Sprintf("generation %s is %s, expected running", g.ID, g.Status))
	}

	spec, ok := specFor(g.TaskKind)
	if !ok {
		return nil, x.finishFailed(ctx, g,
			api.NewInvalidRequestError("task_kind", fmt.Sprintf("unknown task kind %q", g.TaskKind)))
	}

	// The request is built once from the frozen context. Retries must not
	// observe store changes made after assembly.
	req := &provider.Request{
		Model:    g.Model,
		System:   spec.System,
		Input:    gctx.Render(),
		Schema:   &schema,
		Variants: x.cfg.variants(),
	}

	if apiErr := provider.ValidateCapabilities(x.gen.Capabilities(), req); apiErr != nil {
		return nil, x.finishFailed(ctx, g, apiErr)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = x.cfg.initialBackoff()
	bo.MaxInterval = x.cfg.maxBackoff()
	bo.Multiplier = 2
	// Jitterless for deterministic retry timing.
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(x.cfg.maxAttempts()-1)), ctx)

	var result *ExecResult
	attempt := func() error {
		g.AttemptCount++
		if err := x.store.UpdateGeneration(ctx, g); err != nil {
			x.logger.Warn("recording attempt count", "generation", g.ID, "error", err)
		}

		res, err := x.attempt(ctx, g, req)
		if err != nil {
			if api.IsTransient(err) {
				x.logger.Info("generation attempt failed, retrying",
					"generation", g.ID, "attempt", g.AttemptCount, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	err := backoff.Retry(attempt, policy)

	if ctx.Err() != nil {
		return nil, x.finishCancelled(g)
	}
	if err != nil {
		return nil, x.finishFailed(ctx, g, err)
	}

	observability.GenerationAttempts.Observe(float64(g.AttemptCount))
	return result, nil
}

// attempt performs a single provider call plus schema validation.
func (x *Executor) attempt(ctx context.Context, g *api.Generation, req *provider.Request) (*ExecResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, x.cfg.attemptTimeout())
	defer cancel()

	start := time.Now()
	res, err := x.gen.Generate(callCtx, req)
	duration := time.Since(start)
	provName := x.gen.Name()

	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(provName, req.Model, "error").Inc()
		observability.ProviderLatency.WithLabelValues(provName, req.Model).Observe(duration.Seconds())
		// The outer context decides cancellation; an expired attempt
		// timeout alone is transient.
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, api.NewCapabilityError("provider call exceeded the attempt timeout", true)
		}
		return nil, err
	}

	observability.ProviderRequestsTotal.WithLabelValues(provName, req.Model, "success").Inc()
	observability.ProviderLatency.WithLabelValues(provName, req.Model).Observe(duration.Seconds())
	observability.ProviderTokensTotal.WithLabelValues(provName, req.Model, "input").Add(float64(res.Usage.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(provName, req.Model, "output").Add(float64(res.Usage.OutputTokens))

	if len(res.Payloads) == 0 {
		return nil, api.NewCapabilityError("backend produced no output", true)
	}
	for _, payload := range res.Payloads {
		if err := req.Schema.Validate(payload); err != nil {
			return nil, err
		}
	}

	return &ExecResult{
		Payloads: res.Payloads,
		Model:    res.Model,
		Usage:    res.Usage,
	}, nil
}

// finishFailed marks the chain failed and preserves its last error.
func (x *Executor) finishFailed(ctx context.Context, g *api.Generation, cause error) error {
	g.Status = api.GenerationStatusFailed
	g.Error = cause.Error()
	g.FinishedAt = time.Now().Unix()
	if err := x.store.UpdateGeneration(ctx, g); err != nil {
		x.logger.Error("recording generation failure", "generation", g.ID, "error", err)
	}
	observability.GenerationsTotal.WithLabelValues(string(g.TaskKind), "failed").Inc()
	return cause
}

// finishCancelled marks the chain cancelled. The record update uses a
// background context since the chain's own context is already dead.
func (x *Executor) finishCancelled(g *api.Generation) error {
	g.Status = api.GenerationStatusCancelled
	g.FinishedAt = time.Now().Unix()
	if err := x.store.UpdateGeneration(context.Background(), g); err != nil {
		x.logger.Error("recording generation cancellation", "generation", g.ID, "error", err)
	}
	observability.GenerationsTotal.WithLabelValues(string(g.TaskKind), "cancelled").Inc()
	return api.NewCapabilityError("generation cancelled", false)
}
