package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/observability"
)

// SubmitRequest describes one generation submission. Mode is an optional
// override; when empty, the mode is decided from resolved instructions.
// Model is the explicit model parameter; when empty, the engine's default
// model applies.
type SubmitRequest struct {
	Task   api.TaskKind
	Target api.Ref
	Mode   api.GenerationMode
	Model  string
}

// revision carries the extra inputs of a revision generation.
type revision struct {
	feedback    string
	prevVariant json.RawMessage
	fromDraftID string
}

// SubmitGeneration creates a queued generation and runs it asynchronously
// under the worker pool. The returned ID can be polled via
// GetGenerationStatus and cancelled via CancelGeneration.
func (e *Engine) SubmitGeneration(ctx context.Context, req SubmitRequest) (string, error) {
	return e.submit(ctx, req, nil)
}

func (e *Engine) submit(ctx context.Context, req SubmitRequest, rev *revision) (string, error) {
	if !api.ValidTaskKind(req.Task) {
		return "", api.NewInvalidRequestError("task_kind", fmt.Sprintf("unknown task kind %q", req.Task))
	}
	spec, _ := specFor(req.Task)
	if req.Target.Kind != spec.Target {
		return "", api.NewInvalidRequestError("target_kind",
			fmt.Sprintf("task %s targets a %s, not a %s", req.Task, spec.Target, req.Target.Kind))
	}
	if req.Mode != "" && req.Mode != api.ModeDirect && req.Mode != api.ModeReview {
		return "", api.NewInvalidRequestError("mode", fmt.Sprintf("unknown mode %q", req.Mode))
	}

	model := req.Model
	if model == "" {
		model = e.cfg.DefaultModel
	}
	if model == "" {
		return "", api.NewInvalidRequestError("model", "model is required")
	}

	// Fail fast on a missing target before accepting the job.
	if _, err := e.GetEntity(ctx, req.Target); err != nil {
		return "", err
	}

	g := &api.Generation{
		ID:         api.NewGenerationID(),
		TaskKind:   req.Task,
		TargetKind: req.Target.Kind,
		TargetID:   req.Target.ID,
		Model:      model,
		Status:     api.GenerationStatusQueued,
		CreatedAt:  time.Now().Unix(),
	}
	if err := e.store.PutGeneration(ctx, g); err != nil {
		return "", fmt.Errorf("recording generation: %w", err)
	}

	// Register before the goroutine starts so a cancel issued right after
	// submission always finds the entry.
	genCtx, cancel := context.WithCancel(e.baseCtx)
	e.inflight.Register(g.ID, cancel)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inflight.Remove(g.ID)
		defer cancel()
		e.run(genCtx, g, req.Mode, rev)
	}()

	return g.ID, nil
}

// SubmitChildren fans out one independent generation per child of the
// parent entity. Children run concurrently under the bounded pool and are
// causally independent: one failing does not affect the others.
func (e *Engine) SubmitChildren(ctx context.Context, task api.TaskKind, parent api.Ref, model string) ([]string, error) {
	if !api.ValidTaskKind(task) {
		return nil, api.NewInvalidRequestError("task_kind", fmt.Sprintf("unknown task kind %q", task))
	}
	spec, _ := specFor(task)
	wantParent, ok := api.ParentKind(spec.Target)
	if !ok || parent.Kind != wantParent {
		return nil, api.NewInvalidRequestError("parent_kind",
			fmt.Sprintf("task %s fans out over children of a %s", task, wantParent))
	}
	if _, err := e.GetEntity(ctx, parent); err != nil {
		return nil, err
	}

	children, err := e.store.ListChildren(ctx, parent.ID, spec.Target)
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parent.ID, err)
	}

	ids := make([]string, 0, len(children))
	for _, child := range children {
		id, err := e.submit(ctx, SubmitRequest{
			Task:   task,
			Target: child.Ref(),
			Model:  model,
		}, nil)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CancelGeneration cancels an in-flight generation. The executing provider
// call is not force-aborted; its result is discarded at the next retry
// boundary and the record lands in cancelled.
func (e *Engine) CancelGeneration(ctx context.Context, id string) error {
	g, err := e.GetGenerationStatus(ctx, id)
	if err != nil {
		return err
	}
	if g.Status.Terminal() {
		return api.NewConflictError(fmt.Sprintf("generation %s is already %s", id, g.Status))
	}
	if !e.inflight.Cancel(id) {
		// The worker finished between the read above and now.
		return api.NewConflictError(fmt.Sprintf("generation %s is no longer in flight", id))
	}
	return nil
}

// run executes one generation end to end: acquire a worker slot, assemble
// the frozen context, decide the mode, execute the attempt-chain, then
// apply directly or park a pending draft.
func (e *Engine) run(ctx context.Context, g *api.Generation, modeOverride api.GenerationMode, rev *revision) {
	start := time.Now()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.markCancelled(g)
		return
	}
	defer e.sem.Release(1)

	observability.ActiveGenerations.Inc()
	defer observability.ActiveGenerations.Dec()

	// queued -> running before any store reads beyond the record itself.
	if err := e.markRunning(ctx, g); err != nil {
		e.logger.Error("starting generation", "generation", g.ID, "error", err)
		return
	}

	gctx, err := e.assembler.Assemble(ctx, api.Ref{Kind: g.TargetKind, ID: g.TargetID}, g.TaskKind)
	if err != nil {
		e.executor.finishFailed(context.Background(), g, err)
		return
	}
	if rev != nil {
		gctx.Feedback = rev.feedback
		gctx.PreviousVariant = rev.prevVariant
	}

	mode := modeOverride
	if mode == "" {
		mode = Decide(gctx.Instructions)
	}
	g.Mode = mode

	spec, _ := specFor(g.TaskKind)
	res, err := e.executor.Execute(ctx, g, gctx, spec.Schema)
	if err != nil {
		return // record already updated by the executor
	}

	// A cancel that raced the final attempt discards the result.
	if ctx.Err() != nil {
		e.markCancelled(g)
		return
	}

	// Post-execution writes use a background context: the chain's work is
	// done and a late cancel must not leave a half-recorded outcome.
	finishCtx := context.Background()

	if mode == api.ModeDirect {
		if _, err := e.applyPayload(finishCtx, g.TaskKind,
			api.Ref{Kind: g.TargetKind, ID: g.TargetID}, res.Payloads[0]); err != nil {
			e.executor.finishFailed(finishCtx, g, err)
			return
		}
	} else {
		d, err := e.createPendingDraft(finishCtx, g, res.Payloads, rev)
		if err != nil {
			e.executor.finishFailed(finishCtx, g, err)
			return
		}
		g.DraftID = d.ID
	}

	g.Status = api.GenerationStatusCompleted
	g.FinishedAt = time.Now().Unix()
	if err := e.store.UpdateGeneration(finishCtx, g); err != nil {
		e.logger.Error("recording generation completion", "generation", g.ID, "error", err)
		return
	}

	observability.GenerationsTotal.WithLabelValues(string(g.TaskKind), "completed").Inc()
	observability.GenerationDuration.WithLabelValues(string(g.TaskKind)).Observe(time.Since(start).Seconds())
	e.logger.Info("generation completed",
		"generation", g.ID, "task", g.TaskKind, "target", g.TargetID,
		"mode", g.Mode, "attempts", g.AttemptCount)
}

// markRunning transitions a queued generation to running.
func (e *Engine) markRunning(ctx context.Context, g *api.Generation) error {
	if err := api.ValidateGenerationTransition(g.Status, api.GenerationStatusRunning); err != nil {
		return err
	}
	g.Status = api.GenerationStatusRunning
	g.StartedAt = time.Now().Unix()
	return e.store.UpdateGeneration(ctx, g)
}

// markCancelled records a cancellation outcome on a background context.
func (e *Engine) markCancelled(g *api.Generation) {
	if g.Status.Terminal() {
		return
	}
	g.Status = api.GenerationStatusCancelled
	g.FinishedAt = time.Now().Unix()
	if err := e.store.UpdateGeneration(context.Background(), g); err != nil {
		e.logger.Error("recording generation cancellation", "generation", g.ID, "error", err)
	}
	observability.GenerationsTotal.WithLabelValues(string(g.TaskKind), "cancelled").Inc()
}
