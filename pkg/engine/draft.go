package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/observability"
	"github.com/storyloom/storyloom/pkg/storage"
)

// createPendingDraft parks generation output in a new pending draft,
// superseding any prior pending draft for the same (target, content kind)
// pair. The supersede-and-create sequence runs under the store's advisory
// lock, which is what keeps the single-pending invariant under concurrent
// submitters.
func (e *Engine) createPendingDraft(ctx context.Context, g *api.Generation, payloads []api.Variant, rev *revision) (*api.Draft, error) {
	contentKind := api.ContentKind(g.TaskKind)
	key := storage.LockKey(g.TargetID, contentKind)

	var d *api.Draft
	err := e.store.WithLock(ctx, key, func(ctx context.Context) error {
		prev, err := e.store.FindPendingDraft(ctx, g.TargetID, contentKind)
		if err == nil {
			if terr := api.ValidateDraftTransition(prev.Status, api.DraftStatusSuperseded); terr != nil {
				return terr
			}
			prev.Status = api.DraftStatusSuperseded
			prev.UpdatedAt = time.Now().Unix()
			if err := e.store.UpdateDraft(ctx, prev); err != nil {
				return fmt.Errorf("superseding draft %s: %w", prev.ID, err)
			}
			observability.DraftTransitionsTotal.WithLabelValues("pending", "superseded").Inc()
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("finding pending draft: %w", err)
		}

		now := time.Now().Unix()
		d = &api.Draft{
			ID:           api.NewDraftID(),
			TargetKind:   g.TargetKind,
			TargetID:     g.TargetID,
			ContentKind:  contentKind,
			Variants:     payloads,
			Status:       api.DraftStatusPending,
			GenerationID: g.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if rev != nil {
			d.CreatedFromDraftID = rev.fromDraftID
		}
		if err := e.store.PutDraft(ctx, d); err != nil {
			return fmt.Errorf("creating draft: %w", err)
		}
		observability.DraftTransitionsTotal.WithLabelValues("", "pending").Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SelectDraft records a variant choice and applies it to the target
// entity. For list kinds the children are materialized in one atomic
// batch; a failed apply leaves the target untouched and moves the draft
// to rejected with the failure attached. The pending-to-selected
// transition runs under the store's advisory lock, so overlapping selects
// for the same target see each other's writes and at most one caller
// reaches the apply step.
func (e *Engine) SelectDraft(ctx context.Context, draftID string, variant int) (*api.ContentEntity, error) {
	d, err := e.getDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if variant < 0 || variant >= len(d.Variants) {
		return nil, api.NewInvalidRequestError("variant_index",
			fmt.Sprintf("variant index %d out of range [0, %d)", variant, len(d.Variants)))
	}

	key := storage.LockKey(d.TargetID, d.ContentKind)
	err = e.store.WithLock(ctx, key, func(ctx context.Context) error {
		// Re-read under the lock: the status may have moved since the
		// unlocked read above.
		d, err = e.getDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if terr := api.ValidateDraftTransition(d.Status, api.DraftStatusSelected); terr != nil {
			return terr
		}
		from := d.Status
		d.Status = api.DraftStatusSelected
		d.SelectedVariant = &variant
		d.UpdatedAt = time.Now().Unix()
		if err := e.store.UpdateDraft(ctx, d); err != nil {
			return fmt.Errorf("selecting draft: %w", err)
		}
		observability.DraftTransitionsTotal.WithLabelValues(string(from), "selected").Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	ent, err := e.applyPayload(ctx, api.TaskKind(d.ContentKind),
		api.Ref{Kind: d.TargetKind, ID: d.TargetID}, d.Variants[variant])
	if err != nil {
		d.Status = api.DraftStatusRejected
		d.Error = err.Error()
		d.UpdatedAt = time.Now().Unix()
		if uerr := e.store.UpdateDraft(ctx, d); uerr != nil {
			e.logger.Error("recording draft rejection", "draft", d.ID, "error", uerr)
		}
		observability.DraftTransitionsTotal.WithLabelValues("selected", "rejected").Inc()
		return nil, err
	}

	d.Status = api.DraftStatusApplied
	d.UpdatedAt = time.Now().Unix()
	if err := e.store.UpdateDraft(ctx, d); err != nil {
		return nil, fmt.Errorf("recording draft apply: %w", err)
	}
	observability.DraftTransitionsTotal.WithLabelValues("selected", "applied").Inc()
	return ent, nil
}

// RejectDraft declines every variant. The draft is retained for audit.
func (e *Engine) RejectDraft(ctx context.Context, draftID string) error {
	d, err := e.getDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if terr := api.ValidateDraftTransition(d.Status, api.DraftStatusRejected); terr != nil {
		return terr
	}
	from := d.Status
	d.Status = api.DraftStatusRejected
	d.UpdatedAt = time.Now().Unix()
	if err := e.store.UpdateDraft(ctx, d); err != nil {
		return fmt.Errorf("rejecting draft: %w", err)
	}
	observability.DraftTransitionsTotal.WithLabelValues(string(from), "rejected").Inc()
	return nil
}

// ReviseDraft attaches feedback to a draft and spawns a follow-up
// generation whose context carries the feedback and the prior variant.
// The successor draft links back through CreatedFromDraftID.
func (e *Engine) ReviseDraft(ctx context.Context, draftID, feedback string) (string, error) {
	if feedback == "" {
		return "", api.NewInvalidRequestError("feedback", "feedback is required")
	}
	d, err := e.getDraft(ctx, draftID)
	if err != nil {
		return "", err
	}
	if terr := api.ValidateDraftTransition(d.Status, api.DraftStatusRevised); terr != nil {
		return "", terr
	}

	// The prior variant shown to the follow-up generation is the selected
	// one when a choice was made, otherwise the first.
	prevIdx := 0
	if d.SelectedVariant != nil {
		prevIdx = *d.SelectedVariant
	}

	from := d.Status
	d.Status = api.DraftStatusRevised
	d.Feedback = feedback
	d.UpdatedAt = time.Now().Unix()
	if err := e.store.UpdateDraft(ctx, d); err != nil {
		return "", fmt.Errorf("revising draft: %w", err)
	}
	observability.DraftTransitionsTotal.WithLabelValues(string(from), "revised").Inc()

	// Reuse the originating chain's model when it is still on record.
	model := ""
	if d.GenerationID != "" {
		if g, err := e.store.GetGeneration(ctx, d.GenerationID); err == nil {
			model = g.Model
		}
	}

	return e.submit(ctx, SubmitRequest{
		Task:   api.TaskKind(d.ContentKind),
		Target: api.Ref{Kind: d.TargetKind, ID: d.TargetID},
		Model:  model,
	}, &revision{
		feedback:    feedback,
		prevVariant: d.Variants[prevIdx],
		fromDraftID: d.ID,
	})
}

// GetDraft returns one draft by ID.
func (e *Engine) GetDraft(ctx context.Context, id string) (*api.Draft, error) {
	return e.getDraft(ctx, id)
}

func (e *Engine) getDraft(ctx context.Context, id string) (*api.Draft, error) {
	d, err := e.store.GetDraft(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError(fmt.Sprintf("draft %s not found", id))
		}
		return nil, err
	}
	return d, nil
}
