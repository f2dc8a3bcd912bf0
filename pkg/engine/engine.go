package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/provider"
	"github.com/storyloom/storyloom/pkg/storage"
	"github.com/storyloom/storyloom/pkg/transport"
)

// Engine is the orchestration façade exposed to transports. Generations
// run asynchronously under a bounded worker pool; drafts and generation
// records are readable at any time through the store.
type Engine struct {
	store  storage.Store
	gen    provider.Generator
	cfg    Config
	logger *slog.Logger

	resolver  *Resolver
	assembler *Assembler
	executor  *Executor

	sem      *semaphore.Weighted
	inflight *transport.InFlightRegistry

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an Engine. The store and generator must not be nil.
func New(store storage.Store, gen provider.Generator, cfg Config, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store must not be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("engine: generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	resolver := NewResolver(store)

	return &Engine{
		store:     store,
		gen:       gen,
		cfg:       cfg,
		logger:    logger,
		resolver:  resolver,
		assembler: NewAssembler(store, resolver, cfg.contextBudget()),
		executor:  NewExecutor(gen, store, cfg, logger),
		sem:       semaphore.NewWeighted(cfg.workers()),
		inflight:  transport.NewInFlightRegistry(),
		baseCtx:   baseCtx,
		cancel:    cancel,
	}, nil
}

// Close cancels all in-flight generations and waits for workers to drain.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

// GetGenerationStatus returns the generation record for id.
func (e *Engine) GetGenerationStatus(ctx context.Context, id string) (*api.Generation, error) {
	g, err := e.store.GetGeneration(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError(fmt.Sprintf("generation %s not found", id))
		}
		return nil, err
	}
	return g, nil
}

// ListDrafts returns all drafts for a target, newest first.
func (e *Engine) ListDrafts(ctx context.Context, target api.Ref) ([]api.Draft, error) {
	return e.store.ListDrafts(ctx, target.Kind, target.ID)
}

// GetEntity returns one content entity.
func (e *Engine) GetEntity(ctx context.Context, ref api.Ref) (*api.ContentEntity, error) {
	ent, err := e.store.GetEntity(ctx, ref.Kind, ref.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError(fmt.Sprintf("%s %s not found", ref.Kind, ref.ID))
		}
		return nil, err
	}
	return ent, nil
}

// PutEntity creates a content entity. Non-project kinds require an
// existing, non-deleted parent of the correct kind.
func (e *Engine) PutEntity(ctx context.Context, ent *api.ContentEntity) error {
	if !api.ValidEntityKind(ent.Kind) {
		return api.NewInvalidRequestError("kind", fmt.Sprintf("unknown entity kind %q", ent.Kind))
	}
	if parentKind, ok := api.ParentKind(ent.Kind); ok {
		if ent.ParentID == "" {
			return api.NewInvalidRequestError("parent_id",
				fmt.Sprintf("a %s requires a parent %s", ent.Kind, parentKind))
		}
		if _, err := e.GetEntity(ctx, api.Ref{Kind: parentKind, ID: ent.ParentID}); err != nil {
			return err
		}
	} else if ent.ParentID != "" {
		return api.NewInvalidRequestError("parent_id", "a project has no parent")
	}

	if ent.ID == "" {
		ent.ID = api.NewEntityID(ent.Kind)
	}
	now := time.Now().Unix()
	if ent.CreatedAt == 0 {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now

	if err := e.store.PutEntity(ctx, ent); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return api.NewConflictError(fmt.Sprintf("entity %s already exists", ent.ID))
		}
		return err
	}
	return nil
}

// DeleteEntity soft-deletes an entity and its descendants, and removes the
// drafts targeting any node of that lineage. Drafts elsewhere in the tree
// are untouched.
func (e *Engine) DeleteEntity(ctx context.Context, ref api.Ref) error {
	ent, err := e.GetEntity(ctx, ref)
	if err != nil {
		return err
	}
	return e.deleteLineage(ctx, ent)
}

func (e *Engine) deleteLineage(ctx context.Context, ent *api.ContentEntity) error {
	for _, childKind := range api.ChildKinds(ent.Kind) {
		children, err := e.store.ListChildren(ctx, ent.ID, childKind)
		if err != nil {
			return fmt.Errorf("listing %s children of %s: %w", childKind, ent.ID, err)
		}
		for i := range children {
			if err := e.deleteLineage(ctx, &children[i]); err != nil {
				return err
			}
		}
	}
	if err := e.store.DeleteDraftsForTarget(ctx, ent.ID); err != nil {
		return fmt.Errorf("deleting drafts for %s: %w", ent.ID, err)
	}
	if err := e.store.DeleteEntity(ctx, ent.Kind, ent.ID); err != nil {
		return fmt.Errorf("deleting %s: %w", ent.ID, err)
	}
	return nil
}

// ListChildren returns the non-deleted children of an entity of one kind,
// in position order.
func (e *Engine) ListChildren(ctx context.Context, parent api.Ref, kind api.EntityKind) ([]api.ContentEntity, error) {
	if !api.ValidEntityKind(kind) {
		return nil, api.NewInvalidRequestError("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	if _, err := e.GetEntity(ctx, parent); err != nil {
		return nil, err
	}
	return e.store.ListChildren(ctx, parent.ID, kind)
}

// PutInstruction ingests a creative instruction. The mode directive is
// parsed from the text exactly once, here; mode decisions later read only
// the enumerated Directive field.
func (e *Engine) PutInstruction(ctx context.Context, ins *api.Instruction) error {
	if !api.ValidEntityKind(ins.ScopeKind) {
		return api.NewInvalidRequestError("scope_kind", fmt.Sprintf("unknown entity kind %q", ins.ScopeKind))
	}
	if ins.Text == "" {
		return api.NewInvalidRequestError("text", "instruction text is required")
	}
	if ins.Priority < 0 || ins.Priority > api.MaxPriority {
		return api.NewInvalidRequestError("priority",
			fmt.Sprintf("priority must be between 0 and %d", api.MaxPriority))
	}
	if ins.ContentKind == "" {
		ins.ContentKind = api.ContentKindAll
	}
	if ins.ContentKind != api.ContentKindAll && !api.ValidTaskKind(api.TaskKind(ins.ContentKind)) {
		return api.NewInvalidRequestError("content_kind", fmt.Sprintf("unknown content kind %q", ins.ContentKind))
	}
	if _, err := e.GetEntity(ctx, api.Ref{Kind: ins.ScopeKind, ID: ins.ScopeID}); err != nil {
		return err
	}

	ins.Directive = api.ParseDirective(ins.Text)
	return e.store.PutInstruction(ctx, ins)
}
