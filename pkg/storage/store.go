package storage

import (
	"context"

	"github.com/storyloom/storyloom/pkg/api"
)

// Store is the document store consumed by the orchestration engine.
//
// Implementations must be safe for concurrent use. Reads return copies;
// callers never observe later mutations through a previously returned
// document, which is what makes context assembly an immutable snapshot.
type Store interface {
	// GetEntity retrieves a content entity by kind and ID. Returns
	// ErrNotFound for missing or soft-deleted entities.
	GetEntity(ctx context.Context, kind api.EntityKind, id string) (*api.ContentEntity, error)

	// PutEntity inserts a new entity. Returns ErrConflict if the ID exists.
	PutEntity(ctx context.Context, e *api.ContentEntity) error

	// UpdateEntity replaces an existing entity document.
	UpdateEntity(ctx context.Context, e *api.ContentEntity) error

	// PutEntities inserts a batch of entities atomically: either every
	// entity is written or none are.
	PutEntities(ctx context.Context, es []*api.ContentEntity) error

	// DeleteEntity soft-deletes an entity. The document remains for audit
	// but is invisible to GetEntity and ListChildren.
	DeleteEntity(ctx context.Context, kind api.EntityKind, id string) error

	// ListChildren returns the non-deleted children of a parent with the
	// given kind, ordered by position ascending.
	ListChildren(ctx context.Context, parentID string, kind api.EntityKind) ([]api.ContentEntity, error)

	// PutInstruction inserts a new instruction.
	PutInstruction(ctx context.Context, ins *api.Instruction) error

	// ListInstructions returns all instructions attached to one scope
	// node, active or not, ordered by creation time descending.
	ListInstructions(ctx context.Context, scopeKind api.EntityKind, scopeID string) ([]api.Instruction, error)

	// GetDraft retrieves a draft by ID.
	GetDraft(ctx context.Context, id string) (*api.Draft, error)

	// PutDraft inserts a new draft. Returns ErrConflict if the ID exists.
	PutDraft(ctx context.Context, d *api.Draft) error

	// UpdateDraft replaces an existing draft document.
	UpdateDraft(ctx context.Context, d *api.Draft) error

	// ListDrafts returns all drafts for a target, newest first.
	ListDrafts(ctx context.Context, targetKind api.EntityKind, targetID string) ([]api.Draft, error)

	// FindPendingDraft returns the pending draft for (targetID,
	// contentKind), or ErrNotFound when none is live.
	FindPendingDraft(ctx context.Context, targetID string, contentKind api.ContentKind) (*api.Draft, error)

	// DeleteDraftsForTarget removes all drafts owned by a target entity.
	// Used when an entity's lineage is deleted.
	DeleteDraftsForTarget(ctx context.Context, targetID string) error

	// GetGeneration retrieves a generation record by ID.
	GetGeneration(ctx context.Context, id string) (*api.Generation, error)

	// PutGeneration inserts a new generation record.
	PutGeneration(ctx context.Context, g *api.Generation) error

	// UpdateGeneration replaces an existing generation record.
	UpdateGeneration(ctx context.Context, g *api.Generation) error

	// WithLock runs fn while holding an advisory lock on key. Two
	// concurrent calls with the same key serialize; different keys do not
	// block each other. The lock is released when fn returns.
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// LockKey builds the advisory lock key for a (target, content kind) pair.
// All supersede-and-create sequences for the same pair must use the same
// key, which is what enforces the single-writer rule.
func LockKey(targetID string, contentKind api.ContentKind) string {
	return targetID + "/" + string(contentKind)
}
