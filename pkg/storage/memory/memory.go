// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. Documents are lost when the
// process restarts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage"
)

// Store is an in-memory document store.
type Store struct {
	mu           sync.RWMutex
	entities     map[string]*api.ContentEntity // keyed by ID; kind checked on read
	instructions map[string]*api.Instruction
	drafts       map[string]*api.Draft
	generations  map[string]*api.Generation

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entities:     make(map[string]*api.ContentEntity),
		instructions: make(map[string]*api.Instruction),
		drafts:       make(map[string]*api.Draft),
		generations:  make(map[string]*api.Generation),
		locks:        make(map[string]*sync.Mutex),
	}
}

// GetEntity retrieves a content entity by kind and ID.
func (s *Store) GetEntity(_ context.Context, kind api.EntityKind, id string) (*api.ContentEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok || e.Deleted || e.Kind != kind {
		return nil, storage.ErrNotFound
	}
	return cloneEntity(e), nil
}

// PutEntity inserts a new entity.
func (s *Store) PutEntity(_ context.Context, e *api.ContentEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.ID]; exists {
		return storage.ErrConflict
	}
	s.entities[e.ID] = cloneEntity(e)
	return nil
}

// UpdateEntity replaces an existing entity document.
func (s *Store) UpdateEntity(_ context.Context, e *api.ContentEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.ID]; !exists {
		return storage.ErrNotFound
	}
	s.entities[e.ID] = cloneEntity(e)
	return nil
}

// PutEntities inserts a batch of entities atomically.
func (s *Store) PutEntities(_ context.Context, es []*api.ContentEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check first, write second, so a conflict leaves nothing behind.
	for _, e := range es {
		if _, exists := s.entities[e.ID]; exists {
			return storage.ErrConflict
		}
	}
	for _, e := range es {
		s.entities[e.ID] = cloneEntity(e)
	}
	return nil
}

// DeleteEntity soft-deletes an entity.
func (s *Store) DeleteEntity(_ context.Context, kind api.EntityKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok || e.Deleted || e.Kind != kind {
		return storage.ErrNotFound
	}
	e.Deleted = true
	return nil
}

// ListChildren returns non-deleted children ordered by position.
func (s *Store) ListChildren(_ context.Context, parentID string, kind api.EntityKind) ([]api.ContentEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.ContentEntity
	for _, e := range s.entities {
		if e.Deleted || e.ParentID != parentID || e.Kind != kind {
			continue
		}
		out = append(out, *cloneEntity(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// PutInstruction inserts a new instruction.
func (s *Store) PutInstruction(_ context.Context, ins *api.Instruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instructions[ins.ID]; exists {
		return storage.ErrConflict
	}
	cp := *ins
	s.instructions[ins.ID] = &cp
	return nil
}

// ListInstructions returns the instructions on one scope node, newest first.
func (s *Store) ListInstructions(_ context.Context, scopeKind api.EntityKind, scopeID string) ([]api.Instruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Instruction
	for _, ins := range s.instructions {
		if ins.ScopeKind == scopeKind && ins.ScopeID == scopeID {
			out = append(out, *ins)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// GetDraft retrieves a draft by ID.
func (s *Store) GetDraft(_ context.Context, id string) (*api.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneDraft(d), nil
}

// PutDraft inserts a new draft.
func (s *Store) PutDraft(_ context.Context, d *api.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drafts[d.ID]; exists {
		return storage.ErrConflict
	}
	s.drafts[d.ID] = cloneDraft(d)
	return nil
}

// UpdateDraft replaces an existing draft document.
func (s *Store) UpdateDraft(_ context.Context, d *api.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drafts[d.ID]; !exists {
		return storage.ErrNotFound
	}
	s.drafts[d.ID] = cloneDraft(d)
	return nil
}

// ListDrafts returns all drafts for a target, newest first.
func (s *Store) ListDrafts(_ context.Context, targetKind api.EntityKind, targetID string) ([]api.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Draft
	for _, d := range s.drafts {
		if d.TargetKind == targetKind && d.TargetID == targetID {
			out = append(out, *cloneDraft(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// FindPendingDraft returns the live pending draft for a target and
// content kind, if any.
func (s *Store) FindPendingDraft(_ context.Context, targetID string, contentKind api.ContentKind) (*api.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.drafts {
		if d.TargetID == targetID && d.ContentKind == contentKind && d.Status == api.DraftStatusPending {
			return cloneDraft(d), nil
		}
	}
	return nil, storage.ErrNotFound
}

// DeleteDraftsForTarget removes all drafts owned by a target entity.
func (s *Store) DeleteDraftsForTarget(_ context.Context, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.drafts {
		if d.TargetID == targetID {
			delete(s.drafts, id)
		}
	}
	return nil
}

// GetGeneration retrieves a generation record by ID.
func (s *Store) GetGeneration(_ context.Context, id string) (*api.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.generations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

// PutGeneration inserts a new generation record.
func (s *Store) PutGeneration(_ context.Context, g *api.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.generations[g.ID]; exists {
		return storage.ErrConflict
	}
	cp := *g
	s.generations[g.ID] = &cp
	return nil
}

// UpdateGeneration replaces an existing generation record.
func (s *Store) UpdateGeneration(_ context.Context, g *api.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.generations[g.ID]; !exists {
		return storage.ErrNotFound
	}
	cp := *g
	s.generations[g.ID] = &cp
	return nil
}

// WithLock serializes fn against other calls holding the same key.
func (s *Store) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	s.lockMu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.lockMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// cloneEntity copies an entity deeply enough that callers cannot mutate
// stored state through the returned pointer.
func cloneEntity(e *api.ContentEntity) *api.ContentEntity {
	cp := *e
	if e.Project != nil {
		v := *e.Project
		cp.Project = &v
	}
	if e.Chapter != nil {
		v := *e.Chapter
		cp.Chapter = &v
	}
	if e.Scene != nil {
		v := *e.Scene
		cp.Scene = &v
	}
	if e.Panel != nil {
		v := *e.Panel
		cp.Panel = &v
	}
	if e.Character != nil {
		v := *e.Character
		if e.Character.Relationships != nil {
			v.Relationships = make(map[string]string, len(e.Character.Relationships))
			for k, val := range e.Character.Relationships {
				v.Relationships[k] = val
			}
		}
		cp.Character = &v
	}
	if e.Location != nil {
		v := *e.Location
		cp.Location = &v
	}
	return &cp
}

func cloneDraft(d *api.Draft) *api.Draft {
	cp := *d
	if d.Variants != nil {
		cp.Variants = make([]api.Variant, len(d.Variants))
		for i, v := range d.Variants {
			cp.Variants[i] = append(api.Variant(nil), v...)
		}
	}
	if d.SelectedVariant != nil {
		idx := *d.SelectedVariant
		cp.SelectedVariant = &idx
	}
	return &cp
}
