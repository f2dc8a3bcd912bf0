package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage"
)

// Resolver collects the instructions that apply to a generation target by
// walking the ancestor chain up to the project root.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the active instructions that apply to the target for the
// given task, ordered by scope specificity descending, then priority
// descending, then recency descending. A chapter-level instruction always
// outranks a project-level one regardless of priority. No deduplication is
// performed; an empty result is valid.
func (r *Resolver) Resolve(ctx context.Context, target api.Ref, task api.TaskKind) ([]api.Instruction, error) {
	chain, err := r.ancestors(ctx, target)
	if err != nil {
		return nil, err
	}

	var resolved []api.Instruction
	for _, node := range chain {
		ins, err := r.store.ListInstructions(ctx, node.Kind, node.ID)
		if err != nil {
			return nil, fmt.Errorf("listing instructions for %s: %w", node.ID, err)
		}
		for _, in := range ins {
			if !in.Active {
				continue
			}
			if !in.ContentKind.Matches(task) {
				continue
			}
			resolved = append(resolved, in)
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		a, b := resolved[i], resolved[j]
		da, db := api.ScopeDepth(a.ScopeKind), api.ScopeDepth(b.ScopeKind)
		if da != db {
			return da > db
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt > b.CreatedAt
	})

	return resolved, nil
}

// ancestors returns the chain of entities from the target up to the
// project root, target first. A missing link is a scope error.
func (r *Resolver) ancestors(ctx context.Context, target api.Ref) ([]*api.ContentEntity, error) {
	var chain []*api.ContentEntity

	cur := target
	for {
		ent, err := r.store.GetEntity(ctx, cur.Kind, cur.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, api.NewScopeError(fmt.Sprintf("entity %s not found in hierarchy", cur.ID))
			}
			return nil, fmt.Errorf("loading %s: %w", cur.ID, err)
		}
		chain = append(chain, ent)

		if ent.Kind == api.KindProject {
			return chain, nil
		}
		parentKind, ok := api.ParentKind(ent.Kind)
		if !ok || ent.ParentID == "" {
			return nil, api.NewScopeError(fmt.Sprintf("entity %s has no parent link", ent.ID))
		}
		cur = api.Ref{Kind: parentKind, ID: ent.ParentID}
	}
}
