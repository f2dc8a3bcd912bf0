package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage"
)

// Context is the immutable snapshot a generation works from. It is
// assembled once per attempt-chain and never mutated afterwards; retries
// reuse the same frozen context.
type Context struct {
	Task   api.TaskKind
	Target *api.ContentEntity
	Parent *api.ContentEntity

	// Siblings holds the target's prior siblings in position order.
	Siblings []api.ContentEntity

	// Characters is the project roster, included for tasks that reference
	// the cast.
	Characters []api.ContentEntity

	StyleGuide   string
	Instructions []api.Instruction

	// Feedback and PreviousVariant are set for revision generations.
	Feedback        string
	PreviousVariant json.RawMessage
}

// Assembler builds generation contexts from the store. Assembly is
// read-only: two calls over an unchanged store produce structurally equal
// contexts.
type Assembler struct {
	store    storage.Store
	resolver *Resolver
	budget   int
}

// NewAssembler creates an Assembler. budget bounds the serialized context
// size in bytes.
func NewAssembler(store storage.Store, resolver *Resolver, budget int) *Assembler {
	return &Assembler{store: store, resolver: resolver, budget: budget}
}

// Assemble builds the context for one generation. Missing ancestors or
// unresolvable references are context errors; they fail the chain before
// any provider call is made.
func (a *Assembler) Assemble(ctx context.Context, target api.Ref, task api.TaskKind) (*Context, error) {
	spec, ok := specFor(task)
	if !ok {
		return nil, api.NewInvalidRequestError("task_kind", fmt.Sprintf("unknown task kind %q", task))
	}
	if target.Kind != spec.Target {
		return nil, api.NewInvalidRequestError("target_kind",
			fmt.Sprintf("task %s targets a %s, not a %s", task, spec.Target, target.Kind))
	}

	ent, err := a.getEntity(ctx, target.Kind, target.ID)
	if err != nil {
		return nil, err
	}

	c := &Context{Task: task, Target: ent}

	// Parent and prior siblings.
	if parentKind, ok := api.ParentKind(ent.Kind); ok {
		parent, err := a.getEntity(ctx, parentKind, ent.ParentID)
		if err != nil {
			return nil, err
		}
		c.Parent = parent

		all, err := a.store.ListChildren(ctx, parent.ID, ent.Kind)
		if err != nil {
			return nil, fmt.Errorf("listing siblings of %s: %w", ent.ID, err)
		}
		for _, sib := range all {
			if sib.ID != ent.ID && sib.Position < ent.Position {
				c.Siblings = append(c.Siblings, sib)
			}
		}
	}

	// Style guide and roster come from the project root.
	root, err := a.projectRoot(ctx, ent)
	if err != nil {
		return nil, err
	}
	if root.Project != nil {
		c.StyleGuide = root.Project.StyleGuide
	}
	if spec.Roster {
		roster, err := a.store.ListChildren(ctx, root.ID, api.KindCharacter)
		if err != nil {
			return nil, fmt.Errorf("listing characters of %s: %w", root.ID, err)
		}
		c.Characters = roster
	}

	resolved, err := a.resolver.Resolve(ctx, target, task)
	if err != nil {
		return nil, err
	}
	c.Instructions = resolved

	a.truncate(c)
	return c, nil
}

// truncate drops the oldest siblings, then the oldest roster entries, until
// the serialized context fits the byte budget. Target fields and
// instructions are never dropped.
func (a *Assembler) truncate(c *Context) {
	if a.budget <= 0 {
		return
	}
	for len(c.Render()) > a.budget && len(c.Siblings) > 0 {
		c.Siblings = c.Siblings[1:]
	}
	for len(c.Render()) > a.budget && len(c.Characters) > 0 {
		c.Characters = c.Characters[1:]
	}
}

func (a *Assembler) getEntity(ctx context.Context, kind api.EntityKind, id string) (*api.ContentEntity, error) {
	ent, err := a.store.GetEntity(ctx, kind, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewContextError(fmt.Sprintf("%s %s not found", kind, id))
		}
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}
	return ent, nil
}

// projectRoot climbs from ent to the project root.
func (a *Assembler) projectRoot(ctx context.Context, ent *api.ContentEntity) (*api.ContentEntity, error) {
	cur := ent
	for cur.Kind != api.KindProject {
		parentKind, ok := api.ParentKind(cur.Kind)
		if !ok || cur.ParentID == "" {
			return nil, api.NewContextError(fmt.Sprintf("entity %s has no path to a project root", ent.ID))
		}
		parent, err := a.getEntity(ctx, parentKind, cur.ParentID)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return cur, nil
}

// contextBody is the deterministic wire form of a Context. Field order is
// fixed by the struct; rendering the same Context twice yields identical
// bytes.
type contextBody struct {
	Task            string              `json:"task"`
	Target          *api.ContentEntity  `json:"target"`
	Parent          *api.ContentEntity  `json:"parent,omitempty"`
	PriorSiblings   []api.ContentEntity `json:"prior_siblings,omitempty"`
	Characters      []api.ContentEntity `json:"characters,omitempty"`
	StyleGuide      string              `json:"style_guide,omitempty"`
	Instructions    []string            `json:"instructions,omitempty"`
	Feedback        string              `json:"feedback,omitempty"`
	PreviousVariant json.RawMessage     `json:"previous_variant,omitempty"`
}

// Render serializes the context into the provider input document.
// Instructions appear in resolution order, most specific first.
func (c *Context) Render() string {
	body := contextBody{
		Task:            string(c.Task),
		Target:          c.Target,
		Parent:          c.Parent,
		PriorSiblings:   c.Siblings,
		Characters:      c.Characters,
		StyleGuide:      c.StyleGuide,
		Feedback:        c.Feedback,
		PreviousVariant: c.PreviousVariant,
	}
	for _, ins := range c.Instructions {
		body.Instructions = append(body.Instructions, ins.Text)
	}
	out, err := json.Marshal(body)
	if err != nil {
		// The body contains only marshalable types.
		panic("rendering context: " + err.Error())
	}
	return string(out)
}
