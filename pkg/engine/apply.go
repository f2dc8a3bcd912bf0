package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage"
)

// applyPayload commits one validated variant to the content tree. Object
// tasks merge the payload into the target entity's data; list tasks
// materialize one child entity per item in a single atomic batch,
// appended after the target's existing children.
func (e *Engine) applyPayload(ctx context.Context, task api.TaskKind, target api.Ref, payload api.Variant) (*api.ContentEntity, error) {
	spec, ok := specFor(task)
	if !ok {
		return nil, api.NewInvalidRequestError("task", fmt.Sprintf("unknown task kind %q", task))
	}

	ent, err := e.store.GetEntity(ctx, target.Kind, target.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError(fmt.Sprintf("%s %s not found", target.Kind, target.ID))
		}
		return nil, err
	}

	if spec.Schema.IsList() {
		if err := e.applyList(ctx, spec, ent, payload); err != nil {
			return nil, err
		}
		return ent, nil
	}

	if err := mergeObject(task, ent, payload); err != nil {
		return nil, err
	}
	ent.UpdatedAt = time.Now().Unix()
	if err := e.store.UpdateEntity(ctx, ent); err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", ent.Kind, ent.ID, err)
	}
	return ent, nil
}

// mergeObject copies an object payload's fields into the entity's
// per-kind data. Fields the task does not produce, such as the project's
// user input and style guide, are preserved.
func mergeObject(task api.TaskKind, ent *api.ContentEntity, payload api.Variant) error {
	switch task {
	case api.TaskProjectSummary:
		var body struct {
			Title       string `json:"title"`
			Genre       string `json:"genre"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return api.NewValidationError("", fmt.Sprintf("decoding project summary: %v", err))
		}
		if ent.Project == nil {
			ent.Project = &api.ProjectData{}
		}
		ent.Project.Title = body.Title
		ent.Project.Genre = body.Genre
		ent.Project.Description = body.Description

	case api.TaskCharacterProfile:
		var body api.CharacterData
		if err := json.Unmarshal(payload, &body); err != nil {
			return api.NewValidationError("", fmt.Sprintf("decoding character profile: %v", err))
		}
		ent.Character = &body

	case api.TaskSceneSummary:
		var body api.SceneData
		if err := json.Unmarshal(payload, &body); err != nil {
			return api.NewValidationError("", fmt.Sprintf("decoding scene summary: %v", err))
		}
		ent.Scene = &body

	case api.TaskVisualPrompt:
		var body struct {
			ImagePrompt    string `json:"image_prompt"`
			NegativePrompt string `json:"negative_prompt"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return api.NewValidationError("", fmt.Sprintf("decoding visual prompt: %v", err))
		}
		if ent.Panel == nil {
			ent.Panel = &api.PanelData{}
		}
		ent.Panel.ImagePrompt = body.ImagePrompt
		ent.Panel.NegativePrompt = body.NegativePrompt

	default:
		return api.NewInvalidRequestError("task", fmt.Sprintf("task %q does not produce an object payload", task))
	}
	return nil
}

// applyList decodes a list payload and writes every child entity in one
// batch. Positions continue after the parent's existing children so a
// re-run appends instead of colliding.
func (e *Engine) applyList(ctx context.Context, spec taskSpec, parent *api.ContentEntity, payload api.Variant) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return api.NewValidationError("", fmt.Sprintf("decoding list payload: %v", err))
	}
	var items []json.RawMessage
	if err := json.Unmarshal(doc[spec.Schema.ListField], &items); err != nil {
		return api.NewValidationError(spec.Schema.ListField, fmt.Sprintf("decoding %s items: %v", spec.Schema.ListField, err))
	}
	if len(items) == 0 {
		return api.NewValidationError(spec.Schema.ListField, "list payload has no items")
	}

	existing, err := e.store.ListChildren(ctx, parent.ID, spec.Child)
	if err != nil {
		return fmt.Errorf("listing existing children: %w", err)
	}
	base := len(existing)

	now := time.Now().Unix()
	children := make([]*api.ContentEntity, 0, len(items))
	for i, item := range items {
		child := &api.ContentEntity{
			Kind:      spec.Child,
			ID:        api.NewEntityID(spec.Child),
			ParentID:  parent.ID,
			Position:  base + i,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := decodeChild(spec.Child, item, child); err != nil {
			return err
		}
		children = append(children, child)
	}

	if err := e.store.PutEntities(ctx, children); err != nil {
		return fmt.Errorf("writing %d %s children: %w", len(children), spec.Child, err)
	}
	return nil
}

func decodeChild(kind api.EntityKind, item json.RawMessage, child *api.ContentEntity) error {
	var err error
	switch kind {
	case api.KindChapter:
		var body api.ChapterData
		err = json.Unmarshal(item, &body)
		child.Chapter = &body
	case api.KindScene:
		var body api.SceneData
		err = json.Unmarshal(item, &body)
		child.Scene = &body
	case api.KindPanel:
		var body api.PanelData
		err = json.Unmarshal(item, &body)
		child.Panel = &body
	case api.KindCharacter:
		var body api.CharacterData
		err = json.Unmarshal(item, &body)
		child.Character = &body
	default:
		return api.NewInvalidRequestError("task", fmt.Sprintf("no child decoder for kind %q", kind))
	}
	if err != nil {
		return api.NewValidationError("", fmt.Sprintf("decoding %s item: %v", kind, err))
	}
	return nil
}
