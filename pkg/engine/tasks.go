package engine

import "github.com/storyloom/storyloom/pkg/api"

// taskSpec describes one generation task: which entity kind it targets,
// which child kind a list task materializes, the system framing sent to
// the provider, and the output schema the payload must satisfy.
type taskSpec struct {
	Target api.EntityKind
	Child  api.EntityKind // set for list tasks only
	Roster bool           // include the character roster in the context
	System string
	Schema api.OutputSchema
}

var taskSpecs = map[api.TaskKind]taskSpec{
	api.TaskProjectSummary: {
		Target: api.KindProject,
		System: "You are a story development assistant. From the user's premise, produce the project summary: a title, a genre, and a one-paragraph description. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name: "project_summary",
			Fields: []api.FieldSpec{
				{Name: "title", Type: "string", Required: true},
				{Name: "genre", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
			},
		},
	},
	api.TaskCharacterList: {
		Target: api.KindProject,
		Child:  api.KindCharacter,
		System: "You are a story development assistant. Create the cast of characters for the project. Each relationship must name another character in the same list. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name:      "character_list",
			ListField: "characters",
			Item: []api.FieldSpec{
				{Name: "name", Type: "string", Required: true},
				{Name: "role", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
				{Name: "relationships", Type: "object"},
			},
			MinItems:      2,
			MaxItems:      8,
			CrossRefField: "relationships",
			KeyField:      "name",
		},
	},
	api.TaskChapterList: {
		Target: api.KindProject,
		Child:  api.KindChapter,
		Roster: true,
		System: "You are a story development assistant. Break the project into chapters in narrative order, each with a title and a summary. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name:      "chapter_list",
			ListField: "chapters",
			Item: []api.FieldSpec{
				{Name: "title", Type: "string", Required: true},
				{Name: "summary", Type: "string", Required: true},
			},
			MinItems: 1,
			MaxItems: 12,
		},
	},
	api.TaskSceneList: {
		Target: api.KindChapter,
		Child:  api.KindScene,
		Roster: true,
		System: "You are a story development assistant. Break the chapter into scenes in narrative order, each with a title and a description. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name:      "scene_list",
			ListField: "scenes",
			Item: []api.FieldSpec{
				{Name: "title", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
			},
			MinItems: 1,
			MaxItems: 12,
		},
	},
	api.TaskPanelList: {
		Target: api.KindScene,
		Child:  api.KindPanel,
		Roster: true,
		System: "You are a comic layout assistant. Break the scene into panels in reading order. Each panel has a shot type and a visual description; dialogue and narration are optional. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name:      "panel_list",
			ListField: "panels",
			Item: []api.FieldSpec{
				{Name: "shot_type", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
				{Name: "dialogue", Type: "string"},
				{Name: "narration", Type: "string"},
			},
			MinItems: 1,
			MaxItems: 12,
		},
	},
	api.TaskCharacterProfile: {
		Target: api.KindCharacter,
		Roster: true,
		System: "You are a story development assistant. Expand the character into a full profile with a biography. Relationships must name other characters from the roster. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name: "character_profile",
			Fields: []api.FieldSpec{
				{Name: "name", Type: "string", Required: true},
				{Name: "role", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
				{Name: "biography", Type: "string", Required: true},
				{Name: "relationships", Type: "object"},
			},
		},
	},
	api.TaskSceneSummary: {
		Target: api.KindScene,
		Roster: true,
		System: "You are a story development assistant. Rewrite the scene's title and description so they are concrete and consistent with the surrounding chapter. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name: "scene_summary",
			Fields: []api.FieldSpec{
				{Name: "title", Type: "string", Required: true},
				{Name: "description", Type: "string", Required: true},
			},
		},
	},
	api.TaskVisualPrompt: {
		Target: api.KindPanel,
		Roster: true,
		System: "You are an image prompt engineer. Produce an image generation prompt for the panel, consistent with the project's style guide, plus an optional negative prompt. Respond with a single JSON object.",
		Schema: api.OutputSchema{
			Name: "visual_prompt",
			Fields: []api.FieldSpec{
				{Name: "image_prompt", Type: "string", Required: true},
				{Name: "negative_prompt", Type: "string"},
			},
		},
	},
}

// specFor returns the task specification for a task kind.
func specFor(task api.TaskKind) (taskSpec, bool) {
	spec, ok := taskSpecs[task]
	return spec, ok
}

// TaskSchema exposes the output schema for a task kind. Transports use it
// to describe endpoints; the executor validates payloads against it.
func TaskSchema(task api.TaskKind) (api.OutputSchema, bool) {
	spec, ok := taskSpecs[task]
	return spec.Schema, ok
}

// TaskTargetKind returns the entity kind a task must target.
func TaskTargetKind(task api.TaskKind) (api.EntityKind, bool) {
	spec, ok := taskSpecs[task]
	return spec.Target, ok
}
