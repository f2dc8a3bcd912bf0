package api

import "encoding/json"

// EntityKind identifies the type of a content entity.
type EntityKind string

const (
	KindProject   EntityKind = "project"
	KindChapter   EntityKind = "chapter"
	KindScene     EntityKind = "scene"
	KindPanel     EntityKind = "panel"
	KindCharacter EntityKind = "character"
	KindLocation  EntityKind = "location"
)

// ValidEntityKind reports whether kind names a known entity kind.
func ValidEntityKind(kind EntityKind) bool {
	switch kind {
	case KindProject, KindChapter, KindScene, KindPanel, KindCharacter, KindLocation:
		return true
	}
	return false
}

// ParentKind returns the entity kind a child of the given kind must be
// attached to. The project root has no parent. Characters and locations
// hang off the project but are not part of the narrative tree.
func ParentKind(kind EntityKind) (EntityKind, bool) {
	switch kind {
	case KindChapter, KindCharacter, KindLocation:
		return KindProject, true
	case KindScene:
		return KindChapter, true
	case KindPanel:
		return KindScene, true
	}
	return "", false
}

// ChildKinds returns the entity kinds that attach below the given kind.
func ChildKinds(kind EntityKind) []EntityKind {
	switch kind {
	case KindProject:
		return []EntityKind{KindChapter, KindCharacter, KindLocation}
	case KindChapter:
		return []EntityKind{KindScene}
	case KindScene:
		return []EntityKind{KindPanel}
	}
	return nil
}

// ScopeDepth returns the specificity of a scope for instruction resolution.
// Higher is more specific: panel > scene > chapter > project. Characters
// and locations resolve at project depth since they attach to the project.
func ScopeDepth(kind EntityKind) int {
	switch kind {
	case KindPanel:
		return 3
	case KindScene:
		return 2
	case KindChapter:
		return 1
	default:
		return 0
	}
}

// Ref identifies one content entity by kind and ID.
type Ref struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// ContentEntity is a node in the content tree. Exactly one of the per-kind
// data pointers is set, matching Kind. Ordering among siblings is given by
// Position, a dense integer unique per parent.
type ContentEntity struct {
	Kind     EntityKind `json:"kind"`
	ID       string     `json:"id"`
	ParentID string     `json:"parent_id,omitempty"`
	Position int        `json:"position"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
	Deleted   bool  `json:"deleted,omitempty"`

	Project   *ProjectData   `json:"project,omitempty"`
	Chapter   *ChapterData   `json:"chapter,omitempty"`
	Scene     *SceneData     `json:"scene,omitempty"`
	Panel     *PanelData     `json:"panel,omitempty"`
	Character *CharacterData `json:"character,omitempty"`
	Location  *LocationData  `json:"location,omitempty"`
}

// Ref returns the entity's reference.
func (e *ContentEntity) Ref() Ref {
	return Ref{Kind: e.Kind, ID: e.ID}
}

// DisplayName returns a human-readable label for logs and context bodies.
func (e *ContentEntity) DisplayName() string {
	switch {
	case e.Project != nil:
		return e.Project.Title
	case e.Chapter != nil:
		return e.Chapter.Title
	case e.Scene != nil:
		return e.Scene.Title
	case e.Panel != nil:
		return e.Panel.ShotType
	case e.Character != nil:
		return e.Character.Name
	case e.Location != nil:
		return e.Location.Name
	}
	return ""
}

// ProjectData holds the project-level content fields.
type ProjectData struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
	UserInput   string `json:"user_input,omitempty"`
	StyleGuide  string `json:"style_guide,omitempty"`
}

// ChapterData holds chapter content.
type ChapterData struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// SceneData holds scene content.
type SceneData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PanelData holds panel content including the visual prompt produced by
// the visual_prompt task.
type PanelData struct {
	ShotType       string `json:"shot_type"`
	Description    string `json:"description"`
	Dialogue       string `json:"dialogue,omitempty"`
	Narration      string `json:"narration,omitempty"`
	ImagePrompt    string `json:"image_prompt,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// CharacterData holds character content. Relationships maps another
// character's name to a short description of the relationship.
type CharacterData struct {
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Description   string            `json:"description"`
	Biography     string            `json:"biography,omitempty"`
	Relationships map[string]string `json:"relationships,omitempty"`
}

// LocationData holds location content.
type LocationData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TaskKind identifies one generation task type.
type TaskKind string

const (
	// List generation tasks: one call yields N children.
	TaskProjectSummary TaskKind = "project_summary"
	TaskCharacterList  TaskKind = "character_list"
	TaskChapterList    TaskKind = "chapter_list"
	TaskSceneList      TaskKind = "scene_list"
	TaskPanelList      TaskKind = "panel_list"

	// Detail enhancement tasks: one call refines one entity.
	TaskCharacterProfile TaskKind = "character_profile"
	TaskSceneSummary     TaskKind = "scene_summary"
	TaskVisualPrompt     TaskKind = "visual_prompt"
)

// ValidTaskKind reports whether kind names a known task.
func ValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskProjectSummary, TaskCharacterList, TaskChapterList, TaskSceneList,
		TaskPanelList, TaskCharacterProfile, TaskSceneSummary, TaskVisualPrompt:
		return true
	}
	return false
}

// IsListTask reports whether the task produces a list of child entities.
func (t TaskKind) IsListTask() bool {
	switch t {
	case TaskCharacterList, TaskChapterList, TaskSceneList, TaskPanelList:
		return true
	}
	return false
}

// ContentKind scopes an instruction to a task kind. The wildcard "all"
// applies the instruction to every task.
type ContentKind string

// ContentKindAll is the wildcard content kind.
const ContentKindAll ContentKind = "all"

// Matches reports whether the content kind applies to the given task.
func (c ContentKind) Matches(task TaskKind) bool {
	return c == ContentKindAll || string(c) == string(task)
}

// GenerationMode controls whether generated output bypasses review.
type GenerationMode string

const (
	// ModeDirect applies validated output to the target immediately.
	ModeDirect GenerationMode = "direct"

	// ModeReview parks validated output in a pending draft for selection.
	// This is the default when no instruction directs otherwise.
	ModeReview GenerationMode = "review"
)

// Variant is one candidate payload produced by a generation.
type Variant = json.RawMessage
