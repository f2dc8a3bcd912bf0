package engine

import (
	"context"
	"testing"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage/memory"
)

func putInstruction(t *testing.T, store *memory.Store, scope api.Ref, text string, priority int, kind api.ContentKind, createdAt int64) *api.Instruction {
	t.Helper()
	ins := &api.Instruction{
		ID:          api.NewInstructionID(),
		ScopeKind:   scope.Kind,
		ScopeID:     scope.ID,
		ContentKind: kind,
		Text:        text,
		Priority:    priority,
		Directive:   api.ParseDirective(text),
		Active:      true,
		CreatedAt:   createdAt,
	}
	if err := store.PutInstruction(context.Background(), ins); err != nil {
		t.Fatalf("putting instruction: %v", err)
	}
	return ins
}

func TestResolver_ScopeDepthBeatsPriority(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	ch := seedChild(t, store, api.KindChapter, p.ID, 0)

	now := time.Now().Unix()
	// The project instruction has the higher priority, but the chapter is
	// the deeper scope and must still come first.
	putInstruction(t, store, p.Ref(), "Keep everything upbeat.", 950, api.ContentKindAll, now)
	chIns := putInstruction(t, store, ch.Ref(), "This chapter is a flashback.", 900, api.ContentKindAll, now)

	r := NewResolver(store)
	resolved, err := r.Resolve(context.Background(), ch.Ref(), api.TaskSceneList)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d instructions, want 2", len(resolved))
	}
	if resolved[0].ID != chIns.ID {
		t.Errorf("first instruction is %s (scope %s), want the chapter-scoped one",
			resolved[0].ID, resolved[0].ScopeKind)
	}
}

func TestResolver_PriorityOrdersWithinScope(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	now := time.Now().Unix()
	low := putInstruction(t, store, p.Ref(), "Prefer short sentences.", 100, api.ContentKindAll, now)
	high := putInstruction(t, store, p.Ref(), "The tone is melancholic.", 900, api.ContentKindAll, now)

	r := NewResolver(store)
	resolved, err := r.Resolve(context.Background(), p.Ref(), api.TaskProjectSummary)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d instructions, want 2", len(resolved))
	}
	if resolved[0].ID != high.ID || resolved[1].ID != low.ID {
		t.Errorf("order = [%d, %d], want [900, 100]", resolved[0].Priority, resolved[1].Priority)
	}
}

func TestResolver_RecencyBreaksTies(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	older := putInstruction(t, store, p.Ref(), "Older note.", 500, api.ContentKindAll, 1000)
	newer := putInstruction(t, store, p.Ref(), "Newer note.", 500, api.ContentKindAll, 2000)

	r := NewResolver(store)
	resolved, err := r.Resolve(context.Background(), p.Ref(), api.TaskProjectSummary)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d instructions, want 2", len(resolved))
	}
	if resolved[0].ID != newer.ID || resolved[1].ID != older.ID {
		t.Error("newer instruction should precede the older one at equal scope and priority")
	}
}

func TestResolver_FiltersKindAndActive(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	now := time.Now().Unix()
	matching := putInstruction(t, store, p.Ref(), "Twelve chapters exactly.", 500,
		api.ContentKind(api.TaskChapterList), now)
	putInstruction(t, store, p.Ref(), "Panels in widescreen.", 500,
		api.ContentKind(api.TaskPanelList), now)
	wildcard := putInstruction(t, store, p.Ref(), "Noir throughout.", 400, api.ContentKindAll, now)

	inactive := &api.Instruction{
		ID:          api.NewInstructionID(),
		ScopeKind:   p.Kind,
		ScopeID:     p.ID,
		ContentKind: api.ContentKindAll,
		Text:        "Obsolete guidance.",
		Priority:    999,
		Active:      false,
		CreatedAt:   now,
	}
	if err := store.PutInstruction(context.Background(), inactive); err != nil {
		t.Fatalf("putting inactive instruction: %v", err)
	}

	r := NewResolver(store)
	resolved, err := r.Resolve(context.Background(), p.Ref(), api.TaskChapterList)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d instructions, want 2 (kind match + wildcard)", len(resolved))
	}
	if resolved[0].ID != matching.ID || resolved[1].ID != wildcard.ID {
		t.Errorf("resolved = [%s, %s], want [%s, %s]",
			resolved[0].ID, resolved[1].ID, matching.ID, wildcard.ID)
	}
}

func TestResolver_BrokenChainIsScopeError(t *testing.T) {
	store := memory.New()
	orphan := &api.ContentEntity{
		Kind:     api.KindChapter,
		ID:       api.NewEntityID(api.KindChapter),
		ParentID: "proj_gone",
		Chapter:  &api.ChapterData{Title: "Orphan"},
	}
	if err := store.PutEntity(context.Background(), orphan); err != nil {
		t.Fatalf("seeding orphan: %v", err)
	}

	r := NewResolver(store)
	_, err := r.Resolve(context.Background(), orphan.Ref(), api.TaskSceneList)
	if api.TypeOf(err) != api.ErrorTypeScope {
		t.Fatalf("error type = %s, want scope_error", api.TypeOf(err))
	}
}
