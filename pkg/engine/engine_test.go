package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/provider"
	"github.com/storyloom/storyloom/pkg/storage/memory"
)

// mockGenerator implements provider.Generator for testing. generateFn
// controls the outcome per call; callCount and requests record what the
// executor sent.
type mockGenerator struct {
	mu         sync.Mutex
	callCount  int
	requests   []*provider.Request
	generateFn func(ctx context.Context, req *provider.Request) (*provider.Result, error)
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		StructuredOutput: true,
		MaxVariants:      api.MaxVariants,
	}
}

func (m *mockGenerator) Generate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	fn := m.generateFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &provider.Result{
		Payloads: []api.Variant{api.Variant(projectSummaryJSON)},
		Model:    req.Model,
	}, nil
}

func (m *mockGenerator) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func (m *mockGenerator) Close() error { return nil }

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockGenerator) lastRequest() *provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

const (
	projectSummaryJSON = `{"title":"Neon Orbit","genre":"noir sci-fi","description":"A detective hunts a ghost ship through the rings of Saturn."}`
	chapterListJSON    = `{"chapters":[{"title":"The Docking Bay","summary":"A body is found."},{"title":"The Ring Run","summary":"The chase begins."}]}`
	sceneListJSON      = `{"scenes":[{"title":"Arrival","description":"The detective lands."}]}`
)

func newTestEngine(t *testing.T, store *memory.Store, gen provider.Generator) *Engine {
	t.Helper()
	e, err := New(store, gen, Config{
		DefaultModel:   "mock-model",
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func seedProject(t *testing.T, store *memory.Store) *api.ContentEntity {
	t.Helper()
	now := time.Now().Unix()
	p := &api.ContentEntity{
		Kind:      api.KindProject,
		ID:        api.NewEntityID(api.KindProject),
		CreatedAt: now,
		UpdatedAt: now,
		Project: &api.ProjectData{
			UserInput:  "A space detective story",
			StyleGuide: "Noir lighting, wide establishing shots.",
		},
	}
	if err := store.PutEntity(context.Background(), p); err != nil {
		t.Fatalf("seeding project: %v", err)
	}
	return p
}

func seedChild(t *testing.T, store *memory.Store, kind api.EntityKind, parentID string, pos int) *api.ContentEntity {
	t.Helper()
	now := time.Now().Unix()
	e := &api.ContentEntity{
		Kind:      kind,
		ID:        api.NewEntityID(kind),
		ParentID:  parentID,
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch kind {
	case api.KindChapter:
		e.Chapter = &api.ChapterData{Title: "Chapter", Summary: "Summary"}
	case api.KindScene:
		e.Scene = &api.SceneData{Title: "Scene", Description: "Description"}
	case api.KindPanel:
		e.Panel = &api.PanelData{ShotType: "wide", Description: "Establishing shot"}
	case api.KindCharacter:
		e.Character = &api.CharacterData{Name: "Vera", Role: "detective", Description: "Weary"}
	}
	if err := store.PutEntity(context.Background(), e); err != nil {
		t.Fatalf("seeding %s: %v", kind, err)
	}
	return e
}

// waitTerminal polls the generation record until it reaches a terminal
// status.
func waitTerminal(t *testing.T, e *Engine, id string) *api.Generation {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		g, err := e.GetGenerationStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("polling generation %s: %v", id, err)
		}
		if g.Status.Terminal() {
			return g
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("generation %s did not finish", id)
	return nil
}

func TestEngine_SubmitGeneration_ReviewByDefault(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	gen := &mockGenerator{}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", g.Status, g.Error)
	}
	if g.Mode != api.ModeReview {
		t.Errorf("mode = %s, want review", g.Mode)
	}
	if g.DraftID == "" {
		t.Fatal("completed review generation has no draft")
	}

	d, err := store.GetDraft(context.Background(), g.DraftID)
	if err != nil {
		t.Fatalf("reading draft: %v", err)
	}
	if d.Status != api.DraftStatusPending {
		t.Errorf("draft status = %s, want pending", d.Status)
	}
	if len(d.Variants) != 1 {
		t.Errorf("draft has %d variants, want 1", len(d.Variants))
	}

	// Review mode must not touch the target entity.
	got, err := e.GetEntity(context.Background(), p.Ref())
	if err != nil {
		t.Fatalf("reading project: %v", err)
	}
	if got.Project.Title != "" {
		t.Errorf("project title = %q, want untouched", got.Project.Title)
	}
}

func TestEngine_SubmitGeneration_DirectApplies(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	gen := &mockGenerator{}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
		Mode:   api.ModeDirect,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", g.Status, g.Error)
	}
	if g.DraftID != "" {
		t.Errorf("direct generation produced draft %s", g.DraftID)
	}

	got, err := e.GetEntity(context.Background(), p.Ref())
	if err != nil {
		t.Fatalf("reading project: %v", err)
	}
	if got.Project.Title != "Neon Orbit" {
		t.Errorf("project title = %q, want %q", got.Project.Title, "Neon Orbit")
	}
	if got.Project.Genre != "noir sci-fi" {
		t.Errorf("project genre = %q, want %q", got.Project.Genre, "noir sci-fi")
	}
	// Fields the task does not produce survive the merge.
	if got.Project.UserInput != "A space detective story" {
		t.Errorf("user input was lost: %q", got.Project.UserInput)
	}
}

func TestEngine_DirectiveControlsMode(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	gen := &mockGenerator{}
	e := newTestEngine(t, store, gen)

	err := e.PutInstruction(context.Background(), &api.Instruction{
		ID:        api.NewInstructionID(),
		ScopeKind: api.KindProject,
		ScopeID:   p.ID,
		Text:      "Auto-apply summaries without review.",
		Active:    true,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("putting instruction: %v", err)
	}

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", g.Status, g.Error)
	}
	if g.Mode != api.ModeDirect {
		t.Errorf("mode = %s, want direct from instruction", g.Mode)
	}

	got, _ := e.GetEntity(context.Background(), p.Ref())
	if got.Project.Title != "Neon Orbit" {
		t.Errorf("directive did not apply output: title = %q", got.Project.Title)
	}
}

func TestEngine_RetryTransientThenSucceeds(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	var failures int
	gen := &mockGenerator{}
	gen.generateFn = func(_ context.Context, req *provider.Request) (*provider.Result, error) {
		if failures < 2 {
			failures++
			return nil, api.NewCapabilityError("backend overloaded", true)
		}
		return &provider.Result{
			Payloads: []api.Variant{api.Variant(projectSummaryJSON)},
			Model:    req.Model,
		}, nil
	}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", g.Status, g.Error)
	}
	if g.AttemptCount != 3 {
		t.Errorf("attempt count = %d, want 3", g.AttemptCount)
	}
	if gen.calls() != 3 {
		t.Errorf("provider calls = %d, want 3", gen.calls())
	}
}

func TestEngine_TransientExhaustsAttempts(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	gen := &mockGenerator{}
	gen.generateFn = func(_ context.Context, _ *provider.Request) (*provider.Result, error) {
		return nil, api.NewCapabilityError("backend overloaded", true)
	}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusFailed {
		t.Fatalf("status = %s, want failed", g.Status)
	}
	if g.AttemptCount != 3 {
		t.Errorf("attempt count = %d, want 3", g.AttemptCount)
	}
	if g.Error == "" {
		t.Error("failed generation has no error recorded")
	}
}

func TestEngine_PermanentErrorFailsFast(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	gen := &mockGenerator{}
	gen.generateFn = func(_ context.Context, _ *provider.Request) (*provider.Result, error) {
		return nil, api.NewCapabilityError("model not found", false)
	}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusFailed {
		t.Fatalf("status = %s, want failed", g.Status)
	}
	if g.AttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1 (no retry on permanent errors)", g.AttemptCount)
	}
}

func TestEngine_InvalidPayloadRetried(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	var calls int
	gen := &mockGenerator{}
	gen.generateFn = func(_ context.Context, req *provider.Request) (*provider.Result, error) {
		calls++
		if calls == 1 {
			// Missing required fields: a validation failure, retried.
			return &provider.Result{Payloads: []api.Variant{api.Variant(`{"title":"Neon Orbit"}`)}}, nil
		}
		return &provider.Result{Payloads: []api.Variant{api.Variant(projectSummaryJSON)}, Model: req.Model}, nil
	}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", g.Status, g.Error)
	}
	if g.AttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2", g.AttemptCount)
	}
}

func TestEngine_CancelGeneration(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)

	started := make(chan struct{})
	gen := &mockGenerator{}
	gen.generateFn = func(ctx context.Context, _ *provider.Request) (*provider.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, api.NewCapabilityError("interrupted", true)
	}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never reached the provider")
	}
	if err := e.CancelGeneration(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	g := waitTerminal(t, e, id)
	if g.Status != api.GenerationStatusCancelled {
		t.Fatalf("status = %s, want cancelled", g.Status)
	}

	// A second cancel conflicts: the record is terminal.
	err = e.CancelGeneration(context.Background(), id)
	if api.TypeOf(err) != api.ErrorTypeConflict {
		t.Errorf("second cancel error type = %s, want conflict", api.TypeOf(err))
	}
}

func TestEngine_SubmitValidation(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	ch := seedChild(t, store, api.KindChapter, p.ID, 0)
	e := newTestEngine(t, store, &mockGenerator{})

	cases := []struct {
		name string
		req  SubmitRequest
		typ  api.ErrorType
	}{
		{
			name: "unknown task",
			req:  SubmitRequest{Task: "poem", Target: p.Ref()},
			typ:  api.ErrorTypeInvalidRequest,
		},
		{
			name: "wrong target kind",
			req:  SubmitRequest{Task: api.TaskProjectSummary, Target: ch.Ref()},
			typ:  api.ErrorTypeInvalidRequest,
		},
		{
			name: "unknown mode",
			req:  SubmitRequest{Task: api.TaskProjectSummary, Target: p.Ref(), Mode: "yolo"},
			typ:  api.ErrorTypeInvalidRequest,
		},
		{
			name: "missing target",
			req:  SubmitRequest{Task: api.TaskProjectSummary, Target: api.Ref{Kind: api.KindProject, ID: "proj_missing"}},
			typ:  api.ErrorTypeNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.SubmitGeneration(context.Background(), tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if api.TypeOf(err) != tc.typ {
				t.Errorf("error type = %s, want %s", api.TypeOf(err), tc.typ)
			}
		})
	}
}

func TestEngine_ModelRequiredWithoutDefault(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	e, err := New(store, &mockGenerator{}, Config{}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	defer e.Close()

	_, err = e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if api.TypeOf(err) != api.ErrorTypeInvalidRequest {
		t.Fatalf("error type = %s, want invalid_request", api.TypeOf(err))
	}

	// An explicit model on the request is sufficient.
	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
		Model:  "request-model",
	})
	if err != nil {
		t.Fatalf("submit with explicit model: %v", err)
	}
	g := waitTerminal(t, e, id)
	if g.Model != "request-model" {
		t.Errorf("generation model = %q, want request-model", g.Model)
	}
}

func TestEngine_SubmitChildren(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	seedChild(t, store, api.KindChapter, p.ID, 0)
	seedChild(t, store, api.KindChapter, p.ID, 1)

	gen := &mockGenerator{}
	gen.generateFn = func(_ context.Context, req *provider.Request) (*provider.Result, error) {
		return &provider.Result{Payloads: []api.Variant{api.Variant(sceneListJSON)}, Model: req.Model}, nil
	}
	e := newTestEngine(t, store, gen)

	ids, err := e.SubmitChildren(context.Background(), api.TaskSceneList, p.Ref(), "")
	if err != nil {
		t.Fatalf("submit children: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d generations, want 2", len(ids))
	}

	for _, id := range ids {
		g := waitTerminal(t, e, id)
		if g.Status != api.GenerationStatusCompleted {
			t.Errorf("generation %s: status = %s (error %q)", id, g.Status, g.Error)
		}
		if g.DraftID == "" {
			t.Errorf("generation %s: no draft", id)
		}
	}
}

func TestEngine_SubmitChildrenWrongParent(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	ch := seedChild(t, store, api.KindChapter, p.ID, 0)
	e := newTestEngine(t, store, &mockGenerator{})

	// scene_list fans out over a project's chapters, not a chapter itself.
	_, err := e.SubmitChildren(context.Background(), api.TaskSceneList, ch.Ref(), "")
	if api.TypeOf(err) != api.ErrorTypeInvalidRequest {
		t.Fatalf("error type = %s, want invalid_request", api.TypeOf(err))
	}
}

func TestEngine_SupersedesPriorPendingDraft(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	gen := &mockGenerator{}
	e := newTestEngine(t, store, gen)

	first, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	g1 := waitTerminal(t, e, first)

	second, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	g2 := waitTerminal(t, e, second)

	d1, err := store.GetDraft(context.Background(), g1.DraftID)
	if err != nil {
		t.Fatalf("reading first draft: %v", err)
	}
	if d1.Status != api.DraftStatusSuperseded {
		t.Errorf("first draft status = %s, want superseded", d1.Status)
	}

	pending, err := store.FindPendingDraft(context.Background(), p.ID, api.ContentKind(api.TaskProjectSummary))
	if err != nil {
		t.Fatalf("finding pending draft: %v", err)
	}
	if pending.ID != g2.DraftID {
		t.Errorf("pending draft = %s, want %s", pending.ID, g2.DraftID)
	}
}

func TestEngine_ConcurrentSubmittersSinglePendingDraft(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	gen := &mockGenerator{}
	e := newTestEngine(t, store, gen)

	const submitters = 16
	ids := make([]string, submitters)
	errs := make([]error, submitters)
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = e.SubmitGeneration(context.Background(), SubmitRequest{
				Task:   api.TaskProjectSummary,
				Target: p.Ref(),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		g := waitTerminal(t, e, ids[i])
		if g.Status != api.GenerationStatusCompleted {
			t.Errorf("generation %s: status = %s (error %q)", ids[i], g.Status, g.Error)
		}
	}

	drafts, err := store.ListDrafts(context.Background(), api.KindProject, p.ID)
	if err != nil {
		t.Fatalf("listing drafts: %v", err)
	}
	if len(drafts) != submitters {
		t.Fatalf("got %d drafts, want %d", len(drafts), submitters)
	}
	pending := 0
	for _, d := range drafts {
		switch d.Status {
		case api.DraftStatusPending:
			pending++
		case api.DraftStatusSuperseded:
		default:
			t.Errorf("draft %s: status = %s", d.ID, d.Status)
		}
	}
	if pending != 1 {
		t.Errorf("pending drafts = %d, want exactly 1", pending)
	}
}

func TestEngine_ConcurrentSelectAppliesOnce(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	gen := &mockGenerator{
		generateFn: func(_ context.Context, req *provider.Request) (*provider.Result, error) {
			return &provider.Result{
				Payloads: []api.Variant{api.Variant(chapterListJSON)},
				Model:    req.Model,
			}, nil
		},
	}
	e := newTestEngine(t, store, gen)

	id, err := e.SubmitGeneration(context.Background(), SubmitRequest{
		Task:   api.TaskChapterList,
		Target: p.Ref(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	g := waitTerminal(t, e, id)
	if g.DraftID == "" {
		t.Fatalf("generation finished without a draft (status %s)", g.Status)
	}

	const selectors = 8
	errs := make([]error, selectors)
	var wg sync.WaitGroup
	for i := 0; i < selectors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.SelectDraft(context.Background(), g.DraftID, 0)
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, err := range errs {
		if err == nil {
			applied++
		}
	}
	if applied != 1 {
		t.Errorf("successful selects = %d, want exactly 1", applied)
	}

	chapters, err := store.ListChildren(context.Background(), p.ID, api.KindChapter)
	if err != nil {
		t.Fatalf("listing chapters: %v", err)
	}
	if len(chapters) != 2 {
		t.Errorf("materialized %d chapters, want 2", len(chapters))
	}
}

func TestEngine_PutInstructionParsesDirective(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	e := newTestEngine(t, store, &mockGenerator{})

	cases := []struct {
		text string
		want api.Directive
	}{
		{"Auto-apply chapter lists.", api.DirectiveDirect},
		{"Always ask for approval first.", api.DirectiveReview},
		{"Keep the tone melancholic.", api.DirectiveNone},
	}
	for _, tc := range cases {
		ins := &api.Instruction{
			ID:        api.NewInstructionID(),
			ScopeKind: api.KindProject,
			ScopeID:   p.ID,
			Text:      tc.text,
			Active:    true,
			CreatedAt: time.Now().Unix(),
		}
		if err := e.PutInstruction(context.Background(), ins); err != nil {
			t.Fatalf("putting %q: %v", tc.text, err)
		}
		if ins.Directive != tc.want {
			t.Errorf("directive for %q = %q, want %q", tc.text, ins.Directive, tc.want)
		}
	}
}

func TestEngine_PutInstructionValidation(t *testing.T) {
	store := memory.New()
	p := seedProject(t, store)
	e := newTestEngine(t, store, &mockGenerator{})

	base := func() *api.Instruction {
		return &api.Instruction{
			ID:        api.NewInstructionID(),
			ScopeKind: api.KindProject,
			ScopeID:   p.ID,
			Text:      "Keep it short.",
			Active:    true,
			CreatedAt: time.Now().Unix(),
		}
	}

	ins := base()
	ins.Text = ""
	if err := e.PutInstruction(context.Background(), ins); api.TypeOf(err) != api.ErrorTypeInvalidRequest {
		t.Errorf("empty text: error type = %s, want invalid_request", api.TypeOf(err))
	}

	ins = base()
	ins.Priority = api.MaxPriority + 1
	if err := e.PutInstruction(context.Background(), ins); api.TypeOf(err) != api.ErrorTypeInvalidRequest {
		t.Errorf("priority overflow: error type = %s, want invalid_request", api.TypeOf(err))
	}

	ins = base()
	ins.ContentKind = "sonnet"
	if err := e.PutInstruction(context.Background(), ins); api.TypeOf(err) != api.ErrorTypeInvalidRequest {
		t.Errorf("bad content kind: error type = %s, want invalid_request", api.TypeOf(err))
	}

	ins = base()
	ins.ScopeID = "proj_missing"
	if err := e.PutInstruction(context.Background(), ins); api.TypeOf(err) != api.ErrorTypeNotFound {
		t.Errorf("missing scope: error type = %s, want not_found", api.TypeOf(err))
	}

	// Empty content kind defaults to the wildcard.
	ins = base()
	if err := e.PutInstruction(context.Background(), ins); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ins.ContentKind != api.ContentKindAll {
		t.Errorf("content kind = %q, want %q", ins.ContentKind, api.ContentKindAll)
	}
}
