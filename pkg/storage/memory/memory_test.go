package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage"
)

func newProject(t *testing.T) *api.ContentEntity {
	t.Helper()
	now := time.Now().Unix()
	return &api.ContentEntity{
		Kind:      api.KindProject,
		ID:        api.NewEntityID(api.KindProject),
		CreatedAt: now,
		UpdatedAt: now,
		Project: &api.ProjectData{
			Title: "Nebula Noir", Genre: "sci-fi", Description: "a space detective story",
		},
	}
}

func TestEntityRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	proj := newProject(t)
	if err := s.PutEntity(ctx, proj); err != nil {
		t.Fatalf("PutEntity: %v", err)
	}
	if err := s.PutEntity(ctx, proj); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate PutEntity = %v, want ErrConflict", err)
	}

	got, err := s.GetEntity(ctx, api.KindProject, proj.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.Project.Title != "Nebula Noir" {
		t.Errorf("title = %q", got.Project.Title)
	}

	// Mutating the returned copy must not leak into the store.
	got.Project.Title = "mutated"
	again, _ := s.GetEntity(ctx, api.KindProject, proj.ID)
	if again.Project.Title != "Nebula Noir" {
		t.Error("store state mutated through returned copy")
	}

	if _, err := s.GetEntity(ctx, api.KindChapter, proj.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("kind-mismatched get = %v, want ErrNotFound", err)
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	proj := newProject(t)
	if err := s.PutEntity(ctx, proj); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEntity(ctx, api.KindProject, proj.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	if _, err := s.GetEntity(ctx, api.KindProject, proj.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted entity still visible: %v", err)
	}
	if err := s.DeleteEntity(ctx, api.KindProject, proj.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestListChildrenOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	proj := newProject(t)
	if err := s.PutEntity(ctx, proj); err != nil {
		t.Fatal(err)
	}

	// Insert out of position order.
	for _, pos := range []int{2, 0, 1} {
		ch := &api.ContentEntity{
			Kind:     api.KindChapter,
			ID:       api.NewEntityID(api.KindChapter),
			ParentID: proj.ID,
			Position: pos,
			Chapter:  &api.ChapterData{Title: "ch", Summary: "s"},
		}
		if err := s.PutEntity(ctx, ch); err != nil {
			t.Fatal(err)
		}
	}

	children, err := s.ListChildren(ctx, proj.ID, api.KindChapter)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("children = %d, want 3", len(children))
	}
	for i, c := range children {
		if c.Position != i {
			t.Errorf("children[%d].Position = %d", i, c.Position)
		}
	}
}

func TestPutEntitiesAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	proj := newProject(t)
	if err := s.PutEntity(ctx, proj); err != nil {
		t.Fatal(err)
	}

	dup := &api.ContentEntity{Kind: api.KindCharacter, ID: proj.ID,
		Character: &api.CharacterData{Name: "Vex", Role: "protagonist", Description: "d"}}
	fresh := &api.ContentEntity{Kind: api.KindCharacter, ID: api.NewEntityID(api.KindCharacter),
		ParentID: proj.ID, Character: &api.CharacterData{Name: "Mara", Role: "antagonist", Description: "d"}}

	err := s.PutEntities(ctx, []*api.ContentEntity{fresh, dup})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("batch with conflict = %v, want ErrConflict", err)
	}
	// The non-conflicting entity must not have been written.
	if _, err := s.GetEntity(ctx, api.KindCharacter, fresh.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("partial batch write observed")
	}
}

func TestDraftLifecycleStorage(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := &api.Draft{
		ID:          api.NewDraftID(),
		TargetKind:  api.KindProject,
		TargetID:    "proj_x",
		ContentKind: api.ContentKind(api.TaskCharacterList),
		Variants:    []api.Variant{api.Variant(`{"characters":[]}`)},
		Status:      api.DraftStatusPending,
		CreatedAt:   time.Now().Unix(),
	}
	if err := s.PutDraft(ctx, d); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindPendingDraft(ctx, "proj_x", d.ContentKind)
	if err != nil {
		t.Fatalf("FindPendingDraft: %v", err)
	}
	if found.ID != d.ID {
		t.Errorf("found %s, want %s", found.ID, d.ID)
	}

	found.Status = api.DraftStatusSuperseded
	if err := s.UpdateDraft(ctx, found); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindPendingDraft(ctx, "proj_x", d.ContentKind); !errors.Is(err, storage.ErrNotFound) {
		t.Error("superseded draft still reported pending")
	}

	if err := s.DeleteDraftsForTarget(ctx, "proj_x"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDraft(ctx, d.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("draft survived cascade delete")
	}
}

func TestWithLockSerializes(t *testing.T) {
	ctx := context.Background()
	s := New()

	var mu sync.Mutex
	var inside, maxInside int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithLock(ctx, "proj_x/character_list", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("lock admitted %d holders concurrently", maxInside)
	}
}

func TestGenerationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := &api.Generation{
		ID:         api.NewGenerationID(),
		TaskKind:   api.TaskProjectSummary,
		TargetKind: api.KindProject,
		Status:     api.GenerationStatusQueued,
		CreatedAt:  time.Now().Unix(),
	}
	if err := s.PutGeneration(ctx, g); err != nil {
		t.Fatal(err)
	}

	g.Status = api.GenerationStatusRunning
	g.AttemptCount = 1
	if err := s.UpdateGeneration(ctx, g); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetGeneration(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != api.GenerationStatusRunning || got.AttemptCount != 1 {
		t.Errorf("generation = %+v", got)
	}

	if err := s.UpdateGeneration(ctx, &api.Generation{ID: "gen_missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}
