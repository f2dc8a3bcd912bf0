// Command demo runs the orchestration pipeline end to end against an
// in-memory store and a canned generator, printing each step. Useful
// for a quick look at the generation and review lifecycle without a
// backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/engine"
	"github.com/storyloom/storyloom/pkg/provider"
	"github.com/storyloom/storyloom/pkg/storage/memory"
)

// cannedGenerator returns a fixed project summary payload.
type cannedGenerator struct{}

func (cannedGenerator) Name() string { return "canned" }
func (cannedGenerator) Capabilities() provider.Capabilities {
	return provider.Capabilities{StructuredOutput: true, MaxVariants: api.MaxVariants}
}
func (cannedGenerator) Generate(_ context.Context, req *provider.Request) (*provider.Result, error) {
	const payload = `{"title":"The Clockwork Harbor","genre":"steampunk adventure","description":"A dockworker discovers the tide engines beneath her city are failing."}`
	return &provider.Result{
		Payloads: []api.Variant{api.Variant(payload)},
		Model:    req.Model,
		Usage:    provider.Usage{InputTokens: 40, OutputTokens: 30, TotalTokens: 70},
	}, nil
}
func (cannedGenerator) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }
func (cannedGenerator) Close() error                                             { return nil }

func main() {
	fmt.Println("=== storyloom generation lifecycle demo ===")
	fmt.Println()

	ctx := context.Background()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	eng, err := engine.New(store, cannedGenerator{}, engine.Config{DefaultModel: "demo-model"}, logger)
	if err != nil {
		fmt.Printf("engine init failed: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	// 1. Create a project.
	project := &api.ContentEntity{
		Kind: api.KindProject,
		Project: &api.ProjectData{
			UserInput:  "A dockworker discovers her city's tide engines are failing.",
			StyleGuide: "Grounded steampunk. No magic.",
		},
	}
	if err := eng.PutEntity(ctx, project); err != nil {
		fmt.Printf("creating project failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[1] Project created: %s\n", project.ID)

	// 2. Add a scoped instruction. Its directive is parsed at ingestion.
	ins := &api.Instruction{
		ID:        api.NewInstructionID(),
		ScopeKind: api.KindProject,
		ScopeID:   project.ID,
		Text:      "Keep titles under five words.",
		Priority:  500,
		Active:    true,
		CreatedAt: time.Now().Unix(),
	}
	if err := eng.PutInstruction(ctx, ins); err != nil {
		fmt.Printf("creating instruction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[2] Instruction %s added (directive=%q)\n", ins.ID, ins.Directive)

	// 3. Submit a summary generation and wait for it to finish.
	genID, err := eng.SubmitGeneration(ctx, engine.SubmitRequest{
		Task:   api.TaskProjectSummary,
		Target: api.Ref{Kind: api.KindProject, ID: project.ID},
	})
	if err != nil {
		fmt.Printf("submit failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[3] Generation submitted: %s\n", genID)

	g := waitTerminal(ctx, eng, genID)
	fmt.Printf("[4] Generation finished: status=%s attempts=%d\n", g.Status, g.AttemptCount)

	// 4. Review mode is the default, so the output waits as a draft.
	drafts, err := eng.ListDrafts(ctx, api.Ref{Kind: api.KindProject, ID: project.ID})
	if err != nil || len(drafts) == 0 {
		fmt.Printf("no drafts found: %v\n", err)
		os.Exit(1)
	}
	d := drafts[0]
	fmt.Printf("[5] Pending draft %s with %d variant(s):\n", d.ID, len(d.Variants))
	pretty, _ := json.MarshalIndent(json.RawMessage(d.Variants[0]), "    ", "  ")
	fmt.Printf("    %s\n", pretty)

	// 5. Select variant 0; the payload is applied to the project.
	applied, err := eng.SelectDraft(ctx, d.ID, 0)
	if err != nil {
		fmt.Printf("select failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[6] Draft applied: title=%q genre=%q\n", applied.Project.Title, applied.Project.Genre)
	fmt.Printf("    User input preserved: %q\n", applied.Project.UserInput)

	// 6. Show the draft's terminal state.
	final, _ := eng.GetDraft(ctx, d.ID)
	fmt.Printf("[7] Draft status: %s\n", final.Status)

	fmt.Println("\n=== demo complete ===")
}

func waitTerminal(ctx context.Context, eng *engine.Engine, id string) *api.Generation {
	for {
		g, err := eng.GetGenerationStatus(ctx, id)
		if err != nil {
			fmt.Printf("polling failed: %v\n", err)
			os.Exit(1)
		}
		switch g.Status {
		case api.GenerationStatusCompleted, api.GenerationStatusFailed, api.GenerationStatusCancelled:
			return g
		}
		time.Sleep(10 * time.Millisecond)
	}
}
