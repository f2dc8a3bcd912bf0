// Command mcp exposes the storyloom engine as an MCP server over
// streamable HTTP. Tools cover the generation lifecycle: submitting
// work, polling status, and working through the draft review queue.
//
// Configuration is shared with the main server (see pkg/config).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/config"
	"github.com/storyloom/storyloom/pkg/engine"
	"github.com/storyloom/storyloom/pkg/provider/openaicompat"
	"github.com/storyloom/storyloom/pkg/storage"
	"github.com/storyloom/storyloom/pkg/storage/memory"
	"github.com/storyloom/storyloom/pkg/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(*configPath, *addr, logger); err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, addr string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var store storage.Store
	if cfg.Storage.Type == "postgres" {
		store, err = postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
	} else {
		store = memory.New()
	}
	defer store.Close()

	gen := openaicompat.NewClient(cfg.Generation.BackendURL, cfg.Generation.APIKey,
		cfg.Generation.AttemptTimeout)
	defer gen.Close()

	eng, err := engine.New(store, gen, engine.Config{
		DefaultModel:   cfg.Generation.DefaultModel,
		Workers:        cfg.Generation.Workers,
		MaxAttempts:    cfg.Generation.MaxAttempts,
		AttemptTimeout: cfg.Generation.AttemptTimeout,
		ContextBudget:  cfg.Generation.ContextBudget,
		Variants:       cfg.Generation.Variants,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	server := newMCPServer(eng)

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	logger.Info("mcp server starting", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

// newMCPServer registers the storyloom tool set on an MCP server.
func newMCPServer(eng *engine.Engine) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "storyloom", Version: "v1.0.0"},
		nil,
	)

	type submitInput struct {
		TaskKind   string `json:"task_kind" jsonschema_description:"Generation task kind, e.g. project_summary or chapter_list"`
		TargetKind string `json:"target_kind" jsonschema_description:"Target entity kind"`
		TargetID   string `json:"target_id" jsonschema_description:"Target entity ID"`
		Mode       string `json:"mode,omitempty" jsonschema_description:"Optional mode override: direct or review"`
		Model      string `json:"model,omitempty" jsonschema_description:"Optional model override"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_generation",
		Description: "Submits an asynchronous content generation for a story entity and returns its generation ID",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in submitInput) (*mcp.CallToolResult, struct{}, error) {
		id, err := eng.SubmitGeneration(ctx, engine.SubmitRequest{
			Task:   api.TaskKind(in.TaskKind),
			Target: api.Ref{Kind: api.EntityKind(in.TargetKind), ID: in.TargetID},
			Mode:   api.GenerationMode(in.Mode),
			Model:  in.Model,
		})
		if err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(map[string]string{"generation_id": id}), struct{}{}, nil
	})

	type statusInput struct {
		GenerationID string `json:"generation_id"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generation_status",
		Description: "Returns the current state of a generation, including attempts and any error",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in statusInput) (*mcp.CallToolResult, struct{}, error) {
		g, err := eng.GetGenerationStatus(ctx, in.GenerationID)
		if err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(g), struct{}{}, nil
	})

	type listDraftsInput struct {
		TargetKind string `json:"target_kind"`
		TargetID   string `json:"target_id"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_drafts",
		Description: "Lists drafts awaiting review for a story entity",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listDraftsInput) (*mcp.CallToolResult, struct{}, error) {
		drafts, err := eng.ListDrafts(ctx, api.Ref{Kind: api.EntityKind(in.TargetKind), ID: in.TargetID})
		if err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(drafts), struct{}{}, nil
	})

	type selectInput struct {
		DraftID      string `json:"draft_id"`
		VariantIndex int    `json:"variant_index"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_draft",
		Description: "Selects a draft variant and applies it to the target entity",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in selectInput) (*mcp.CallToolResult, struct{}, error) {
		ent, err := eng.SelectDraft(ctx, in.DraftID, in.VariantIndex)
		if err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(ent), struct{}{}, nil
	})

	type rejectInput struct {
		DraftID string `json:"draft_id"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "reject_draft",
		Description: "Rejects every variant of a draft without applying anything",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in rejectInput) (*mcp.CallToolResult, struct{}, error) {
		if err := eng.RejectDraft(ctx, in.DraftID); err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(map[string]string{"status": "rejected"}), struct{}{}, nil
	})

	type reviseInput struct {
		DraftID  string `json:"draft_id"`
		Feedback string `json:"feedback" jsonschema_description:"Guidance for the follow-up generation"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "revise_draft",
		Description: "Marks a draft revised and submits a follow-up generation carrying the feedback",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in reviseInput) (*mcp.CallToolResult, struct{}, error) {
		id, err := eng.ReviseDraft(ctx, in.DraftID, in.Feedback)
		if err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(map[string]string{"generation_id": id}), struct{}{}, nil
	})

	type getEntityInput struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_entity",
		Description: "Fetches a story entity by kind and ID",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getEntityInput) (*mcp.CallToolResult, struct{}, error) {
		ent, err := eng.GetEntity(ctx, api.Ref{Kind: api.EntityKind(in.Kind), ID: in.ID})
		if err != nil {
			return toolError(err), struct{}{}, nil
		}
		return toolJSON(ent), struct{}{}, nil
	})

	return server
}

// toolJSON wraps a value as a JSON text result.
func toolJSON(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// toolError reports a failed call as an error result so the client
// model can read the message.
func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
