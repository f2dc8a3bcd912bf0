// Command mock-backend runs a deterministic Chat Completions server
// for local development and conformance testing. It inspects the
// structured-output schema name of each request and returns a canned,
// schema-valid payload for that task, so a storyloom server pointed at
// it exercises the full generation pipeline without a real model.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	N              int           `json:"n"`
	ResponseFormat *respFormat   `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type       string `json:"type"`
	JSONSchema *struct {
		Name string `json:"name"`
	} `json:"json_schema"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// payloads maps schema names to canned task outputs. Each value is
// valid against the task's output schema.
var payloads = map[string]string{
	"project_summary": `{"title":"The Clockwork Harbor","genre":"steampunk adventure","description":"A dockworker discovers the tide engines beneath her city are failing."}`,
	"chapter_list":    `{"chapters":[{"title":"Low Tide","summary":"Mira notices the harbor clocks drifting out of sync."},{"title":"The Engine Room","summary":"She descends below the waterline and finds the first dead engine."}]}`,
	"scene_list":      `{"scenes":[{"title":"The Drifting Clock","description":"Mira checks the tower clock against her pocket watch."},{"title":"Closed Gates","description":"The tide gates refuse to open for the morning fleet."}]}`,
	"panel_list":      `{"panels":[{"shot_type":"wide","description":"The harbor at dawn, gears visible beneath the waterline.","dialogue":"","narration":"The city woke to silence."},{"shot_type":"close-up","description":"Mira's pocket watch, three minutes slow.","dialogue":"That can't be right.","narration":""}]}`,
	"character_list":  `{"characters":[{"name":"Mira Voss","role":"protagonist","description":"A dockworker with a mechanic's instincts.","relationships":{}},{"name":"Warden Callis","role":"antagonist","description":"Keeper of the tide engines, hiding their decay.","relationships":{"Mira Voss":"distrusts"}}]}`,
	"character_profile": `{"name":"Mira Voss","role":"protagonist","description":"A dockworker with a mechanic's instincts.","biography":"Raised on the pier decks, Mira learned the engines by ear before she could read.","relationships":{"Warden Callis":"suspicious of"}}`,
	"scene_summary":   `{"title":"The Drifting Clock","description":"Mira compares the tower clock to her pocket watch and realizes the tide engines are slowing."}`,
	"visual_prompt":   `{"image_prompt":"steampunk harbor at dawn, brass gears underwater, lone figure on the pier, volumetric light","negative_prompt":"modern machinery, photorealism"}`,
}

const fallbackPayload = `{"title":"Untitled","genre":"unknown","description":"Mock output."}`

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	payload := fallbackPayload
	if req.ResponseFormat != nil && req.ResponseFormat.JSONSchema != nil {
		if p, ok := payloads[req.ResponseFormat.JSONSchema.Name]; ok {
			payload = p
		}
	}

	n := req.N
	if n < 1 {
		n = 1
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Usage:  chatUsage{PromptTokens: 40, CompletionTokens: 30 * n, TotalTokens: 40 + 30*n},
	}
	for i := 0; i < n; i++ {
		content := payload
		resp.Choices = append(resp.Choices, chatChoice{
			Index:        i,
			Message:      chatMsg{Role: "assistant", Content: &content},
			FinishReason: "stop",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "storyloom-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
