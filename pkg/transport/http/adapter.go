// Package http serves the storyloom orchestration API over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/engine"
	"github.com/storyloom/storyloom/pkg/storage"
	"github.com/storyloom/storyloom/pkg/transport"
)

// Adapter routes the orchestration API to the engine and serializes
// results. It owns no middleware; the Server wraps the handler with the
// standard chain.
type Adapter struct {
	engine *engine.Engine
	store  storage.Store
	mux    *http.ServeMux
	config Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter over the engine. The store is used
// only for readiness checks.
func NewAdapter(eng *engine.Engine, store storage.Store, cfg Config) *Adapter {
	a := &Adapter{
		engine: eng,
		store:  store,
		mux:    http.NewServeMux(),
		config: cfg,
	}

	a.mux.HandleFunc("POST /v1/generations", a.handleSubmitGeneration)
	a.mux.HandleFunc("POST /v1/generations/children", a.handleSubmitChildren)
	a.mux.HandleFunc("GET /v1/generations/{id}", a.handleGetGeneration)
	a.mux.HandleFunc("POST /v1/generations/{id}/cancel", a.handleCancelGeneration)

	a.mux.HandleFunc("GET /v1/drafts", a.handleListDrafts)
	a.mux.HandleFunc("GET /v1/drafts/{id}", a.handleGetDraft)
	a.mux.HandleFunc("POST /v1/drafts/{id}/select", a.handleSelectDraft)
	a.mux.HandleFunc("POST /v1/drafts/{id}/reject", a.handleRejectDraft)
	a.mux.HandleFunc("POST /v1/drafts/{id}/revise", a.handleReviseDraft)

	a.mux.HandleFunc("POST /v1/entities", a.handleCreateEntity)
	a.mux.HandleFunc("GET /v1/entities/{kind}/{id}", a.handleGetEntity)
	a.mux.HandleFunc("DELETE /v1/entities/{kind}/{id}", a.handleDeleteEntity)
	a.mux.HandleFunc("GET /v1/entities/{kind}/{id}/children", a.handleListChildren)

	a.mux.HandleFunc("POST /v1/instructions", a.handleCreateInstruction)

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	return a
}

// Handler returns the bare http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// decode reads a JSON request body into v, enforcing the body size limit.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		return api.NewInvalidRequestError("content_type", "Content-Type must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return api.NewInvalidRequestError("body",
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

type submitGenerationRequest struct {
	TaskKind   api.TaskKind       `json:"task_kind"`
	TargetKind api.EntityKind     `json:"target_kind"`
	TargetID   string             `json:"target_id"`
	Mode       api.GenerationMode `json:"mode,omitempty"`
	Model      string             `json:"model,omitempty"`
}

func (a *Adapter) handleSubmitGeneration(w http.ResponseWriter, r *http.Request) {
	var req submitGenerationRequest
	if err := a.decode(w, r, &req); err != nil {
		transport.WriteError(w, err)
		return
	}

	id, err := a.engine.SubmitGeneration(r.Context(), engine.SubmitRequest{
		Task:   req.TaskKind,
		Target: api.Ref{Kind: req.TargetKind, ID: req.TargetID},
		Mode:   req.Mode,
		Model:  req.Model,
	})
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusAccepted, map[string]string{"generation_id": id})
}

type submitChildrenRequest struct {
	TaskKind   api.TaskKind   `json:"task_kind"`
	ParentKind api.EntityKind `json:"parent_kind"`
	ParentID   string         `json:"parent_id"`
	Model      string         `json:"model,omitempty"`
}

func (a *Adapter) handleSubmitChildren(w http.ResponseWriter, r *http.Request) {
	var req submitChildrenRequest
	if err := a.decode(w, r, &req); err != nil {
		transport.WriteError(w, err)
		return
	}

	ids, err := a.engine.SubmitChildren(r.Context(), req.TaskKind,
		api.Ref{Kind: req.ParentKind, ID: req.ParentID}, req.Model)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusAccepted, map[string][]string{"generation_ids": ids})
}

func (a *Adapter) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateGenerationID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("id", "malformed generation ID"))
		return
	}
	g, err := a.engine.GetGenerationStatus(r.Context(), id)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, g)
}

func (a *Adapter) handleCancelGeneration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateGenerationID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("id", "malformed generation ID"))
		return
	}
	if err := a.engine.CancelGeneration(r.Context(), id); err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (a *Adapter) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	kind := api.EntityKind(r.URL.Query().Get("target_kind"))
	id := r.URL.Query().Get("target_id")
	if !api.ValidEntityKind(kind) {
		transport.WriteError(w, api.NewInvalidRequestError("target_kind", "unknown entity kind"))
		return
	}
	if !api.ValidateEntityID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("target_id", "malformed entity ID"))
		return
	}

	drafts, err := a.engine.ListDrafts(r.Context(), api.Ref{Kind: kind, ID: id})
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if drafts == nil {
		drafts = []api.Draft{}
	}
	transport.WriteJSON(w, http.StatusOK, drafts)
}

func (a *Adapter) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateDraftID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("id", "malformed draft ID"))
		return
	}
	d, err := a.engine.GetDraft(r.Context(), id)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, d)
}

type selectDraftRequest struct {
	VariantIndex *int `json:"variant_index"`
}

func (a *Adapter) handleSelectDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateDraftID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("id", "malformed draft ID"))
		return
	}
	var req selectDraftRequest
	if err := a.decode(w, r, &req); err != nil {
		transport.WriteError(w, err)
		return
	}
	if req.VariantIndex == nil {
		transport.WriteError(w, api.NewInvalidRequestError("variant_index", "variant_index is required"))
		return
	}

	ent, err := a.engine.SelectDraft(r.Context(), id, *req.VariantIndex)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, ent)
}

func (a *Adapter) handleRejectDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateDraftID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("id", "malformed draft ID"))
		return
	}
	if err := a.engine.RejectDraft(r.Context(), id); err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

type reviseDraftRequest struct {
	Feedback string `json:"feedback"`
}

func (a *Adapter) handleReviseDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateDraftID(id) {
		transport.WriteError(w, api.NewInvalidRequestError("id", "malformed draft ID"))
		return
	}
	var req reviseDraftRequest
	if err := a.decode(w, r, &req); err != nil {
		transport.WriteError(w, err)
		return
	}

	genID, err := a.engine.ReviseDraft(r.Context(), id, req.Feedback)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusAccepted, map[string]string{"generation_id": genID})
}

func (a *Adapter) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var ent api.ContentEntity
	if err := a.decode(w, r, &ent); err != nil {
		transport.WriteError(w, err)
		return
	}
	if err := a.engine.PutEntity(r.Context(), &ent); err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, &ent)
}

// entityRef parses the {kind}/{id} path segments common to the entity
// routes.
func entityRef(r *http.Request) (api.Ref, error) {
	kind := api.EntityKind(r.PathValue("kind"))
	id := r.PathValue("id")
	if !api.ValidEntityKind(kind) {
		return api.Ref{}, api.NewInvalidRequestError("kind", "unknown entity kind")
	}
	if !api.ValidateEntityID(id) {
		return api.Ref{}, api.NewInvalidRequestError("id", "malformed entity ID")
	}
	return api.Ref{Kind: kind, ID: id}, nil
}

func (a *Adapter) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	ent, err := a.engine.GetEntity(r.Context(), ref)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, ent)
}

func (a *Adapter) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if err := a.engine.DeleteEntity(r.Context(), ref); err != nil {
		transport.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) handleListChildren(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	childKind := api.EntityKind(r.URL.Query().Get("kind"))
	children, err := a.engine.ListChildren(r.Context(), ref, childKind)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if children == nil {
		children = []api.ContentEntity{}
	}
	transport.WriteJSON(w, http.StatusOK, children)
}

func (a *Adapter) handleCreateInstruction(w http.ResponseWriter, r *http.Request) {
	var ins api.Instruction
	if err := a.decode(w, r, &ins); err != nil {
		transport.WriteError(w, err)
		return
	}
	if ins.ID == "" {
		ins.ID = api.NewInstructionID()
	}
	if ins.CreatedAt == 0 {
		ins.CreatedAt = time.Now().Unix()
	}
	if err := a.engine.PutInstruction(r.Context(), &ins); err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, &ins)
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		transport.WriteJSON(w, http.StatusServiceUnavailable,
			map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
