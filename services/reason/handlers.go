// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reason

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/schema"
	"github.com/neurosym/neurosym/services/reason/trainer"
)

// MaxGraphNameLength bounds registry names. Names appear in URL paths
// and storage keys, so they stay short and path-safe.
const MaxGraphNameLength = 128

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("graphname", validateGraphName)
	}
}

// validateGraphName restricts names to letters, digits, '.', '_', '-'.
func validateGraphName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if len(name) == 0 || len(name) > MaxGraphNameLength {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// FieldErrors carries schema validation details when present.
	FieldErrors []schema.FieldError `json:"field_errors,omitempty"`
}

// CreateGraphRequest loads a schema document under a name.
type CreateGraphRequest struct {
	Name     string          `json:"name" binding:"required,graphname"`
	Document schema.Document `json:"document" binding:"required"`
}

// InferRequest runs inference with optional evidence.
type InferRequest struct {
	// Evidence maps variable names to locked truth values in [0,1].
	Evidence map[string]float64 `json:"evidence" binding:"omitempty,dive,gte=0,lte=1"`
}

// QueryRequest asks for one variable's value under evidence.
type QueryRequest struct {
	Variable string             `json:"variable" binding:"required"`
	Evidence map[string]float64 `json:"evidence" binding:"omitempty,dive,gte=0,lte=1"`
}

// QueryResponse carries a single queried value.
type QueryResponse struct {
	Variable  string  `json:"variable"`
	Value     float64 `json:"value"`
	Converged bool    `json:"converged"`
}

// ExplainResponse carries non-evidence values after inference.
type ExplainResponse struct {
	Values map[string]float64 `json:"values"`
}

// TrainRequest fits learnable weights to examples.
type TrainRequest struct {
	Examples []trainer.Example `json:"examples" binding:"required,min=1"`
	Epochs   int               `json:"epochs" binding:"omitempty,gte=1"`
}

// GraphResponse summarizes a registered graph.
type GraphResponse struct {
	Name  string      `json:"name"`
	Stats graph.Stats `json:"stats"`
}

// Handlers holds the HTTP handlers for the reasoning service.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers backed by service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// DefaultTrainEpochs is used when a training request omits the budget.
const DefaultTrainEpochs = 50

// HandleCreateGraph loads a schema document into the registry.
//
// Response:
//
//	201 Created: GraphResponse
//	400 Bad Request: invalid body or schema validation failure
//	409 Conflict: name already in use
func (h *Handlers) HandleCreateGraph(c *gin.Context) {
	log := h.service.log.With("request_id", getOrCreateRequestID(c), "handler", "HandleCreateGraph")

	var req CreateGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	report, err := h.service.CreateGraph(req.Name, &req.Document)
	if err != nil {
		switch {
		case errors.Is(err, ErrGraphExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "GRAPH_EXISTS"})
		case errors.Is(err, graph.ErrInvalidDocument):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:       "document failed validation",
				Code:        "INVALID_DOCUMENT",
				FieldErrors: report.Errors,
			})
		default:
			log.Error("create failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "CREATE_FAILED"})
		}
		return
	}

	e, _ := h.service.Engine(req.Name)
	c.JSON(http.StatusCreated, GraphResponse{Name: req.Name, Stats: e.Stats()})
}

// HandleListGraphs lists registered graph names.
func (h *Handlers) HandleListGraphs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"graphs": h.service.ListGraphs()})
}

// HandleGetGraph returns a graph's stats.
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	e, ok := h.engineOr404(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GraphResponse{Name: c.Param("name"), Stats: e.Stats()})
}

// HandleDeleteGraph removes a graph from the registry and store.
func (h *Handlers) HandleDeleteGraph(c *gin.Context) {
	name := c.Param("name")
	if err := h.service.DeleteGraph(name); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "GRAPH_NOT_FOUND"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleReplaceGraph swaps a graph's document in place.
//
// Response:
//
//	200 OK: GraphResponse
//	400 Bad Request: schema validation failure (current graph kept)
//	404 Not Found: unknown graph
func (h *Handlers) HandleReplaceGraph(c *gin.Context) {
	log := h.service.log.With("request_id", getOrCreateRequestID(c), "handler", "HandleReplaceGraph")
	name := c.Param("name")

	var doc schema.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		log.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	report, err := h.service.ReplaceGraph(name, &doc)
	if err != nil {
		switch {
		case errors.Is(err, ErrGraphNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "GRAPH_NOT_FOUND"})
		case errors.Is(err, graph.ErrInvalidDocument):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:       "document failed validation",
				Code:        "INVALID_DOCUMENT",
				FieldErrors: report.Errors,
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "REPLACE_FAILED"})
		}
		return
	}

	e, _ := h.service.Engine(name)
	c.JSON(http.StatusOK, GraphResponse{Name: name, Stats: e.Stats()})
}

// HandleInfer runs inference with the supplied evidence.
//
// Response:
//
//	200 OK: solver.Result. Converged=false is still a 200; callers
//	decide how to treat a non-converged fixed point.
func (h *Handlers) HandleInfer(c *gin.Context) {
	e, ok := h.engineOr404(c)
	if !ok {
		return
	}

	var req InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	start := time.Now()
	result, err := e.InferWithEvidence(c.Request.Context(), req.Evidence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INFER_FAILED"})
		return
	}
	observeInference(c.Param("name"), result, time.Since(start))

	c.JSON(http.StatusOK, result)
}

// HandleQuery returns one variable's value under evidence. Unknown
// variables report the neutral 0.5 rather than an error.
func (h *Handlers) HandleQuery(c *gin.Context) {
	e, ok := h.engineOr404(c)
	if !ok {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	start := time.Now()
	value, result, err := e.Query(c.Request.Context(), req.Variable, req.Evidence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INFER_FAILED"})
		return
	}
	observeInference(c.Param("name"), result, time.Since(start))

	c.JSON(http.StatusOK, QueryResponse{
		Variable:  req.Variable,
		Value:     value,
		Converged: result.Converged,
	})
}

// HandleExplain returns post-inference values for all non-evidence
// variables.
func (h *Handlers) HandleExplain(c *gin.Context) {
	e, ok := h.engineOr404(c)
	if !ok {
		return
	}

	var req InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	values, err := e.Explain(c.Request.Context(), req.Evidence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INFER_FAILED"})
		return
	}
	c.JSON(http.StatusOK, ExplainResponse{Values: values})
}

// HandleTrain fits learnable weights to the posted examples and
// persists the trained document.
//
// Response:
//
//	200 OK: trainer.Result
//	400 Bad Request: invalid body
//	499 (client closed): training cancelled via request context
func (h *Handlers) HandleTrain(c *gin.Context) {
	log := h.service.log.With("request_id", getOrCreateRequestID(c), "handler", "HandleTrain")

	e, ok := h.engineOr404(c)
	if !ok {
		return
	}

	var req TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	epochs := req.Epochs
	if epochs <= 0 {
		epochs = DefaultTrainEpochs
	}

	start := time.Now()
	result, err := e.Train(c.Request.Context(), req.Examples, epochs)
	if err != nil {
		log.Warn("training interrupted", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "TRAIN_INTERRUPTED"})
		return
	}
	observeTraining(c.Param("name"), result, time.Since(start))

	h.service.PersistTrained(c.Param("name"), e.Values())
	c.JSON(http.StatusOK, result)
}

// HandleExport returns the graph's schema snapshot including trained
// weights.
func (h *Handlers) HandleExport(c *gin.Context) {
	e, ok := h.engineOr404(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Export())
}

// HandleValidate validates a document without loading it.
func (h *Handlers) HandleValidate(c *gin.Context) {
	var doc schema.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	c.JSON(http.StatusOK, schema.Validate(&doc))
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports readiness with the registry size.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"graphs": len(h.service.ListGraphs()),
	})
}

func (h *Handlers) engineOr404(c *gin.Context) (*engine.Engine, bool) {
	e, err := h.service.Engine(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "GRAPH_NOT_FOUND"})
		return nil, false
	}
	return e, true
}
