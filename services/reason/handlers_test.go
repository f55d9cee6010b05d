// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reason

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurosym/neurosym/services/reason/schema"
	"github.com/neurosym/neurosym/services/reason/solver"
	"github.com/neurosym/neurosym/services/reason/store"
	"github.com/neurosym/neurosym/services/reason/trainer"
)

func newTestRouter(t *testing.T, cfg ServiceConfig) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service, err := NewService(cfg)
	require.NoError(t, err)

	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(service))
	return router, service
}

func sampleDocument() schema.Document {
	priorA := 0.3
	priorB := 0.1
	weight := 0.9
	return schema.Document{
		Version: schema.Version,
		Name:    "weather",
		Variables: map[string]schema.VariableSpec{
			"raining":    {Type: schema.VariableTypeBool, Prior: &priorA},
			"wet_ground": {Type: schema.VariableTypeBool, Prior: &priorB},
		},
		Rules: []schema.RuleSpec{
			{ID: "r1", Type: schema.RuleImplication, Inputs: []string{"raining"}, Output: "wet_ground", Weight: &weight},
		},
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSample(t *testing.T, router *gin.Engine) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs", CreateGraphRequest{
		Name:     "weather",
		Document: sampleDocument(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHandleCreateGraph(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())

	t.Run("creates and reports stats", func(t *testing.T) {
		createSample(t, router)

		var resp GraphResponse
		w := doJSON(t, router, http.MethodGet, "/v1/reason/graphs/weather", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Stats.Variables)
		assert.Equal(t, 1, resp.Stats.Rules)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs", CreateGraphRequest{
			Name:     "weather",
			Document: sampleDocument(),
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid document returns field errors", func(t *testing.T) {
		doc := sampleDocument()
		doc.Rules[0].Type = "XOR"
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs", CreateGraphRequest{
			Name:     "broken",
			Document: doc,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "INVALID_DOCUMENT", resp.Code)
		assert.NotEmpty(t, resp.FieldErrors)
	})

	t.Run("missing name rejected by binding", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs", gin.H{"document": sampleDocument()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("path-unsafe name rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs", CreateGraphRequest{
			Name:     "weather/../etc",
			Document: sampleDocument(),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleInferAndQuery(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())
	createSample(t, router)

	t.Run("infer with evidence", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/infer", InferRequest{
			Evidence: map[string]float64{"raining": 1},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result solver.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Converged)
		assert.Greater(t, result.Values["wet_ground"], 0.1)
	})

	t.Run("query single variable", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/query", QueryRequest{
			Variable: "wet_ground",
			Evidence: map[string]float64{"raining": 1},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp QueryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Greater(t, resp.Value, 0.1)
		assert.True(t, resp.Converged)
	})

	t.Run("query unknown variable reports neutral", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/query", QueryRequest{
			Variable: "fog",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp QueryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0.5, resp.Value)
	})

	t.Run("evidence out of range rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/infer", InferRequest{
			Evidence: map[string]float64{"raining": 1.5},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown graph", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/absent/infer", InferRequest{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleExplain(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())
	createSample(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/explain", InferRequest{
		Evidence: map[string]float64{"raining": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ExplainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotContains(t, resp.Values, "raining")
	assert.Contains(t, resp.Values, "wet_ground")
}

func TestHandleTrainAndExport(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())
	createSample(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/train", TrainRequest{
		Examples: []trainer.Example{
			{Inputs: map[string]float64{"raining": 1}, Outputs: map[string]float64{"wet_ground": 0.7}},
		},
		Epochs: 20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result trainer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.NotEmpty(t, result.History)

	var doc schema.Document
	w = doJSON(t, router, http.MethodGet, "/v1/reason/graphs/weather/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Rules, 1)
	require.NotNil(t, doc.Rules[0].Weight)
	assert.InDelta(t, result.Weights["r1"], *doc.Rules[0].Weight, 1e-12)

	t.Run("empty example list rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/train", TrainRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleValidate(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())

	doc := sampleDocument()
	doc.Version = ""
	w := doJSON(t, router, http.MethodPost, "/v1/reason/validate", doc)
	require.Equal(t, http.StatusOK, w.Code)

	var report schema.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Errors)
}

func TestHandleDeleteGraph(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())
	createSample(t, router)

	w := doJSON(t, router, http.MethodDelete, "/v1/reason/graphs/weather", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/reason/graphs/weather", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	router, _ := newTestRouter(t, DefaultServiceConfig())

	w := doJSON(t, router, http.MethodGet, "/v1/reason/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/reason/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleTrainPersistsValues(t *testing.T) {
	st, err := store.NewStore(store.InMemoryConfig())
	require.NoError(t, err)
	defer st.Close()

	router, _ := newTestRouter(t, ServiceConfig{Store: st})
	createSample(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/reason/graphs/weather/train", TrainRequest{
		Examples: []trainer.Example{
			{Inputs: map[string]float64{"raining": 1}, Outputs: map[string]float64{"wet_ground": 0.7}},
		},
		Epochs: 20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result trainer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	// The trained document lands in the store.
	doc, err := st.GetDocument("weather")
	require.NoError(t, err)
	require.Len(t, doc.Rules, 1)
	require.NotNil(t, doc.Rules[0].Weight)
	assert.InDelta(t, result.Weights["r1"], *doc.Rules[0].Weight, 1e-12)

	// So do the engine's inference values.
	values, err := st.GetValues("weather")
	require.NoError(t, err)
	require.NotEmpty(t, values)
	for name, v := range values {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
	assert.Contains(t, values, "raining")
	assert.Contains(t, values, "wet_ground")
}

func TestPersistenceAcrossRestart(t *testing.T) {
	st, err := store.NewStore(store.InMemoryConfig())
	require.NoError(t, err)
	defer st.Close()

	router, _ := newTestRouter(t, ServiceConfig{Store: st})
	createSample(t, router)

	// A fresh service over the same store sees the graph.
	router2, service2 := newTestRouter(t, ServiceConfig{Store: st})
	assert.Equal(t, []string{"weather"}, service2.ListGraphs())

	w := doJSON(t, router2, http.MethodPost, "/v1/reason/graphs/weather/query", QueryRequest{
		Variable: "wet_ground",
		Evidence: map[string]float64{"raining": 1},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}
