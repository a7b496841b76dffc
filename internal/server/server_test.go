package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/SKARN/internal/config"
	"github.com/copyleftdev/SKARN/internal/logging"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Solver.MaxSessions = 16
	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	logger, err := logging.NewLogger(&logging.Config{
		Level:  "error",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

func testRouter(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	srv := NewServer(testConfig(t), testLogger(t))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(buf.Len())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

// createSession creates an empty-model session and returns its id.
func createSession(t *testing.T, r chi.Router) string {
	t.Helper()
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]interface{}{"name": "m"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, ok := resp["session_id"].(string)
	require.True(t, ok, "response missing session_id")
	return id
}

func TestCreateAndDeleteSession(t *testing.T) {
	_, r := testRouter(t)

	id := createSession(t, r)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Built", resp["state"])

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id+"/", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownSession(t *testing.T) {
	_, r := testRouter(t)
	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions/nope/solve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLimit(t *testing.T) {
	srv, r := testRouter(t)
	srv.cfg.Solver.MaxSessions = 1

	createSession(t, r)
	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCreateSessionWithModelAndSolve(t *testing.T) {
	_, r := testRouter(t)

	spec := map[string]interface{}{
		"name": "lp",
		"variables": []map[string]interface{}{
			{"name": "x", "lower": 0.5},
			{"name": "y", "lower": 0.0},
		},
		"constraints": []map[string]interface{}{
			{
				"name":  "balance",
				"lower": 5.0,
				"upper": 5.0,
				"body": map[string]interface{}{
					"terms": []map[string]interface{}{
						{"var": "x", "coeff": 1.0},
						{"var": "y", "coeff": 2.0},
					},
				},
			},
		},
		"objectives": []map[string]interface{}{
			{
				"name":  "cost",
				"sense": "minimize",
				"expr": map[string]interface{}{
					"terms": []map[string]interface{}{
						{"var": "x", "coeff": 1.0},
						{"var": "y", "coeff": 1.0},
					},
					"offset": 3.0,
				},
			},
		},
	}

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/sessions", spec)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := resp["session_id"].(string)

	w, resp = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/solve", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Optimal", resp["status"])
	assert.InDelta(t, 5.75, resp["objective"].(float64), 1e-6)

	solution := resp["solution"].(map[string]interface{})
	assert.InDelta(t, 0.5, solution["x"].(float64), 1e-6)
	assert.InDelta(t, 2.25, solution["y"].(float64), 1e-6)

	// Results stay retrievable until the next structural change.
	w, resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/results", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Optimal", resp["status"])
}

func TestIncrementalMutations(t *testing.T) {
	_, r := testRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	w, _ := doJSON(t, r, http.MethodPost, base+"/variables", map[string]interface{}{
		"name": "x", "lower": 0.0, "upper": 10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Duplicate names are rejected before touching the session.
	w, _ = doJSON(t, r, http.MethodPost, base+"/variables", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, base+"/constraints", map[string]interface{}{
		"name":  "floor",
		"lower": 4.0,
		"body": map[string]interface{}{
			"terms": []map[string]interface{}{{"var": "x", "coeff": 1.0}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = doJSON(t, r, http.MethodPost, base+"/objectives", map[string]interface{}{
		"name": "cost",
		"expr": map[string]interface{}{
			"terms": []map[string]interface{}{{"var": "x", "coeff": 1.0}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, resp := doJSON(t, r, http.MethodPost, base+"/solve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 4.0, resp["objective"].(float64), 1e-6)

	// Dropping the floor constraint moves the optimum to the lower bound.
	w, _ = doJSON(t, r, http.MethodDelete, base+"/constraints/floor", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, resp = doJSON(t, r, http.MethodPost, base+"/solve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.0, resp["objective"].(float64), 1e-6)
}

func TestUpdateVariableBounds(t *testing.T) {
	_, r := testRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	w, _ := doJSON(t, r, http.MethodPost, base+"/variables", map[string]interface{}{
		"name": "x", "lower": 0.0, "upper": 10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, base+"/objectives", map[string]interface{}{
		"name":  "gain",
		"sense": "maximize",
		"expr": map[string]interface{}{
			"terms": []map[string]interface{}{{"var": "x", "coeff": 1.0}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := doJSON(t, r, http.MethodPost, base+"/solve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 10.0, resp["objective"].(float64), 1e-6)

	w, _ = doJSON(t, r, http.MethodPatch, base+"/variables/x", map[string]interface{}{"upper": 6.0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = doJSON(t, r, http.MethodPost, base+"/solve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 6.0, resp["objective"].(float64), 1e-6)
}

func TestConstraintReferencingUnknownVariable(t *testing.T) {
	_, r := testRouter(t)
	id := createSession(t, r)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/constraints", map[string]interface{}{
		"name":  "bad",
		"upper": 1.0,
		"body": map[string]interface{}{
			"terms": []map[string]interface{}{{"var": "ghost", "coeff": 1.0}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "ghost")
}

func TestLoadVarsEndpoint(t *testing.T) {
	_, r := testRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	// Loading before any solve is a conflict with the session state.
	w, _ := doJSON(t, r, http.MethodPost, base+"/load", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, base+"/variables", map[string]interface{}{
		"name": "x", "lower": 2.0, "upper": 10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, base+"/objectives", map[string]interface{}{
		"name": "cost",
		"expr": map[string]interface{}{
			"terms": []map[string]interface{}{{"var": "x", "coeff": 1.0}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, base+"/solve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, r, http.MethodPost, base+"/load", map[string]interface{}{
		"variables": []string{"x"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	values := resp["values"].(map[string]interface{})
	assert.InDelta(t, 2.0, values["x"].(float64), 1e-6)
}

func TestInfeasibleModelReportsStatus(t *testing.T) {
	_, r := testRouter(t)

	spec := map[string]interface{}{
		"name": "bad",
		"variables": []map[string]interface{}{
			{"name": "x", "lower": 0.0, "upper": 1.0},
		},
		"constraints": []map[string]interface{}{
			{
				"name":  "impossible",
				"lower": 5.0,
				"upper": 5.0,
				"body": map[string]interface{}{
					"terms": []map[string]interface{}{{"var": "x", "coeff": 1.0}},
				},
			},
		},
		"objectives": []map[string]interface{}{
			{
				"name": "cost",
				"expr": map[string]interface{}{
					"terms": []map[string]interface{}{{"var": "x", "coeff": 1.0}},
				},
			},
		},
	}
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/sessions", spec)
	require.Equal(t, http.StatusCreated, w.Code)
	id := resp["session_id"].(string)

	// An infeasible model still solves with HTTP 200; the outcome lives in
	// the status field.
	w, resp = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/solve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Infeasible", resp["status"])
	assert.NotContains(t, resp, "objective")
}

func TestBadModelAbortsCreation(t *testing.T) {
	_, r := testRouter(t)

	spec := map[string]interface{}{
		"name": "broken",
		"constraints": []map[string]interface{}{
			{
				"name": "dangling",
				"body": map[string]interface{}{
					"terms": []map[string]interface{}{{"var": "nope", "coeff": 1.0}},
				},
			},
		},
	}
	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions", spec)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
