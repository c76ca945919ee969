package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simulator/pkg/batch"
	"simulator/pkg/engine"
	"simulator/pkg/eval"
	"simulator/pkg/llm"
	"simulator/pkg/prompts"
	"simulator/pkg/results"
	"simulator/pkg/session"
)

// quickClient ends every conversation on the first agent turn and
// scores every evaluation 3.
type quickClient struct{}

func (quickClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if req.JSONMode {
		return llm.CompletionResponse{Content: `{"score": 3, "comment": "отлично"}`}, nil
	}
	return llm.CompletionResponse{Content: "Готово. end_call"}, nil
}

func (quickClient) ModelName() string { return "quick-stub" }

func newTestServer(t *testing.T) (*Server, *batch.Processor) {
	t.Helper()

	store := prompts.NewStore(t.TempDir())
	requester := llm.NewRequester(quickClient{})
	eng := engine.New(requester, store, session.NewManager(""), engine.Options{MaxTurns: 5, Timeout: time.Minute})
	processor := batch.NewProcessor(eng, eval.New(requester, store), batch.NewStore(), 2)

	srv := NewServer(processor, results.NewExporter(t.TempDir()))
	return srv, processor
}

func newMux(srv *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleIndex)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/batches", srv.handleBatches)
	mux.HandleFunc("/api/batches/", srv.handleBatch)
	return mux
}

func doRequest(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// waitForStatus polls the store until the job reaches a terminal state.
func waitForStatus(t *testing.T, processor *batch.Processor, batchID string, want batch.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := processor.Store().Get(batchID)
		require.NoError(t, err)
		if job.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("batch %s did not reach status %s", batchID, want)
}

func launchPayload(names ...string) map[string]any {
	scenarios := make([]map[string]any, len(names))
	for i, name := range names {
		scenarios[i] = map[string]any{"name": name, "variables": map[string]string{}}
	}
	return map[string]any{"scenarios": scenarios}
}

func TestServiceInfo(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, serviceName, body["service"])
	assert.Contains(t, body, "endpoints")
}

func TestUnknownEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", decodeBody(t, rec)["error"])
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestHealthUnhealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.healthy = func() error { return errors.New("API key not configured") }
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "API key not configured", body["error"])
}

func TestLaunchBatch(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodPost, "/api/batches", launchPayload("a", "b"))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	batchID, _ := body["batch_id"].(string)
	require.NotEmpty(t, batchID)
	assert.Equal(t, "launched", body["status"])
	assert.Equal(t, float64(2), body["total_scenarios"])

	waitForStatus(t, processor, batchID, batch.StatusCompleted)
}

func TestLaunchValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	cases := []struct {
		name    string
		body    any
		wantErr string
	}{
		{"empty scenarios", map[string]any{"scenarios": []any{}}, "No scenarios provided"},
		{"missing name", map[string]any{"scenarios": []map[string]any{
			{"variables": map[string]string{}},
		}}, "Scenario 0 missing 'name' field"},
		{"missing variables", map[string]any{"scenarios": []map[string]any{
			{"name": "a", "variables": map[string]string{}},
			{"name": "b"},
		}}, "Scenario 1 missing 'variables' field"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodPost, "/api/batches", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantErr, decodeBody(t, rec)["error"])
		})
	}
}

func TestLaunchRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	req := httptest.NewRequest(http.MethodPost, "/api/batches", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request must be JSON", decodeBody(t, rec)["error"])
}

func TestBatchStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodGet, "/api/batches/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchStatusAndResults(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodPost, "/api/batches", launchPayload("a", "b", "c"))
	require.Equal(t, http.StatusCreated, rec.Code)
	batchID := decodeBody(t, rec)["batch_id"].(string)

	waitForStatus(t, processor, batchID, batch.StatusCompleted)

	status := doRequest(mux, http.MethodGet, "/api/batches/"+batchID, nil)
	require.Equal(t, http.StatusOK, status.Code)
	statusBody := decodeBody(t, status)
	assert.Equal(t, "completed", statusBody["status"])
	assert.Equal(t, float64(100), statusBody["progress"])
	assert.Equal(t, float64(3), statusBody["completed_scenarios"])
	assert.NotContains(t, statusBody, "results")

	res := doRequest(mux, http.MethodGet, fmt.Sprintf("/api/batches/%s/results", batchID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	resBody := decodeBody(t, res)
	assert.Equal(t, float64(3), resBody["total_results"])
	records, ok := resBody["results"].([]any)
	require.True(t, ok)
	require.Len(t, records, 3)
	first := records[0].(map[string]any)
	assert.Equal(t, "a", first["scenario"])
	assert.Equal(t, float64(3), first["score"])

	list := doRequest(mux, http.MethodGet, "/api/batches", nil)
	require.Equal(t, http.StatusOK, list.Code)
	batches := decodeBody(t, list)["batches"].([]any)
	require.Len(t, batches, 1)
	assert.NotContains(t, batches[0].(map[string]any), "results")
}

func TestBatchResultsNotCompleted(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	batchID := processor.CreateJob([]engine.Scenario{{Name: "a", Variables: map[string]string{}}})

	rec := doRequest(mux, http.MethodGet, fmt.Sprintf("/api/batches/%s/results", batchID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Batch not completed", body["error"])
	assert.Equal(t, "pending", body["current_status"])
}

func TestBatchResultsCSVDownload(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodPost, "/api/batches", launchPayload("a"))
	batchID := decodeBody(t, rec)["batch_id"].(string)
	waitForStatus(t, processor, batchID, batch.StatusCompleted)

	// Exports are written right after the job turns completed.
	var res *httptest.ResponseRecorder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res = doRequest(mux, http.MethodGet, fmt.Sprintf("/api/batches/%s/results?format=csv", batchID), nil)
		if res.Code == http.StatusOK {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, res.Body.String(), "session_id,scenario,prompt_version")
}

func TestBatchSummary(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodPost, "/api/batches", launchPayload("a", "b"))
	batchID := decodeBody(t, rec)["batch_id"].(string)
	waitForStatus(t, processor, batchID, batch.StatusCompleted)

	res := doRequest(mux, http.MethodGet, fmt.Sprintf("/api/batches/%s/summary", batchID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody(t, res)
	assert.Equal(t, float64(2), body["total_scenarios"])
	assert.Equal(t, float64(1), body["success_rate"])
}

func TestListBatches(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	processor.CreateJob([]engine.Scenario{{Name: "a"}})
	processor.CreateJob([]engine.Scenario{{Name: "b"}})

	rec := doRequest(mux, http.MethodGet, "/api/batches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["total_count"])
}

func TestCancelBatch(t *testing.T) {
	srv, processor := newTestServer(t)
	mux := newMux(srv)

	batchID := processor.CreateJob([]engine.Scenario{{Name: "a", Variables: map[string]string{}}})

	// Pending jobs cannot be cancelled.
	rec := doRequest(mux, http.MethodPost, fmt.Sprintf("/api/batches/%s/cancel", batchID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/api/batches/no-such-id/cancel", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := newMux(srv)

	rec := doRequest(mux, http.MethodDelete, "/api/batches", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/api/batches/some-id", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
