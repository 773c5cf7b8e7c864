package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/jobs"
	"github.com/siftlabs/sift/internal/providers"
	"github.com/siftlabs/sift/internal/store"
	"github.com/siftlabs/sift/internal/svcctx"
	"github.com/siftlabs/sift/internal/types"
)

type testEnv struct {
	server   *httptest.Server
	manager  *jobs.Manager
	store    *store.Store
	mock     *providers.MockClient
	registry *providers.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mock := providers.NewMockClient()
	mock.ResponseText = `{"habitat": {"value": "forest", "confidence": 0.9, "supporting_sentence_ids": [1], "rationale": "stated directly"}}`

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Register("mock", mock)

	manager := jobs.NewManager(logger)
	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Manager:  manager,
		Rows:     st,
		Results:  st,
		Feedback: st,
		Resolver: registry,
		Logger:   logger,
	})
	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
		Processor: processor,
		QueueSize: 16,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	scheduler.RunWorkers(ctx, 2)

	services := &svcctx.Services{
		JobManager: manager,
		Scheduler:  scheduler,
		Registry:   registry,
		Store:      st,
		Logger:     logger,
	}

	mux := http.NewServeMux()
	reg := api.NewRegistry()
	for _, ep := range All() {
		reg.Register(ep)
	}
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, manager: manager, store: st, mock: mock, registry: registry}
}

func (env *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func (env *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(env.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func extractReq() ExtractRequest {
	return ExtractRequest{
		Rows: []types.Row{
			{ID: "r1", Text: "The fox lives in the forest. It hunts at night."},
			{ID: "r2", Text: "The owl nests in the forest canopy."},
		},
		Categories: []types.Category{
			{Name: "habitat", Prompt: "Determine the habitat in [CATEGORY_NAME]."},
		},
		Provider: "mock",
	}
}

func waitForTerminal(t *testing.T, manager *jobs.Manager, jobID string) jobs.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := manager.Get(jobID)
		if ok && record.Status.Terminal() {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return jobs.Record{}
}

func TestHealthAndStatus(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.Unmarshal(raw, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want ok", health.Status)
	}

	resp, raw = env.get(t, "/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status = %d, want 200", resp.StatusCode)
	}
	var status StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if len(status.Providers) != 1 || status.Providers[0] != "mock" {
		t.Errorf("status.Providers = %v, want [mock]", status.Providers)
	}
}

func TestExtractValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		mutate  func(*ExtractRequest)
		wantMsg string
	}{
		{"empty rows", func(r *ExtractRequest) { r.Rows = nil }, "rows must not be empty"},
		{"empty categories", func(r *ExtractRequest) { r.Categories = nil }, "categories must not be empty"},
		{"row without text", func(r *ExtractRequest) { r.Rows[0].Text = "" }, "has no text"},
		{"category without name", func(r *ExtractRequest) { r.Categories[0].Name = "" }, "has no name"},
		{"category without prompt", func(r *ExtractRequest) { r.Categories[0].Prompt = "" }, "has no prompt"},
		{"unknown provider", func(r *ExtractRequest) { r.Provider = "nope" }, "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := extractReq()
			tt.mutate(&req)
			resp, raw := env.postJSON(t, "/api/v1/extract", req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", resp.StatusCode, raw)
			}
			var errResp ErrorResponse
			if err := json.Unmarshal(raw, &errResp); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}
			if !strings.Contains(errResp.Error, tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", errResp.Error, tt.wantMsg)
			}
		})
	}
}

func TestExtractHappyPath(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.postJSON(t, "/api/v1/extract", extractReq())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", resp.StatusCode, raw)
	}

	var ack ExtractResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.JobID == "" {
		t.Fatal("ack.JobID is empty")
	}
	if ack.TotalRows != 2 {
		t.Errorf("ack.TotalRows = %d, want 2", ack.TotalRows)
	}

	record := waitForTerminal(t, env.manager, ack.JobID)
	if record.Status != jobs.StatusCompleted {
		t.Fatalf("job status = %s, want completed (errors: %v)", record.Status, record.Errors)
	}

	// Status endpoint reflects the finished job.
	resp, raw = env.get(t, "/api/v1/jobs/"+ack.JobID+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint = %d, want 200", resp.StatusCode)
	}
	var got jobs.Record
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if got.ProcessedRows != 2 || got.ProgressPercent != 100 {
		t.Errorf("processed = %d (%.0f%%), want 2 (100%%)", got.ProcessedRows, got.ProgressPercent)
	}

	// Results are available.
	resp, raw = env.get(t, "/api/v1/jobs/"+ack.JobID+"/results")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results endpoint = %d, want 200 (body %s)", resp.StatusCode, raw)
	}
	var results JobResultsResponse
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if len(results.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results.Results))
	}
	habitat, ok := results.Results[0].Extracted["habitat"]
	if !ok {
		t.Fatal("first result missing habitat extraction")
	}
	if habitat.Value == nil || *habitat.Value != "forest" {
		t.Errorf("habitat.Value = %v, want forest", habitat.Value)
	}

	// Jobs listing contains the job.
	resp, raw = env.get(t, "/api/v1/jobs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("jobs list = %d, want 200", resp.StatusCode)
	}
	var list JobsListResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if list.Count != 1 || len(list.Jobs) != 1 {
		t.Errorf("list.Count = %d, want 1", list.Count)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/v1/jobs/nope/status")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp, _ = env.get(t, "/api/v1/jobs/nope/results")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("results = %d, want 404", resp.StatusCode)
	}
}

func TestResultsNotReadyAndGone(t *testing.T) {
	env := newTestEnv(t)

	// A job created but never submitted stays pending.
	jobID := env.manager.Create(extractReq().Categories, "mock", "", 2)

	resp, raw := env.get(t, "/api/v1/jobs/"+jobID+"/results")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pending results = %d, want 409 (body %s)", resp.StatusCode, raw)
	}

	env.manager.Cancel(jobID)
	resp, _ = env.get(t, "/api/v1/jobs/"+jobID+"/results")
	if resp.StatusCode != http.StatusGone {
		t.Errorf("cancelled results = %d, want 410", resp.StatusCode)
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)

	jobID := env.manager.Create(extractReq().Categories, "mock", "", 2)

	resp, raw := env.postJSON(t, "/api/v1/jobs/"+jobID+"/cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel = %d, want 200 (body %s)", resp.StatusCode, raw)
	}
	var cancelResp CancelResponse
	if err := json.Unmarshal(raw, &cancelResp); err != nil {
		t.Fatalf("unmarshal cancel: %v", err)
	}
	if !cancelResp.Cancelled || cancelResp.Status != string(jobs.StatusCancelled) {
		t.Errorf("cancel response = %+v, want cancelled=true status=cancelled", cancelResp)
	}

	// Second cancel is a no-op.
	resp, raw = env.postJSON(t, "/api/v1/jobs/"+jobID+"/cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second cancel = %d, want 200", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &cancelResp); err != nil {
		t.Fatalf("unmarshal second cancel: %v", err)
	}
	if cancelResp.Cancelled {
		t.Error("second cancel reported Cancelled=true")
	}

	resp, _ = env.postJSON(t, "/api/v1/jobs/nope/cancel", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown cancel = %d, want 404", resp.StatusCode)
	}
}

func TestFeedback(t *testing.T) {
	env := newTestEnv(t)

	jobID := env.manager.Create(extractReq().Categories, "mock", "", 2)
	manual := "woodland"

	req := FeedbackRequest{Items: []FeedbackItem{
		{Category: "habitat", ValidationStatus: types.ValidationCorrected, Sentences: []int{1}, ManualValue: &manual},
		{Category: "habitat", ValidationStatus: types.ValidationConfirmed},
	}}

	resp, raw := env.postJSON(t, "/api/v1/jobs/"+jobID+"/rows/r1/feedback", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feedback = %d, want 200 (body %s)", resp.StatusCode, raw)
	}
	var ack FeedbackResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("unmarshal feedback ack: %v", err)
	}
	if ack.Saved != 2 {
		t.Errorf("ack.Saved = %d, want 2", ack.Saved)
	}

	stored, err := env.store.FeedbackByJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("FeedbackByJob: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("len(stored) = %d, want 2", len(stored))
	}
	if stored[0].RowID != "r1" || stored[0].ManualValue == nil || *stored[0].ManualValue != "woodland" {
		t.Errorf("stored[0] = %+v, want r1/woodland", stored[0])
	}

	t.Run("invalid status rejected", func(t *testing.T) {
		bad := FeedbackRequest{Items: []FeedbackItem{
			{Category: "habitat", ValidationStatus: "maybe"},
		}}
		resp, _ := env.postJSON(t, "/api/v1/jobs/"+jobID+"/rows/r1/feedback", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("corrected requires manual value", func(t *testing.T) {
		bad := FeedbackRequest{Items: []FeedbackItem{
			{Category: "habitat", ValidationStatus: types.ValidationCorrected},
		}}
		resp, _ := env.postJSON(t, "/api/v1/jobs/"+jobID+"/rows/r1/feedback", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		resp, _ := env.postJSON(t, "/api/v1/jobs/nope/rows/r1/feedback", req)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestProviders(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.get(t, "/api/v1/providers")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("providers = %d, want 200", resp.StatusCode)
	}
	var list ProvidersResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal providers: %v", err)
	}
	if len(list.Configured) != 1 || list.Configured[0] != "mock" {
		t.Errorf("Configured = %v, want [mock]", list.Configured)
	}
	if len(list.Providers) == 0 {
		t.Error("catalog is empty")
	}
}

func TestUploadCSV(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "animals.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(fw, "id,text\nr1,The fox lives in the forest.\nr2,The owl nests in the canopy.\n")
	mw.Close()

	resp, err := http.Post(env.server.URL+"/api/v1/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload = %d, want 200 (body %s)", resp.StatusCode, raw)
	}
	var uploaded UploadResponse
	if err := json.Unmarshal(raw, &uploaded); err != nil {
		t.Fatalf("unmarshal upload: %v", err)
	}
	if uploaded.Count != 2 || len(uploaded.Rows) != 2 {
		t.Fatalf("Count = %d, want 2", uploaded.Count)
	}
	if uploaded.Rows[0].ID != "r1" || uploaded.Rows[0].Text != "The fox lives in the forest." {
		t.Errorf("Rows[0] = %+v", uploaded.Rows[0])
	}

	t.Run("unsupported extension", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", "notes.txt")
		fmt.Fprint(fw, "plain text")
		mw.Close()

		resp, err := http.Post(env.server.URL+"/api/v1/upload", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatalf("POST upload: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}
