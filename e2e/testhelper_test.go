// Package e2e exercises the whole generation flow, wire to disk, against a
// mock of the remote service.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
	"github.com/blacktop/acestep/internal/gen"
	"github.com/blacktop/acestep/internal/output"
	"github.com/blacktop/acestep/internal/task"
)

// mockService fakes the generation service: it accepts one task, reports it
// processing until the scripted poll count is reached, then settles.
type mockService struct {
	mu             sync.Mutex
	taskID         string
	pollsUntilDone int
	failReason     string

	resultJSON string            // inner payload delivered on success
	audio      map[string][]byte // downloadable files by service path

	polls     int
	submitted json.RawMessage // last param_obj received
}

func newMockService() *mockService {
	return &mockService{
		taskID:         "task-e2e-1",
		pollsUntilDone: 2,
		audio:          map[string][]byte{},
	}
}

// setResult installs the success payload the way the service delivers it:
// a JSON string nested inside the status entry.
func (m *mockService) setResult(t *testing.T, items []map[string]any) {
	t.Helper()
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("encoding mock result: %v", err)
	}
	m.resultJSON = string(data)
}

func (m *mockService) submittedRequest(t *testing.T) *api.GenerationRequest {
	t.Helper()
	m.mu.Lock()
	raw := m.submitted
	m.mu.Unlock()
	if raw == nil {
		t.Fatal("nothing was submitted")
	}
	var req api.GenerationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("submitted param_obj does not parse: %v", err)
	}
	return &req
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data":      data,
		"code":      200,
		"error":     "",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (m *mockService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []string{"acestep-v1"})
	})
	mux.HandleFunc("/release_task", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ParamObj json.RawMessage `json:"param_obj"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.submitted = body.ParamObj
		m.mu.Unlock()
		writeEnvelope(w, map[string]string{"task_id": m.taskID})
	})
	mux.HandleFunc("/query_result", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.polls++
		state := map[string]any{"task_id": m.taskID, "status": 0, "result": ""}
		if m.polls >= m.pollsUntilDone {
			if m.failReason != "" {
				state["status"] = 2
				state["result"] = m.failReason
			} else {
				state["status"] = 1
				state["result"] = m.resultJSON
			}
		}
		m.mu.Unlock()
		writeEnvelope(w, []any{state})
	})
	mux.HandleFunc("/v1/audio", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		data, ok := m.audio[r.URL.Query().Get("path")]
		m.mu.Unlock()
		if !ok {
			http.Error(w, "no such file", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	})
	return mux
}

func startService(t *testing.T, m *mockService) string {
	t.Helper()
	srv := httptest.NewServer(m.handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// runFlow drives the full client flow the way the generate command does:
// resolve, build, submit, poll, fetch, write. Returns the outcome and the
// paths written (nil unless the task succeeded).
func runFlow(t *testing.T, cfg *config.Config, url, outDir string, mode gen.Mode, ov config.Overrides) (string, task.Outcome, []string) {
	t.Helper()

	ov.APIURL = &url
	if ov.PollInterval == nil {
		interval := time.Millisecond
		ov.PollInterval = &interval
	}
	params := config.Resolve(cfg, ov)

	req, err := gen.Build(mode, params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ctx := context.Background()
	client := api.New(params.APIURL, params.APIKey)

	taskID, err := client.Submit(ctx, req)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	poller := &task.Poller{Client: client, Interval: params.PollInterval, MaxWait: params.PollTimeout}
	outcome, err := poller.Wait(ctx, taskID)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if outcome.State != task.Succeeded {
		return taskID, outcome, nil
	}

	fetcher := &task.Fetcher{Client: client, Request: req}
	rec, audio, err := fetcher.Fetch(ctx, taskID, outcome.Result)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	writer := &output.Writer{Root: outDir, Format: params.AudioFormat}
	paths, err := writer.WriteTask(rec, audio)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return taskID, outcome, paths
}

func readRecord(t *testing.T, path string) output.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	var rec output.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("record is not valid JSON: %v", err)
	}
	return rec
}
