package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/async"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
	"github.com/joseph-ayodele/company-extractor/internal/repository"
)

type fakeProcessor struct {
	gate chan struct{} // when set, processing waits for it to close
	err  error

	mu   sync.Mutex
	opts []pipeline.Options
}

func (f *fakeProcessor) ProcessDocument(ctx context.Context, name string, data []byte, opts pipeline.Options, obs pipeline.Observer) (*pipeline.RunResult, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	acme := entity.NewCompany()
	acme.Company = "Acme"
	res := &pipeline.RunResult{
		RunID:   common.RunIDFromContext(ctx),
		Source:  name,
		Chunks:  2,
		Records: []entity.Company{acme},
		Stats:   entity.RunStats{Companies: 1, CompletionRate: 12.5},
	}
	if obs != nil {
		obs(pipeline.Progress{Chunk: 0, Done: 1, Total: 2, Percent: 50, Records: 1})
		obs(pipeline.Progress{Chunk: 1, Done: 2, Total: 2, Percent: 100})
	}
	if f.err != nil {
		return res, f.err
	}
	res.Artifact = []byte("xlsx-bytes")
	res.Filename = "extracted_data_20240301_093000.xlsx"
	return res, nil
}

type fakeModels struct{}

func (fakeModels) ListModels(context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{ID: "llama-3.3-70b-versatile", Provider: "groq"}}, nil
}

type harness struct {
	svc   *Service
	repo  repository.RunRepository
	proc  *fakeProcessor
	srv   *httptest.Server
	queue *async.ProcessorQueue
}

func newHarness(t *testing.T, proc *fakeProcessor) *harness {
	t.Helper()
	store, err := repository.Open(context.Background(), repository.Config{DSN: "file::memory:"}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	repo := repository.NewRunRepository(store, nil)
	svc := NewService(repo, proc, nil, fakeModels{}, store, Options{
		UploadDir:        t.TempDir(),
		MaxUploadBytes:   1 << 20,
		DefaultChunkSize: 8000,
	}, nil)
	q := async.NewProcessorQueue(svc.ProcessJob, nil, async.WithWorkers(1))
	svc.AttachQueue(q)
	srv := httptest.NewServer(svc.Router())

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
		store.Close()
	})
	return &harness{svc: svc, repo: repo, proc: proc, srv: srv, queue: q}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (h *harness) submit(t *testing.T, query string) string {
	t.Helper()
	body, ct := multipartBody(t, "file", "catalogue.pdf", "%PDF-1.4 test")
	resp, err := http.Post(h.srv.URL+"/v1/runs"+query, ct, body)
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d body = %s", resp.StatusCode, b)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["run_id"] == "" || out["status"] != string(constants.RunStatusQueued) {
		t.Fatalf("response = %v", out)
	}
	return out["run_id"]
}

func (h *harness) getRun(t *testing.T, id string) (int, entity.Run) {
	t.Helper()
	resp, err := http.Get(h.srv.URL + "/v1/runs/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var run entity.Run
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode, run
}

func (h *harness) waitTerminal(t *testing.T, id string) entity.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, run := h.getRun(t, id)
		if constants.RunStatus(run.Status).Terminal() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never finished", id)
	return entity.Run{}
}

func TestSubmitProcessDownload(t *testing.T) {
	h := newHarness(t, &fakeProcessor{})
	id := h.submit(t, "?chunk_size=4000&dedup=true")

	run := h.waitTerminal(t, id)
	if run.Status != string(constants.RunStatusCompleted) {
		t.Fatalf("status = %s error = %v", run.Status, run.ErrorMessage)
	}
	if len(run.Records) != 1 || run.Records[0].Company != "Acme" || run.Chunks != 2 {
		t.Fatalf("run = %+v", run)
	}
	if run.ChunkSize != 4000 || !run.Dedup {
		t.Fatalf("options not applied: chunk_size=%d dedup=%v", run.ChunkSize, run.Dedup)
	}
	h.proc.mu.Lock()
	if got := h.proc.opts[0]; got.ChunkSize != 4000 || !got.Dedup {
		t.Fatalf("processor options = %+v", got)
	}
	h.proc.mu.Unlock()

	resp, err := http.Get(h.srv.URL + "/v1/runs/" + id + "/download")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "xlsx-bytes" {
		t.Fatalf("download status = %d body = %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != constants.XLSXContentType {
		t.Fatalf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "extracted_data_20240301_093000.xlsx") {
		t.Fatalf("content disposition = %q", cd)
	}

	resp, err = http.Get(h.srv.URL + "/v1/runs?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var list struct {
		Runs []entity.Run `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 1 || list.Runs[0].ID.String() != id {
		t.Fatalf("list = %+v", list.Runs)
	}
}

func TestFailedRunKeepsRecords(t *testing.T) {
	h := newHarness(t, &fakeProcessor{err: &common.ExportError{Err: errors.New("disk full")}})
	id := h.submit(t, "")

	run := h.waitTerminal(t, id)
	if run.Status != string(constants.RunStatusFailed) {
		t.Fatalf("status = %s", run.Status)
	}
	if run.ErrorMessage == nil || !strings.Contains(*run.ErrorMessage, "disk full") {
		t.Fatalf("error message = %v", run.ErrorMessage)
	}
	if len(run.Records) != 1 {
		t.Fatalf("partial records lost")
	}

	resp, err := http.Get(h.srv.URL + "/v1/runs/" + id + "/download")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("download of failed run: status = %d, want 409", resp.StatusCode)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, &fakeProcessor{})

	cases := []struct {
		name     string
		field    string
		filename string
		query    string
	}{
		{"missing file", "other", "a.pdf", ""},
		{"not a pdf", "file", "notes.txt", ""},
		{"bad chunk size", "file", "a.pdf", "?chunk_size=abc"},
		{"zero chunk size", "file", "a.pdf", "?chunk_size=0"},
		{"bad dedup", "file", "a.pdf", "?dedup=maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.field, tc.filename, "%PDF")
			resp, err := http.Post(h.srv.URL+"/v1/runs"+tc.query, ct, body)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var out map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&out)
			if out["error"] == "" {
				t.Fatalf("missing error message")
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{common.NewAppError("NOT_FOUND", "run", common.ErrNotFound), http.StatusNotFound},
		{invalid("bad"), http.StatusBadRequest},
		{common.NewAppError("CONFLICT", "busy", common.ErrConflict), http.StatusConflict},
		{common.NewAppError("QUEUE_ERROR", "enqueue", async.ErrClosed), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestGetRunErrors(t *testing.T) {
	h := newHarness(t, &fakeProcessor{})
	if code, _ := h.getRun(t, uuid.NewString()); code != http.StatusNotFound {
		t.Fatalf("unknown run: status = %d, want 404", code)
	}
	if code, _ := h.getRun(t, "not-a-uuid"); code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d, want 400", code)
	}

	run := &entity.Run{SourceName: "queued.pdf", ChunkSize: 8000}
	if err := h.repo.Create(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(h.srv.URL + "/v1/runs/" + run.ID.String() + "/download")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("download of queued run: status = %d, want 409", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t, &fakeProcessor{})

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(HeaderRequestID); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(h.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if _, err := uuid.Parse(resp.Header.Get(HeaderRequestID)); err != nil {
		t.Fatalf("generated request id is not a uuid: %q", resp.Header.Get(HeaderRequestID))
	}
}

func TestModels(t *testing.T) {
	h := newHarness(t, &fakeProcessor{})
	resp, err := http.Get(h.srv.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Models []llm.ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Models) != 1 || out.Models[0].ID != "llama-3.3-70b-versatile" {
		t.Fatalf("models = %+v", out.Models)
	}
}

func TestEventsStream(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	h := newHarness(t, proc)
	id := h.submit(t, "")

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/runs/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if first.Type != EventStatus || constants.RunStatus(first.Status).Terminal() {
		t.Fatalf("initial event = %+v", first)
	}

	close(proc.gate)

	var events []Event
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			t.Fatalf("read: %v", err)
		}
		events = append(events, ev)
	}

	var progress []Event
	for _, ev := range events {
		if ev.Type == EventProgress {
			progress = append(progress, ev)
		}
	}
	if len(progress) != 2 || progress[1].Progress.Percent != 100 {
		t.Fatalf("progress events = %+v", progress)
	}
	last := events[len(events)-1]
	if last.Type != EventStatus || last.Status != string(constants.RunStatusCompleted) || last.RunID != id {
		t.Fatalf("last event = %+v", last)
	}
	if last.Stats == nil || last.Stats.Companies != 1 {
		t.Fatalf("final stats = %+v", last.Stats)
	}
}

func TestEventsFinishedRun(t *testing.T) {
	h := newHarness(t, &fakeProcessor{})
	id := h.submit(t, "")
	h.waitTerminal(t, id)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/runs/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Status != string(constants.RunStatusCompleted) {
		t.Fatalf("event = %+v", ev)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}
