package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/talentmatch/internal/negotiation"
	"github.com/mohammad-safakhou/talentmatch/internal/store"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

type memStore struct {
	resumes map[string]store.ResumeRecord
	jobs    map[string]store.JobRecord
}

func newMemStore() *memStore {
	return &memStore{resumes: map[string]store.ResumeRecord{}, jobs: map[string]store.JobRecord{}}
}

func (m *memStore) CreateResume(ctx context.Context, rec store.ResumeRecord) (store.ResumeRecord, error) {
	if rec.ID == "" {
		rec.ID = "r-1"
	}
	m.resumes[rec.ID] = rec
	return rec, nil
}

func (m *memStore) GetResume(ctx context.Context, id string) (store.ResumeRecord, error) {
	rec, ok := m.resumes[id]
	if !ok {
		return store.ResumeRecord{}, store.ErrResumeNotFound
	}
	return rec, nil
}

func (m *memStore) ListResumes(ctx context.Context) ([]store.ResumeRecord, error) {
	var out []store.ResumeRecord
	for _, r := range m.resumes {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) DeleteResume(ctx context.Context, id string) error {
	if _, ok := m.resumes[id]; !ok {
		return store.ErrResumeNotFound
	}
	delete(m.resumes, id)
	return nil
}

func (m *memStore) CreateJob(ctx context.Context, rec store.JobRecord) (store.JobRecord, error) {
	if rec.ID == "" {
		rec.ID = "j-1"
	}
	m.jobs[rec.ID] = rec
	return rec, nil
}

func (m *memStore) GetJob(ctx context.Context, id string) (store.JobRecord, error) {
	rec, ok := m.jobs[id]
	if !ok {
		return store.JobRecord{}, store.ErrJobNotFound
	}
	return rec, nil
}

func (m *memStore) ListJobs(ctx context.Context) ([]store.JobRecord, error) {
	var out []store.JobRecord
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *memStore) DeleteJob(ctx context.Context, id string) error {
	if _, ok := m.jobs[id]; !ok {
		return store.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func newTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateResumeHandler(t *testing.T) {
	h := &ResumesHandler{Store: newMemStore()}

	c, rec := newTestContext(t, http.MethodPost, "/api/resumes", `{"name":"Sam Doe","skills":["go"]}`)
	if err := h.create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var out store.ResumeRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not a resume: %v", err)
	}
	if out.ID == "" || out.Name != "Sam Doe" {
		t.Fatalf("unexpected record: %+v", out)
	}
}

func TestCreateResumeRequiresName(t *testing.T) {
	h := &ResumesHandler{Store: newMemStore()}

	c, _ := newTestContext(t, http.MethodPost, "/api/resumes", `{"skills":["go"]}`)
	err := h.create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestGetResumeNotFoundHandler(t *testing.T) {
	h := &ResumesHandler{Store: newMemStore()}

	c, _ := newTestContext(t, http.MethodGet, "/api/resumes/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	err := h.get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestDeleteJobHandler(t *testing.T) {
	ms := newMemStore()
	ms.jobs["j-1"] = store.JobRecord{ID: "j-1", Title: "Go Engineer"}
	h := &JobsHandler{Store: ms}

	c, rec := newTestContext(t, http.MethodDelete, "/api/jds/j-1", "")
	c.SetParamNames("id")
	c.SetParamValues("j-1")
	if err := h.remove(c); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(ms.jobs) != 0 {
		t.Fatal("job not deleted")
	}
}

type scriptedGateway struct {
	responses []string
	calls     int
}

func (g *scriptedGateway) Complete(ctx context.Context, system string, messages []provider.Message, wantJSON bool) (string, error) {
	r := g.responses[g.calls%len(g.responses)]
	g.calls++
	return r, nil
}

func TestNegotiationStreamEmitsSSE(t *testing.T) {
	ms := newMemStore()
	ms.resumes["r-1"] = store.ResumeRecord{ID: "r-1", Name: "Sam Doe", Email: "sam@example.com", Skills: []string{"go"}}
	ms.jobs["j-1"] = store.JobRecord{ID: "j-1", Title: "Go Engineer", Company: "Acme", SalaryRange: "80-100k"}

	gw := &scriptedGateway{responses: []string{
		`{"type":"decision","reasoning":"fits","payload":"AGREE"}`,
		`{"type":"decision","reasoning":"fits","payload":"AGREE"}`,
	}}
	h := &NegotiationsHandler{
		Resumes: ms,
		Jobs:    ms,
		Gateway: gw,
		Opts:    negotiation.Options{Logger: log.New(io.Discard, "", 0)},
	}

	c, rec := newTestContext(t, http.MethodPost, "/api/negotiations/r-1/j-1/stream", "")
	c.SetParamNames("resume_id", "jd_id")
	c.SetParamValues("r-1", "j-1")
	if err := h.stream(c); err != nil {
		t.Fatalf("stream: %v", err)
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"type":"complete"`) {
		t.Fatalf("complete event missing:\n%s", body)
	}
	if !strings.Contains(body, "MATCH") {
		t.Fatalf("outcome missing:\n%s", body)
	}
	for _, line := range strings.Split(body, "\n") {
		if line != "" && !strings.HasPrefix(line, "data: ") {
			t.Fatalf("non-SSE line in stream: %q", line)
		}
	}
}

func TestNegotiationStreamUnknownResume(t *testing.T) {
	h := &NegotiationsHandler{Resumes: newMemStore(), Jobs: newMemStore()}

	c, _ := newTestContext(t, http.MethodPost, "/api/negotiations/x/y/stream", "")
	c.SetParamNames("resume_id", "jd_id")
	c.SetParamValues("x", "y")
	err := h.stream(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
