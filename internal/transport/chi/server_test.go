package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/batch"
	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
	"github.com/kailas-cloud/policyrag/internal/usecase/answer"
	"github.com/kailas-cloud/policyrag/internal/usecase/health"
	"github.com/kailas-cloud/policyrag/internal/usecase/ingest"
)

type fakeIngester struct {
	sources  []ingest.Source
	failIDs  map[string]error
	deleted  int
	deleteEr error
}

func (f *fakeIngester) IngestAll(_ context.Context, sources []ingest.Source) []batch.Result {
	f.sources = sources
	out := make([]batch.Result, len(sources))
	for i, s := range sources {
		if err, ok := f.failIDs[s.DocumentID]; ok {
			out[i] = batch.NewFailed(s.DocumentID, err)
			continue
		}
		out[i] = batch.NewCommitted(s.DocumentID, 2)
	}
	return out
}

func (f *fakeIngester) Delete(_ context.Context, _ string) (int, error) {
	return f.deleted, f.deleteEr
}

type fakeRetriever struct {
	gotRole role.Role
	gotTopN int
	result  bundle.Bundle
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, r role.Role, topN int) (bundle.Bundle, error) {
	f.gotRole, f.gotTopN = r, topN
	if f.err != nil {
		return bundle.Bundle{}, f.err
	}
	b := f.result
	b.Query = query
	return b, nil
}

type fakeAnswerer struct {
	classified role.Role
	asRole     role.Role
	err        error
}

func (f *fakeAnswerer) Answer(_ context.Context, q string) (answer.Answer, error) {
	if f.err != nil {
		return answer.Answer{}, f.err
	}
	return answer.Answer{Text: "answer to " + q, Role: f.classified, Bundle: testBundle()}, nil
}

func (f *fakeAnswerer) AnswerAs(_ context.Context, q string, r role.Role) (answer.Answer, error) {
	f.asRole = r
	return answer.Answer{Text: "answer to " + q, Role: r, Bundle: testBundle()}, nil
}

type fakeHealth struct{ report health.Report }

func (f fakeHealth) Check(context.Context) health.Report { return f.report }

func testBundle() bundle.Bundle {
	return bundle.Bundle{Entries: []bundle.Entry{
		{Rank: 1, Source: "leave_policy_2024.txt", ChunkID: "leave_policy_2024.txt#0", Text: "20 days"},
		{Rank: 2, Source: "handbook.txt", ChunkID: "handbook.txt#3", Text: "15 days"},
	}}
}

type testEnv struct {
	ingester  *fakeIngester
	retriever *fakeRetriever
	answerer  *fakeAnswerer
	handler   http.Handler
}

func newTestEnv(t *testing.T, report health.Report) *testEnv {
	t.Helper()
	env := &testEnv{
		ingester:  &fakeIngester{},
		retriever: &fakeRetriever{result: testBundle()},
		answerer:  &fakeAnswerer{classified: role.Manager},
	}
	srv := NewServer(env.ingester, env.retriever, env.answerer, fakeHealth{report}, zap.NewNop())
	env.handler = srv.Routes(nil)
	return env
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func healthy() health.Report {
	return health.Report{Status: health.Healthy, Checks: map[string]health.CheckResult{health.StoreCheck: health.CheckOK}}
}

func TestIngestDocuments(t *testing.T) {
	env := newTestEnv(t, healthy())
	env.ingester.failIDs = map[string]error{
		"broken.txt": &domain.IncompleteIngestionError{
			DocumentID: "broken.txt", ChunkIndex: 1,
			Err: fmt.Errorf("embed: %w", domain.ErrEmbeddingUnavailable),
		},
	}

	rr := do(t, env.handler, http.MethodPost, "/v1/documents",
		`{"documents":[{"id":"handbook.txt","text":"hello"},{"id":"broken.txt","text":"world"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	resp := decodeBody[IngestResponse](t, rr)
	if resp.Committed != 1 || resp.Failed != 1 {
		t.Fatalf("committed/failed = %d/%d", resp.Committed, resp.Failed)
	}
	if resp.Items[0].Status != batch.StatusCommitted || resp.Items[0].Chunks != 2 {
		t.Errorf("first item = %+v", resp.Items[0])
	}
	if resp.Items[1].Error == nil || resp.Items[1].Error.Code != CodeEmbeddingUnavailable {
		t.Errorf("second item error = %+v", resp.Items[1].Error)
	}
	if len(env.ingester.sources) != 2 || env.ingester.sources[0].DocumentID != "handbook.txt" {
		t.Errorf("sources = %+v", env.ingester.sources)
	}
}

func TestIngestDocuments_Validation(t *testing.T) {
	env := newTestEnv(t, healthy())

	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"documents":`, CodeBadRequest},
		{"unknown field", `{"docs":[]}`, CodeBadRequest},
		{"empty batch", `{"documents":[]}`, CodeValidationFailed},
		{"missing text", `{"documents":[{"id":"a.txt"}]}`, CodeValidationFailed},
		{"missing id", `{"documents":[{"text":"x"}]}`, CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, env.handler, http.MethodPost, "/v1/documents", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			if got := decodeBody[ErrorResponse](t, rr).Code; got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t, healthy())
	env.ingester.deleted = 4

	rr := do(t, env.handler, http.MethodDelete, "/v1/documents/handbook.txt", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody[DeleteResponse](t, rr)
	if resp.ID != "handbook.txt" || resp.DeletedChunks != 4 {
		t.Errorf("resp = %+v", resp)
	}

	env.ingester.deleteEr = fmt.Errorf("delete: %w", domain.ErrDocumentNotFound)
	rr = do(t, env.handler, http.MethodDelete, "/v1/documents/missing.txt", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody[ErrorResponse](t, rr).Code; got != CodeDocumentNotFound {
		t.Errorf("code = %s", got)
	}
}

func TestRetrieve(t *testing.T) {
	env := newTestEnv(t, healthy())

	rr := do(t, env.handler, http.MethodPost, "/v1/retrieve",
		`{"query":"How many vacation days?","role":"intern","top_n":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	resp := decodeBody[RetrieveResponse](t, rr)
	if resp.Query != "How many vacation days?" || resp.Role != "intern" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].Source != "leave_policy_2024.txt" {
		t.Errorf("entries = %+v", resp.Entries)
	}
	if !strings.Contains(resp.Context, "leave_policy_2024.txt") {
		t.Errorf("rendered context missing source: %q", resp.Context)
	}
	if env.retriever.gotRole != role.Intern || env.retriever.gotTopN != 2 {
		t.Errorf("retriever got role=%s topN=%d", env.retriever.gotRole, env.retriever.gotTopN)
	}
}

func TestRetrieve_RejectsUnsupportedRole(t *testing.T) {
	env := newTestEnv(t, healthy())

	rr := do(t, env.handler, http.MethodPost, "/v1/retrieve", `{"query":"q","role":"ceo"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody[ErrorResponse](t, rr)
	if resp.Code != CodeValidationFailed || !strings.Contains(resp.Message, "oneof") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRetrieve_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"timeout", fmt.Errorf("embed: %w", domain.ErrUpstreamTimeout), http.StatusGatewayTimeout, CodeUpstreamTimeout},
		{"embedding", fmt.Errorf("embed: %w", domain.ErrEmbeddingUnavailable),
			http.StatusServiceUnavailable, CodeEmbeddingUnavailable},
		{"store", fmt.Errorf("search: %w", domain.ErrStoreUnavailable),
			http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"malformed", &domain.MalformedMetadataError{ID: "x#0", Field: "effective_date", Value: "soon"},
			http.StatusInternalServerError, CodeMalformedMetadata},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, healthy())
			env.retriever.err = tt.err

			rr := do(t, env.handler, http.MethodPost, "/v1/retrieve", `{"query":"q","role":"employee"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decodeBody[ErrorResponse](t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "soon") || strings.Contains(resp.Message, "boom") {
				t.Errorf("message leaks internals: %q", resp.Message)
			}
		})
	}
}

func TestAnswer(t *testing.T) {
	env := newTestEnv(t, healthy())

	rr := do(t, env.handler, http.MethodPost, "/v1/answer", `{"query":"Can I expense a taxi?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	resp := decodeBody[AnswerResponse](t, rr)
	if resp.Role != "manager" || resp.Answer != "answer to Can I expense a taxi?" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources = %v", resp.Sources)
	}

	rr = do(t, env.handler, http.MethodPost, "/v1/answer", `{"query":"q","role":"intern"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if env.answerer.asRole != role.Intern {
		t.Errorf("explicit role not forwarded, got %q", env.answerer.asRole)
	}
}

func TestAnswer_GenerationUnavailable(t *testing.T) {
	env := newTestEnv(t, healthy())
	env.answerer.err = fmt.Errorf("generate: %w", domain.ErrGenerationUnavailable)

	rr := do(t, env.handler, http.MethodPost, "/v1/answer", `{"query":"q"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAnswer_NotConfigured(t *testing.T) {
	srv := NewServer(&fakeIngester{}, &fakeRetriever{}, nil, fakeHealth{healthy()}, zap.NewNop())
	rr := do(t, srv.Routes(nil), http.MethodPost, "/v1/answer", `{"query":"q"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		report health.Report
		status int
	}{
		{"healthy", healthy(), http.StatusOK},
		{"degraded", health.Report{Status: health.Degraded, Checks: map[string]health.CheckResult{
			health.StoreCheck: health.CheckOK, "embedding": health.CheckError,
		}}, http.StatusOK},
		{"unhealthy", health.Report{Status: health.Unhealthy, Checks: map[string]health.CheckResult{
			health.StoreCheck: health.CheckError,
		}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.report)
			rr := do(t, env.handler, http.MethodGet, "/health", "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decodeBody[HealthResponse](t, rr)
			if resp.Status != string(tt.report.Status) {
				t.Errorf("status field = %q", resp.Status)
			}
		})
	}
}

func TestRoutes_AuthAndRequestID(t *testing.T) {
	srv := NewServer(&fakeIngester{}, &fakeRetriever{result: testBundle()}, nil, fakeHealth{healthy()}, zap.NewNop())
	h := srv.Routes([]string{"secret"})

	rr := do(t, h, http.MethodPost, "/v1/retrieve", `{"query":"q","role":"intern"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"query":"q","role":"intern"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health must bypass auth, got %d", rr.Code)
	}
}

func TestRoutes_NotFound(t *testing.T) {
	env := newTestEnv(t, healthy())
	rr := do(t, env.handler, http.MethodGet, "/v1/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody[ErrorResponse](t, rr).Code; got != CodeNotFound {
		t.Errorf("code = %s", got)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody[ErrorResponse](t, rr).Code; got != CodeInternalError {
		t.Errorf("code = %s", got)
	}
}
