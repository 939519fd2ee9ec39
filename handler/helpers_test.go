package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/model"
	"github.com/AnTengye/contractrisk/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Upload:    config.UploadConfig{TempDir: t.TempDir(), MaxBytes: 1 << 20},
		Pipeline:  config.PipelineConfig{Workers: 2},
		Analysis:  config.AnalysisConfig{ContractTypes: []string{config.DefaultContractType}, MaxChars: 200_000},
		RateLimit: config.RateLimitConfig{Requests: 100, Window: time.Minute},
	}
}

// cannedGenerator always answers with a schema-valid report.
type cannedGenerator struct{}

func (cannedGenerator) Generate(_ context.Context, _ service.Prompt) (string, error) {
	b, _ := json.Marshal(map[string]any{
		"cover":            map[string]any{"overall_status": model.AttentionLow, "contract_type": "x", "pages": 99},
		"summary":          []string{"Обратите внимание на сроки."},
		"risk_map":         []any{map[string]any{"category": model.CategoryDeadlines, "description": "Сроки не определены.", "clause_ref": "—"}},
		"atypical":         []any{},
		"contradictions":   []any{},
		"duties_balance":   map[string]any{"customer_count": 1, "provider_count": 2, "note": ""},
		"needs_specialist": []any{},
		"missing_sections": []string{},
	})
	return string(b), nil
}

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) Render(view service.ReportView) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake " + view.JobID), nil
}

type testApp struct {
	cfg      *config.Config
	store    *service.JobStore
	pipeline *service.Pipeline
	router   *gin.Engine
}

func newTestApp(t *testing.T, cfg *config.Config, submitter JobSubmitter) *testApp {
	t.Helper()
	store := service.NewJobStore(&cfg.Store)
	extractor := service.NewExtractor(&cfg.Analysis)
	analyzer, err := service.NewAnalyzer(cannedGenerator{})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	pipeline := service.NewPipeline(&cfg.Pipeline, store, extractor, analyzer)
	if submitter == nil {
		submitter = pipeline
	}

	router, err := NewRouter(Deps{
		Config:   cfg,
		Store:    store,
		Checker:  extractor,
		Pipeline: submitter,
		Renderer: fakeRenderer{},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &testApp{cfg: cfg, store: store, pipeline: pipeline, router: router}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *testApp) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.pipeline.Wait(ctx); err != nil {
		t.Fatalf("pipeline did not finish: %v", err)
	}
}

func docxBytes(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// uploadRequest builds POST /analyze. An empty filename omits the file part.
func uploadRequest(t *testing.T, contractType, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if contractType != "" {
		if err := mw.WriteField("contract_type", contractType); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "192.0.2.10:5000"
	return req
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return out
}
