package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnTengye/contractrisk/model"
)

// fakeGenerator replays canned answers in order and records every prompt.
type fakeGenerator struct {
	mu       sync.Mutex
	answers  []string
	errs     []error
	prompts  []Prompt
	fallback string
}

func (g *fakeGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := len(g.prompts)
	g.prompts = append(g.prompts, p)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.answers) {
		return g.answers[i], nil
	}
	return g.fallback, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func reportPayload(summary ...string) map[string]any {
	return map[string]any{
		"cover": map[string]any{
			"contract_type":  "Договор поставки",
			"analysis_date":  "1999-01-01",
			"pages":          42,
			"overall_status": model.AttentionMedium,
		},
		"summary": summary,
		"risk_map": []any{
			map[string]any{"category": model.CategoryPayment, "description": "Сроки оплаты не определены.", "clause_ref": "п. 4.1"},
		},
		"atypical":       []any{},
		"contradictions": []any{map[string]any{"description": "Разные сроки.", "clause_refs": []string{"п. 2", "п. 5"}}},
		"duties_balance": map[string]any{"customer_count": 3, "provider_count": 5, "note": "Неравномерно."},
		"needs_specialist": []any{
			map[string]any{"item": "Штрафы.", "clause_ref": model.ClauseRefUnknown},
		},
		"missing_sections": []string{model.MissingForceMajeure},
		"disclaimer":       "model text",
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func fiveSummary() []string {
	return []string{"a", "b", "c", "d", "e"}
}

func newTestAnalyzer(t *testing.T, gen Generator) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(gen)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	a.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local) }
	return a
}

func TestAnalyzeValidFirstAnswer(t *testing.T) {
	gen := &fakeGenerator{answers: []string{mustJSON(t, reportPayload(fiveSummary()...))}}
	a := newTestAnalyzer(t, gen)

	report, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст договора", 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gen.calls() != 1 {
		t.Errorf("Expected 1 model call, got %d", gen.calls())
	}
	if report.Cover.ContractType != "Договор оказания услуг" {
		t.Errorf("Expected caller contract type, got %q", report.Cover.ContractType)
	}
	if report.Cover.Pages != 3 {
		t.Errorf("Expected caller pages 3, got %d", report.Cover.Pages)
	}
	if report.Cover.AnalysisDate != "2026-03-14" {
		t.Errorf("Expected local analysis date, got %q", report.Cover.AnalysisDate)
	}
	if report.Disclaimer != model.Disclaimer {
		t.Errorf("Expected constant disclaimer, got %q", report.Disclaimer)
	}
	if report.Cover.OverallStatus != model.AttentionMedium {
		t.Errorf("Expected overall status from model, got %q", report.Cover.OverallStatus)
	}
	if len(report.RiskMap) != 1 || report.RiskMap[0].ClauseRef != "п. 4.1" {
		t.Errorf("Unexpected risk map %+v", report.RiskMap)
	}
	if report.DutiesBalance.ProviderCount != 5 {
		t.Errorf("Expected provider count 5, got %d", report.DutiesBalance.ProviderCount)
	}
}

func TestAnalyzePromptContents(t *testing.T) {
	gen := &fakeGenerator{answers: []string{mustJSON(t, reportPayload(fiveSummary()...))}}
	a := newTestAnalyzer(t, gen)

	if _, err := a.Analyze(context.Background(), "Договор оказания услуг", "УНИКАЛЬНЫЙ ТЕКСТ", 7); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p := gen.prompts[0]
	for _, want := range []string{"Запрещено", "рекомендации", "законности", "обратите внимание", "JSON"} {
		if !strings.Contains(p.System, want) {
			t.Errorf("Expected system prompt to contain %q", want)
		}
	}
	for _, want := range []string{"Договор оказания услуг", "Страниц (по файлу): 7", "УНИКАЛЬНЫЙ ТЕКСТ", `"overall_status"`, "5–7", `"—"`, model.MissingTerminationProcess} {
		if !strings.Contains(p.User, want) {
			t.Errorf("Expected user prompt to contain %q", want)
		}
	}
}

func TestAnalyzeRepairSucceeds(t *testing.T) {
	invalid := `{"cover": {"overall_status": "Очень плохо"}}`
	gen := &fakeGenerator{answers: []string{invalid, mustJSON(t, reportPayload(fiveSummary()...))}}
	a := newTestAnalyzer(t, gen)

	report, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report == nil {
		t.Fatal("Expected report")
	}
	if gen.calls() != 2 {
		t.Fatalf("Expected 2 model calls, got %d", gen.calls())
	}

	repair := gen.prompts[1]
	if repair.System != gen.prompts[0].System {
		t.Error("Repair request must reuse the system prompt")
	}
	if !strings.Contains(repair.User, invalid) {
		t.Error("Repair request must carry the invalid payload")
	}
	if !strings.HasPrefix(repair.User, repairInstruction) {
		t.Error("Repair request must start with the repair instruction")
	}
}

func TestAnalyzeRepairFails(t *testing.T) {
	gen := &fakeGenerator{fallback: "SECRET-MARKER is not json"}
	a := newTestAnalyzer(t, gen)

	report, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 2)
	if report != nil {
		t.Error("Expected no report on failure")
	}
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected AnalysisError, got %v", err)
	}
	if ae.Stage != "validation" {
		t.Errorf("Expected validation stage, got %q", ae.Stage)
	}
	if gen.calls() != 2 {
		t.Errorf("Expected exactly 2 model calls, got %d", gen.calls())
	}
	if strings.Contains(err.Error(), "SECRET-MARKER") {
		t.Error("Error must not expose raw model output")
	}
}

func TestAnalyzeSchemaMismatchDoesNotLeakOutput(t *testing.T) {
	bad := reportPayload(fiveSummary()...)
	bad["cover"] = map[string]any{"overall_status": "SECRET-MARKER"}
	gen := &fakeGenerator{fallback: mustJSON(t, bad)}
	a := newTestAnalyzer(t, gen)

	_, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 1)
	if err == nil {
		t.Fatal("Expected error")
	}
	if strings.Contains(err.Error(), "SECRET-MARKER") {
		t.Errorf("Error must not expose raw model output: %v", err)
	}
}

func TestAnalyzeTransportError(t *testing.T) {
	transportErr := errors.New("connection refused")
	gen := &fakeGenerator{errs: []error{transportErr}}
	a := newTestAnalyzer(t, gen)

	_, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 1)
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected AnalysisError, got %v", err)
	}
	if !errors.Is(err, transportErr) {
		t.Error("Expected transport error to be wrapped")
	}
	if gen.calls() != 1 {
		t.Errorf("Transport failure must not trigger a repair request, got %d calls", gen.calls())
	}
}

func TestAnalyzeRepairTransportError(t *testing.T) {
	transportErr := errors.New("timeout")
	gen := &fakeGenerator{answers: []string{"{}"}, errs: []error{nil, transportErr}}
	a := newTestAnalyzer(t, gen)

	_, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 1)
	if !errors.Is(err, transportErr) {
		t.Errorf("Expected repair transport error, got %v", err)
	}
	var ae *AnalysisError
	if errors.As(err, &ae) && ae.Stage != "repair request" {
		t.Errorf("Expected repair request stage, got %q", ae.Stage)
	}
}

func TestAnalyzeMissingKeyTriggersRepair(t *testing.T) {
	payload := reportPayload(fiveSummary()...)
	delete(payload, "risk_map")
	gen := &fakeGenerator{answers: []string{mustJSON(t, payload), mustJSON(t, reportPayload(fiveSummary()...))}}
	a := newTestAnalyzer(t, gen)

	if _, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gen.calls() != 2 {
		t.Errorf("Expected repair after missing key, got %d calls", gen.calls())
	}
}

func TestAnalyzeExtraFieldsTolerated(t *testing.T) {
	payload := reportPayload(fiveSummary()...)
	payload["confidence"] = 0.9
	gen := &fakeGenerator{answers: []string{mustJSON(t, payload)}}
	a := newTestAnalyzer(t, gen)

	if _, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gen.calls() != 1 {
		t.Errorf("Extra fields must not trigger a repair, got %d calls", gen.calls())
	}
}

func TestAnalyzeNonPositivePages(t *testing.T) {
	for _, pages := range []int{0, -3} {
		gen := &fakeGenerator{answers: []string{mustJSON(t, reportPayload(fiveSummary()...))}}
		a := newTestAnalyzer(t, gen)

		report, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", pages)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if report.Cover.Pages != 1 {
			t.Errorf("pages=%d: expected 1, got %d", pages, report.Cover.Pages)
		}
	}
}

func TestAnalyzeSummaryClamped(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "padded from pool",
			in:   []string{"one", "two", "three"},
			want: []string{"one", "two", "three", summaryFillers[3], summaryFillers[4]},
		},
		{
			name: "empty",
			in:   []string{},
			want: summaryFillers[:5],
		},
		{
			name: "blank entries dropped",
			in:   []string{"one", "  ", "", "two", "three", "four", "five"},
			want: []string{"one", "two", "three", "four", "five"},
		},
		{
			name: "truncated",
			in:   []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"},
			want: []string{"1", "2", "3", "4", "5", "6", "7"},
		},
		{
			name: "in range kept",
			in:   []string{"1", "2", "3", "4", "5", "6"},
			want: []string{"1", "2", "3", "4", "5", "6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{answers: []string{mustJSON(t, reportPayload(tt.in...))}}
			a := newTestAnalyzer(t, gen)

			report, err := a.Analyze(context.Background(), "Договор оказания услуг", "текст", 1)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(report.Summary) != len(tt.want) {
				t.Fatalf("Expected %d items, got %d: %v", len(tt.want), len(report.Summary), report.Summary)
			}
			for i := range tt.want {
				if report.Summary[i] != tt.want[i] {
					t.Errorf("summary[%d] = %q, want %q", i, report.Summary[i], tt.want[i])
				}
			}
		})
	}
}

func TestReportValidatorNegativeCounts(t *testing.T) {
	v, err := NewReportValidator()
	if err != nil {
		t.Fatalf("NewReportValidator: %v", err)
	}
	payload := reportPayload(fiveSummary()...)
	payload["duties_balance"] = map[string]any{"customer_count": -1, "provider_count": 0, "note": ""}
	if _, err := v.Validate(mustJSON(t, payload)); err == nil {
		t.Error("Expected negative count to fail validation")
	}

	payload = reportPayload(fiveSummary()...)
	payload["risk_map"] = []any{map[string]any{"category": "прочее", "description": "x", "clause_ref": "—"}}
	if _, err := v.Validate(mustJSON(t, payload)); err == nil {
		t.Error("Expected unknown category to fail validation")
	}

	payload = reportPayload(fiveSummary()...)
	payload["missing_sections"] = []string{"гарантии"}
	if _, err := v.Validate(mustJSON(t, payload)); err == nil {
		t.Error("Expected unknown missing section to fail validation")
	}
}
