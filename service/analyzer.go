package service

import (
	"context"
	"strings"
	"time"

	"github.com/AnTengye/contractrisk/model"
	"github.com/AnTengye/contractrisk/pkg/logger"
	"github.com/AnTengye/contractrisk/pkg/telemetry"
)

// Prompt is one system + user message pair sent to the model.
type Prompt struct {
	System string
	User   string
}

// Generator sends a prompt to a language model and returns the raw answer.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// summaryFillers pads summaries the model left short. Entry i is used for
// position i modulo the pool size.
var summaryFillers = []string{
	"Обратите внимание на сроки и порядок исполнения обязательств.",
	"Обратите внимание на порядок приёмки результата и подтверждающие документы.",
	"Проверьте условия оплаты: сроки, этапность, основания для удержаний/штрафов.",
	"Проверьте ответственность сторон и возможные ограничения ответственности.",
	"Обратите внимание на порядок расторжения и сроки уведомления.",
	"Проверьте раздел конфиденциальности и условия передачи информации третьим лицам.",
	"Проверьте порядок разрешения споров и применимое право (если указано).",
}

// Analyzer turns extracted contract text into a validated Report.
type Analyzer struct {
	gen       Generator
	validator *ReportValidator
	now       func() time.Time
}

func NewAnalyzer(gen Generator) (*Analyzer, error) {
	validator, err := NewReportValidator()
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		gen:       gen,
		validator: validator,
		now:       time.Now,
	}, nil
}

// Analyze asks the model for a report, sends at most one repair request
// when the answer does not validate, and back-fills the fields known
// locally. Any failure is an *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, contractType, text string, pages int) (*model.Report, error) {
	log := logger.WithContext(ctx)
	start := time.Now()

	log.Info("analysis.start",
		"contract_type", contractType,
		"pages", pages,
		"text_len", len(text),
	)

	raw, err := a.gen.Generate(ctx, buildAnalysisPrompt(contractType, text, pages))
	if err != nil {
		log.Error("analysis.model_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &AnalysisError{Stage: "model request", Err: err}
	}

	report, err := a.validator.Validate(raw)
	if err != nil {
		log.Warn("analysis.repair", "error", err, "raw_bytes", len(raw))
		telemetry.AnalysisRepairs.Inc()

		fixed, genErr := a.gen.Generate(ctx, buildRepairPrompt(raw))
		if genErr != nil {
			log.Error("analysis.repair_model_error", "error", genErr, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, &AnalysisError{Stage: "repair request", Err: genErr}
		}

		report, err = a.validator.Validate(fixed)
		if err != nil {
			log.Error("analysis.schema_validation_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, &AnalysisError{Stage: "validation", Err: err}
		}
	}

	a.postFix(report, contractType, pages)

	log.Info("analysis.ok",
		"overall_status", report.Cover.OverallStatus,
		"risks", len(report.RiskMap),
		"summary", len(report.Summary),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// postFix overwrites what the model must not decide and clamps the summary.
func (a *Analyzer) postFix(r *model.Report, contractType string, pages int) {
	if pages <= 0 {
		pages = 1
	}
	r.Cover.ContractType = contractType
	r.Cover.Pages = pages
	r.Cover.AnalysisDate = a.now().Format("2006-01-02")
	r.Disclaimer = model.Disclaimer
	r.Summary = clampSummary(r.Summary)
}

func clampSummary(in []string) []string {
	out := make([]string, 0, model.SummaryMax)
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if len(out) == model.SummaryMax {
			break
		}
		out = append(out, s)
	}
	for len(out) < model.SummaryMin {
		out = append(out, summaryFillers[len(out)%len(summaryFillers)])
	}
	return out
}
