package service

import "github.com/AnTengye/contractrisk/model"

// Section titles shared by the HTML page and the PDF.
const (
	TitleSummary         = "Краткое резюме"
	TitleRiskMap         = "Карта рисков"
	TitleAtypical        = "Нетипичные условия"
	TitleContradictions  = "Противоречия"
	TitleDutiesBalance   = "Баланс обязанностей"
	TitleNeedsSpecialist = "Требует проверки специалистом"
	TitleMissingSections = "Отсутствующие разделы"
)

// ReportView is the render context for one finished job.
type ReportView struct {
	JobID        string
	Report       *model.Report
	AnalysisDate string
	TextChars    *int
	TextWords    *int
}

func NewReportView(jobID string, report *model.Report) ReportView {
	return ReportView{
		JobID:        jobID,
		Report:       report,
		AnalysisDate: report.Cover.AnalysisDate,
		TextChars:    report.Cover.Chars,
		TextWords:    report.Cover.Words,
	}
}

// StatusClass maps the overall attention level to a CSS modifier.
func (v ReportView) StatusClass() string {
	switch v.Report.Cover.OverallStatus {
	case model.AttentionLow:
		return "status-low"
	case model.AttentionHigh:
		return "status-high"
	default:
		return "status-medium"
	}
}

func (v ReportView) PDFFilename() string {
	return "risq-report-" + v.JobID + ".pdf"
}
