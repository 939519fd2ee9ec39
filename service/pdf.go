package service

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/model"
	"github.com/go-pdf/fpdf"
)

// PDFRenderer produces the downloadable version of a report.
type PDFRenderer interface {
	Render(view ReportView) ([]byte, error)
}

const pdfFont = "ReportSans"

// FPDFRenderer lays the report out with fpdf using a UTF-8 TrueType font so
// Cyrillic text renders.
type FPDFRenderer struct {
	fontPath string

	fontOnce sync.Once
	font     []byte
	fontErr  error
}

func NewPDFRenderer(cfg *config.ReportConfig) *FPDFRenderer {
	return &FPDFRenderer{fontPath: cfg.FontPath}
}

func (r *FPDFRenderer) loadFont() ([]byte, error) {
	r.fontOnce.Do(func() {
		r.font, r.fontErr = os.ReadFile(r.fontPath)
		if r.fontErr != nil {
			r.fontErr = fmt.Errorf("load report font: %w", r.fontErr)
		}
	})
	return r.font, r.fontErr
}

func (r *FPDFRenderer) Render(view ReportView) ([]byte, error) {
	if view.Report == nil {
		return nil, fmt.Errorf("no report to render")
	}
	font, err := r.loadFont()
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddUTF8FontFromBytes(pdfFont, "", font)
	pdf.SetTitle("Отчёт по договору "+view.JobID, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont(pdfFont, "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	w := &pdfWriter{pdf: pdf}
	w.cover(view)
	w.summary(view.Report.Summary)
	w.riskMap(view.Report.RiskMap)
	w.atypical(view.Report.Atypical)
	w.contradictions(view.Report.Contradictions)
	w.duties(view.Report.DutiesBalance)
	w.specialist(view.Report.NeedsSpecialist)
	w.missing(view.Report.MissingSections)
	w.disclaimer(view.Report.Disclaimer)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
}

func (w *pdfWriter) text(size float64, s string) {
	w.pdf.SetFont(pdfFont, "", size)
	w.pdf.SetTextColor(30, 30, 30)
	w.pdf.MultiCell(0, size*0.5, s, "", "L", false)
}

func (w *pdfWriter) muted(s string) {
	w.pdf.SetFont(pdfFont, "", 9)
	w.pdf.SetTextColor(110, 110, 110)
	w.pdf.MultiCell(0, 4.5, s, "", "L", false)
}

func (w *pdfWriter) heading(title string) {
	w.pdf.Ln(4)
	w.pdf.SetFont(pdfFont, "", 13)
	w.pdf.SetTextColor(20, 40, 90)
	w.pdf.MultiCell(0, 7, title, "", "L", false)
	w.pdf.Ln(1)
}

func (w *pdfWriter) empty() {
	w.muted("Не выявлено.")
}

func (w *pdfWriter) cover(v ReportView) {
	c := v.Report.Cover
	w.text(18, "Отчёт по договору")
	w.pdf.Ln(2)
	w.text(11, c.ContractType)
	w.muted("Дата анализа: " + v.AnalysisDate)
	w.muted("Страниц: " + strconv.Itoa(c.Pages))
	if v.TextChars != nil && v.TextWords != nil {
		w.muted(fmt.Sprintf("Объём текста: %d символов, %d слов", *v.TextChars, *v.TextWords))
	}
	w.pdf.Ln(2)
	w.text(12, "Общий статус: "+c.OverallStatus)
}

func (w *pdfWriter) summary(items []string) {
	w.heading(TitleSummary)
	for i, s := range items {
		w.text(10, fmt.Sprintf("%d. %s", i+1, s))
	}
}

func (w *pdfWriter) riskMap(items []model.RiskItem) {
	w.heading(TitleRiskMap)
	if len(items) == 0 {
		w.empty()
		return
	}
	for _, it := range items {
		w.text(10, "["+it.Category+"] "+it.Description)
		w.muted("Пункт: " + it.ClauseRef)
	}
}

func (w *pdfWriter) atypical(items []model.AtypicalItem) {
	w.heading(TitleAtypical)
	if len(items) == 0 {
		w.empty()
		return
	}
	for _, it := range items {
		w.text(10, "«"+it.Quote+"»")
		w.muted(it.Note)
	}
}

func (w *pdfWriter) contradictions(items []model.ContradictionItem) {
	w.heading(TitleContradictions)
	if len(items) == 0 {
		w.empty()
		return
	}
	for _, it := range items {
		w.text(10, it.Description)
		if len(it.ClauseRefs) > 0 {
			w.muted("Пункты: " + strings.Join(it.ClauseRefs, ", "))
		}
	}
}

func (w *pdfWriter) duties(d model.DutiesBalance) {
	w.heading(TitleDutiesBalance)
	w.text(10, fmt.Sprintf("Заказчик: %d, Исполнитель: %d", d.CustomerCount, d.ProviderCount))
	if d.Note != "" {
		w.muted(d.Note)
	}
}

func (w *pdfWriter) specialist(items []model.SpecialistItem) {
	w.heading(TitleNeedsSpecialist)
	if len(items) == 0 {
		w.empty()
		return
	}
	for _, it := range items {
		w.text(10, it.Item)
		w.muted("Пункт: " + it.ClauseRef)
	}
}

func (w *pdfWriter) missing(items []string) {
	w.heading(TitleMissingSections)
	if len(items) == 0 {
		w.empty()
		return
	}
	for _, s := range items {
		w.text(10, "• "+s)
	}
}

func (w *pdfWriter) disclaimer(s string) {
	w.pdf.Ln(6)
	w.muted(s)
}
