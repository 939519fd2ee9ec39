package handler

import (
	"net/http"

	"github.com/AnTengye/contractrisk/model"
	"github.com/AnTengye/contractrisk/pkg/logger"
	"github.com/AnTengye/contractrisk/service"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	store    *service.JobStore
	renderer service.PDFRenderer
}

func NewReportHandler(store *service.JobStore, renderer service.PDFRenderer) *ReportHandler {
	return &ReportHandler{store: store, renderer: renderer}
}

// readyJob writes 404 for unknown ids and 409 for jobs without a report.
func (h *ReportHandler) readyJob(c *gin.Context) (*model.Job, bool) {
	job, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return nil, false
	}
	if !job.Ready() {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Report is not ready yet",
			"status": job.Status,
		})
		return nil, false
	}
	return job, true
}

// HTML renders the report page
func (h *ReportHandler) HTML(c *gin.Context) {
	job, ok := h.readyJob(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "report.html", service.NewReportView(job.ID, job.Report))
}

// PDF renders the report as a downloadable PDF
func (h *ReportHandler) PDF(c *gin.Context) {
	job, ok := h.readyJob(c)
	if !ok {
		return
	}

	view := service.NewReportView(job.ID, job.Report)
	data, err := h.renderer.Render(view)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to render pdf", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render PDF"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+view.PDFFilename())
	c.Data(http.StatusOK, "application/pdf", data)
}
