package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/model"
	"github.com/AnTengye/contractrisk/pkg/logger"
	"github.com/AnTengye/contractrisk/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FormatChecker rejects unsupported uploads before a job exists.
type FormatChecker interface {
	CheckFormat(filename string) error
}

// JobSubmitter schedules background analysis.
type JobSubmitter interface {
	Submit(jobID, contractType, path string) error
}

type AnalysisHandler struct {
	cfg      *config.Config
	store    *service.JobStore
	checker  FormatChecker
	pipeline JobSubmitter
	validate *validator.Validate
}

func NewAnalysisHandler(cfg *config.Config, store *service.JobStore, checker FormatChecker, pipeline JobSubmitter) *AnalysisHandler {
	return &AnalysisHandler{
		cfg:      cfg,
		store:    store,
		checker:  checker,
		pipeline: pipeline,
		validate: newFormValidator(cfg.IsContractTypeAllowed),
	}
}

// Index renders the upload form
func (h *AnalysisHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"ContractTypes": h.cfg.Analysis.ContractTypes,
		"MaxMB":         h.cfg.Upload.MaxBytes >> 20,
	})
}

// Analyze accepts an upload, creates a job and redirects to its status page.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()
	maxBytes := h.cfg.Upload.MaxBytes

	if c.Request.ContentLength > maxBytes+multipartOverhead {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMessage(maxBytes)})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	var form AnalyzeForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMessage(maxBytes)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	if err := h.validate.Struct(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formError(err)})
		return
	}

	filename := strings.TrimSpace(form.File.Filename)
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}
	if err := h.checker.CheckFormat(filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if form.File.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMessage(maxBytes)})
		return
	}

	path, err := h.saveUpload(form.File, strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		logger.Error(ctx, "failed to store upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}

	job := h.store.Create()
	ctx = logger.WithJobID(ctx, job.ID)

	if err := h.pipeline.Submit(job.ID, form.ContractType, path); err != nil {
		_ = os.Remove(path)
		msg := "Server is busy, please try again later"
		if !errors.Is(err, service.ErrPipelineBusy) {
			msg = "Failed to schedule analysis"
		}
		_ = h.store.SetStatus(job.ID, model.StatusError, model.StepFailed, msg)
		logger.Warn(ctx, "job rejected", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg, "job_id": job.ID})
		return
	}

	logger.Info(ctx, "job submitted",
		"contract_type", form.ContractType,
		"filename", filename,
		"size", form.File.Size,
	)
	c.Redirect(http.StatusSeeOther, "/analyzing/"+job.ID)
}

// Analyzing renders the progress page for a job
func (h *AnalysisHandler) Analyzing(c *gin.Context) {
	id := c.Param("id")

	job, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.HTML(http.StatusOK, "analyzing.html", gin.H{
		"JobID": job.ID,
		"Step":  job.Step,
	})
}

// multipartOverhead leaves room for boundaries and the contract_type field.
const multipartOverhead = 64 << 10

func tooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("File is too large (limit %d MB)", maxBytes>>20)
}

// saveUpload copies the upload into a temp file the pipeline takes over.
func (h *AnalysisHandler) saveUpload(fh *multipart.FileHeader, ext string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.cfg.Upload.TempDir, "contract-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return dst.Name(), nil
}
