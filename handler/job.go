package handler

import (
	"net/http"

	"github.com/AnTengye/contractrisk/service"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	store *service.JobStore
}

func NewJobHandler(store *service.JobStore) *JobHandler {
	return &JobHandler{store: store}
}

// Status returns the polling view of a job: status, step and, for failed
// jobs, the error message.
func (h *JobHandler) Status(c *gin.Context) {
	job, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	resp := gin.H{
		"status": job.Status,
		"step":   job.Step,
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	c.JSON(http.StatusOK, resp)
}
