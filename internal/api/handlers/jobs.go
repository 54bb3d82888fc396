package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/core"
)

type JobFetcher interface {
	Fetch(ctx context.Context) ([]core.Job, error)
}

type JobHandler struct {
	source JobFetcher
}

type JobListResponse struct {
	Success bool       `json:"success"`
	Jobs    []core.Job `json:"jobs"`
	Count   int        `json:"count"`
	Error   string     `json:"error,omitempty"`
}

func NewJobHandler(source JobFetcher) *JobHandler {
	return &JobHandler{source: source}
}

// ListJobs reports an unreachable service as an empty list with
// success=false rather than an HTTP error, so the UI keeps polling.
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.source.Fetch(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusOK, JobListResponse{Success: false, Jobs: []core.Job{}, Error: err.Error()})
		return
	}
	if jobs == nil {
		jobs = []core.Job{}
	}
	c.JSON(http.StatusOK, JobListResponse{Success: true, Jobs: jobs, Count: len(jobs)})
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
}
