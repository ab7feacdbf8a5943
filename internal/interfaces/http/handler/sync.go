package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/marketplace"
)

// SyncHandler handles marketplace sync job endpoints.
// Triggered jobs run in the background; the handler answers as soon as the
// job slot is claimed so callers are not held for a full feed drain.
type SyncHandler struct {
	BaseHandler
	coordinator *syncapp.Coordinator
	logger      *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(coordinator *syncapp.Coordinator, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// TriggerSyncRequest represents a manual sync trigger request
type TriggerSyncRequest struct {
	JobType string `json:"job_type" binding:"required" example:"ORDER"`
}

// SyncJobResponse represents a sync job in API responses
type SyncJobResponse struct {
	ID             string     `json:"id"`
	CompanyID      string     `json:"company_id"`
	ConnectionID   string     `json:"connection_id"`
	JobType        string     `json:"job_type"`
	Status         string     `json:"status"`
	Cursor         string     `json:"cursor,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
	RetryOf        *string    `json:"retry_of,omitempty"`
	PagesFetched   int        `json:"pages_fetched"`
	RecordsTotal   int        `json:"records_total"`
	RecordsSynced  int        `json:"records_synced"`
	RecordsSkipped int        `json:"records_skipped"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toSyncJobResponse(job *marketplace.SyncJob) SyncJobResponse {
	resp := SyncJobResponse{
		ID:             job.ID.String(),
		CompanyID:      job.CompanyID.String(),
		ConnectionID:   job.ConnectionID.String(),
		JobType:        string(job.JobType),
		Status:         string(job.Status),
		Cursor:         job.Cursor,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		ErrorDetail:    job.ErrorDetail,
		PagesFetched:   job.PagesFetched,
		RecordsTotal:   job.RecordsTotal,
		RecordsSynced:  job.RecordsSynced,
		RecordsSkipped: job.RecordsSkipped,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if job.RetryOf != nil {
		retryOf := job.RetryOf.String()
		resp.RetryOf = &retryOf
	}
	return resp
}

// ListJobsRequest represents sync job query parameters
type ListJobsRequest struct {
	ConnectionID string `form:"connection_id"`
	JobType      string `form:"job_type"`
	Status       string `form:"status"`
	Since        string `form:"since"`
	Until        string `form:"until"`
	SortBy       string `form:"sort_by"`
	SortDir      string `form:"sort_dir"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}

// runDetached drains the job feed off the request goroutine. Failures are
// recorded on the job itself, so the error is only logged here.
func (h *SyncHandler) runDetached(job *marketplace.SyncJob) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.coordinator.Run(ctx, job); err != nil {
			h.logger.Error("Sync job failed",
				zap.String("job_id", job.ID.String()),
				zap.String("job_type", string(job.JobType)),
				zap.Error(err),
			)
		}
	}()
}

// Trigger godoc
// @Summary      Trigger a sync job
// @Description  Starts a sync job for a connection; at most one job per type runs at a time
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body TriggerSyncRequest true "Job type"
// @Success      202 {object} dto.Response{data=SyncJobResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/connections/{id}/trigger [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	jobType := marketplace.JobType(req.JobType)
	if !jobType.IsValid() {
		h.BadRequest(c, "Unknown job type")
		return
	}

	job, err := h.coordinator.Trigger(c.Request.Context(), connectionID, jobType)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.runDetached(job)
	h.Accepted(c, toSyncJobResponse(job))
}

// Retry godoc
// @Summary      Retry a failed sync job
// @Description  Starts a fresh job resuming the failed job's cursor
// @Tags         sync
// @Produce      json
// @Param        id path string true "Failed job ID" format(uuid)
// @Success      202 {object} dto.Response{data=SyncJobResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/jobs/{id}/retry [post]
func (h *SyncHandler) Retry(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.coordinator.Retry(c.Request.Context(), jobID)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.runDetached(job)
	h.Accepted(c, toSyncJobResponse(job))
}

// GetJob godoc
// @Summary      Get a sync job
// @Description  Returns one sync job with its page and record counters
// @Tags         sync
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      200 {object} dto.Response{data=SyncJobResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/jobs/{id} [get]
func (h *SyncHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.coordinator.GetJob(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toSyncJobResponse(job))
}

// ListJobs godoc
// @Summary      List sync jobs
// @Description  Returns sync jobs matching the filter, newest first
// @Tags         sync
// @Produce      json
// @Param        connection_id query string false "Connection ID" format(uuid)
// @Param        job_type query string false "Job type"
// @Param        status query string false "Job status"
// @Param        since query string false "RFC3339 lower bound on created_at"
// @Param        until query string false "RFC3339 upper bound on created_at"
// @Success      200 {object} dto.Response{data=[]SyncJobResponse}
// @Router       /sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	var req ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter, err := buildJobFilter(req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	jobs, total, err := h.coordinator.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	resp := make([]SyncJobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toSyncJobResponse(job))
	}

	h.SuccessWithMeta(c, resp, total, filter.Page, filter.PageSize)
}

func buildJobFilter(req ListJobsRequest) (marketplace.JobFilter, error) {
	filter := marketplace.JobFilter{
		SortBy:   req.SortBy,
		SortDir:  req.SortDir,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.ConnectionID != "" {
		id, err := uuid.Parse(req.ConnectionID)
		if err != nil {
			return filter, err
		}
		filter.ConnectionID = &id
	}
	if req.JobType != "" {
		jobType := marketplace.JobType(req.JobType)
		filter.JobType = &jobType
	}
	if req.Status != "" {
		status := marketplace.JobStatus(req.Status)
		filter.Status = &status
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if req.Until != "" {
		t, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return filter, err
		}
		filter.Until = &t
	}
	return filter, nil
}
