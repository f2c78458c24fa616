package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/ternarybob/nuntius/internal/services/jobs"
)

// JobHandler handles job API requests
type JobHandler struct {
	manager *jobs.Manager
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(manager *jobs.Manager, storage interfaces.StorageManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		manager: manager,
		storage: storage,
		logger:  logger,
	}
}

// createJobRequest is the POST /jobs payload
type createJobRequest struct {
	CategoryID string                 `json:"category_id"`
	Priority   int                    `json:"priority"`
	StartDate  *time.Time             `json:"start_date"`
	EndDate    *time.Time             `json:"end_date"`
	MaxResults *int                   `json:"max_results"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CollectionHandler handles GET and POST /jobs
func (h *JobHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	opts := &interfaces.JobListOptions{
		Status:     models.JobStatus(r.URL.Query().Get("status")),
		CategoryID: r.URL.Query().Get("category_id"),
		JobType:    models.JobType(r.URL.Query().Get("job_type")),
		Limit:      limit,
		Offset:     offset,
	}

	list, err := h.manager.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   list,
		"count":  len(list),
		"limit":  limit,
		"offset": offset,
	})
}

func (h *JobHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job := &models.CrawlJob{
		CategoryID: req.CategoryID,
		Priority:   req.Priority,
		JobType:    models.JobTypeOnDemand,
		MaxResults: req.MaxResults,
		Metadata:   req.Metadata,
	}
	if req.StartDate != nil {
		job.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		job.EndDate = req.EndDate.UTC()
	}

	// Overlong windows are unprocessable rather than malformed
	if err := jobs.ValidateDateRange(job.StartDate, job.EndDate); err != nil {
		writeErrorStatus(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	created, err := h.manager.CreateJob(r.Context(), job)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// StatsHandler handles GET /jobs/stats
func (h *JobHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := h.storage.JobStorage().GetJobStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ItemHandler handles /jobs/{id} and subpaths
func (h *JobHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "job id is required"})
		return
	}
	id := parts[0]

	if len(parts) == 2 {
		switch parts[1] {
		case "status":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.status(w, r, id)
		case "priority":
			if r.Method != http.MethodPatch {
				methodNotAllowed(w)
				return
			}
			h.patchPriority(w, r, id)
		case "execute":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.execute(w, r, id)
		case "cancel":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.cancel(w, r, id)
		default:
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		}
		return
	}
	if len(parts) != 1 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (h *JobHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.manager.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) status(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.manager.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"id":             job.ID,
		"status":         job.Status,
		"retry_count":    job.RetryCount,
		"articles_found": job.ArticlesFound,
		"articles_saved": job.ArticlesSaved,
		"created_at":     job.CreatedAt,
	}
	if !job.StartedAt.IsZero() {
		response["started_at"] = job.StartedAt
	}
	if !job.CompletedAt.IsZero() {
		response["completed_at"] = job.CompletedAt
		response["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		response["error_message"] = job.ErrorMessage
	}
	writeJSON(w, http.StatusOK, response)
}

// priorityRequest is the PATCH /jobs/{id}/priority payload
type priorityRequest struct {
	Priority int `json:"priority"`
}

func (h *JobHandler) patchPriority(w http.ResponseWriter, r *http.Request, id string) {
	var req priorityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.manager.UpdatePriority(r.Context(), id, req.Priority)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// updateJobRequest is the PUT /jobs/{id} payload
type updateJobRequest struct {
	Priority   *int                   `json:"priority"`
	RetryCount *int                   `json:"retry_count"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (h *JobHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req updateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.manager.UpdateJob(r.Context(), id, &jobs.JobPatch{
		Priority:   req.Priority,
		RetryCount: req.RetryCount,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) execute(w http.ResponseWriter, r *http.Request, id string) {
	clone, err := h.manager.ExecuteNow(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clone)
}

func (h *JobHandler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.manager.CancelJob(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (h *JobHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	force := r.URL.Query().Get("force") == "true"
	deleteArticles := r.URL.Query().Get("delete_articles") == "true"

	impact, err := h.manager.DeleteJob(r.Context(), id, force, deleteArticles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}
