package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// CategoryHandler handles category API requests
type CategoryHandler struct {
	storage  interfaces.StorageManager
	limits   common.CategoriesConfig
	jobLimit common.JobsConfig
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) *CategoryHandler {
	return &CategoryHandler{
		storage:  storage,
		limits:   config.Categories,
		jobLimit: config.Jobs,
		validate: validator.New(),
		logger:   logger,
	}
}

// categoryRequest is the create/update payload
type categoryRequest struct {
	Name            string   `json:"name" validate:"required"`
	Keywords        []string `json:"keywords" validate:"required,min=1"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	Language        string   `json:"language" validate:"omitempty,len=2"`
	Country         string   `json:"country" validate:"omitempty,len=2"`
	IsActive        *bool    `json:"is_active"`
	CrawlPeriod     string   `json:"crawl_period"`
}

// scheduleRequest is the PATCH /categories/{id}/schedule payload
type scheduleRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

// ListHandler handles GET /categories
func (h *CategoryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *CategoryHandler) list(w http.ResponseWriter, r *http.Request) {
	opts := &interfaces.CategoryListOptions{
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
	}
	categories, err := h.storage.CategoryStorage().ListCategories(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list categories")
		writeError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"categories":  categories,
		"total_count": len(categories),
	}

	if r.URL.Query().Get("include_stats") == "true" {
		stats, err := h.storage.ArticleStorage().GetArticleStats(r.Context())
		if err == nil {
			response["article_stats"] = stats
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *CategoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, common.WrapError(common.KindValidation, "invalid category", err))
		return
	}

	now := time.Now().UTC()
	category := &models.Category{
		ID:              common.NewCategoryID(),
		Name:            req.Name,
		Keywords:        req.Keywords,
		ExcludeKeywords: req.ExcludeKeywords,
		Language:        strings.ToLower(req.Language),
		Country:         strings.ToLower(req.Country),
		IsActive:        true,
		CrawlPeriod:     req.CrawlPeriod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	category.Normalize()
	if err := category.Validate(h.limits); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.storage.CategoryStorage().CreateCategory(r.Context(), category); err != nil {
		writeError(w, r, err)
		return
	}

	h.logger.Info().Str("category_id", category.ID).Str("name", category.Name).Msg("Category created")
	writeJSON(w, http.StatusCreated, category)
}

// ItemHandler handles /categories/{id} and subpaths
func (h *CategoryHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/categories/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "category id is required"})
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "schedule" {
		if r.Method != http.MethodPatch {
			methodNotAllowed(w)
			return
		}
		h.patchSchedule(w, r, id)
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

func (h *CategoryHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	category, err := h.storage.CategoryStorage().GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	category, err := h.storage.CategoryStorage().GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, common.WrapError(common.KindValidation, "invalid category", err))
		return
	}

	category.Name = req.Name
	category.Keywords = req.Keywords
	category.ExcludeKeywords = req.ExcludeKeywords
	category.Language = strings.ToLower(req.Language)
	category.Country = strings.ToLower(req.Country)
	category.CrawlPeriod = req.CrawlPeriod
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	// Deactivation turns the schedule off
	if !category.IsActive && category.ScheduleEnabled {
		category.ScheduleEnabled = false
		category.NextScheduledRunAt = time.Time{}
	}
	category.UpdatedAt = time.Now().UTC()

	category.Normalize()
	if err := category.Validate(h.limits); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.storage.CategoryStorage().UpdateCategory(r.Context(), category); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.storage.ArticleStorage().UnlinkCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.storage.CategoryStorage().DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) patchSchedule(w http.ResponseWriter, r *http.Request, id string) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := h.storage.CategoryStorage().GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	if req.Enabled {
		if !category.IsActive {
			writeError(w, r, common.NewError(common.KindStateViolation, "schedule may only be enabled on an active category"))
			return
		}
		if !models.IsValidScheduleInterval(req.IntervalMinutes) {
			writeError(w, r, common.Errorf(common.KindValidation, "interval_minutes must be one of %v", models.ValidScheduleIntervals))
			return
		}
		category.ScheduleEnabled = true
		category.ScheduleIntervalMinutes = req.IntervalMinutes
		category.NextScheduledRunAt = now.Add(time.Duration(req.IntervalMinutes) * time.Minute)
	} else {
		category.ScheduleEnabled = false
		category.NextScheduledRunAt = time.Time{}
	}
	category.UpdatedAt = now

	if err := h.storage.CategoryStorage().UpdateCategory(r.Context(), category); err != nil {
		writeError(w, r, err)
		return
	}

	h.logger.Info().
		Str("category_id", id).
		Bool("enabled", category.ScheduleEnabled).
		Int("interval_minutes", category.ScheduleIntervalMinutes).
		Msg("Category schedule updated")
	writeJSON(w, http.StatusOK, category)
}

// CapacityHandler handles GET /categories/schedules/capacity
func (h *CategoryHandler) CapacityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	categories, err := h.storage.CategoryStorage().ListCategories(r.Context(), &interfaces.CategoryListOptions{
		ActiveOnly:    true,
		ScheduledOnly: true,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	jobsPerHour := 0.0
	for _, category := range categories {
		if category.ScheduleIntervalMinutes > 0 {
			jobsPerHour += 60.0 / float64(category.ScheduleIntervalMinutes)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scheduled_categories": len(categories),
		"jobs_per_hour":        jobsPerHour,
		"max_concurrent_jobs":  h.jobLimit.MaxConcurrent,
	})
}
