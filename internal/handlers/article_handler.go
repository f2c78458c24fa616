package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
	"github.com/xuri/excelize/v2"
)

// ArticleHandler handles article API requests
type ArticleHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(storage interfaces.StorageManager, logger arbor.ILogger) *ArticleHandler {
	return &ArticleHandler{
		storage: storage,
		logger:  logger,
	}
}

// ListHandler handles GET /articles
func (h *ArticleHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	opts, err := parseArticleFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	articles, err := h.storage.ArticleStorage().ListArticles(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list articles")
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})
}

// ItemHandler handles GET /articles/{id}
func (h *ArticleHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/articles/"), "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "article id is required"})
		return
	}

	article, err := h.storage.ArticleStorage().GetArticle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// StatsHandler handles GET /articles/stats
func (h *ArticleHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := h.storage.ArticleStorage().GetArticleStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// exportRequest is the POST /articles/export payload
type exportRequest struct {
	Format       string     `json:"format"`
	CategoryID   string     `json:"category_id"`
	MinRelevance float64    `json:"min_relevance"`
	Since        *time.Time `json:"since"`
	Until        *time.Time `json:"until"`
	Limit        int        `json:"limit"`
}

// ExportHandler handles POST /articles/export, streaming JSON, CSV or
// XLSX
func (h *ArticleHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	format := strings.ToLower(req.Format)
	switch format {
	case "", "json":
		format = "json"
	case "csv", "xlsx":
	default:
		writeErrorStatus(w, r,
			common.Errorf(common.KindValidation, "unsupported export format %q", req.Format),
			http.StatusUnprocessableEntity)
		return
	}

	if req.CategoryID != "" {
		if _, err := h.storage.CategoryStorage().GetCategory(r.Context(), req.CategoryID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	opts := &interfaces.ArticleListOptions{
		CategoryID:   req.CategoryID,
		MinRelevance: req.MinRelevance,
		Limit:        req.Limit,
	}
	if req.Since != nil {
		opts.Since = req.Since.UTC()
	}
	if req.Until != nil {
		opts.Until = req.Until.UTC()
	}

	articles, err := h.storage.ArticleStorage().ListArticles(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := "articles-" + time.Now().UTC().Format("20060102-150405")
	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.json"`)
		json.NewEncoder(w).Encode(articles)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		h.writeCSV(w, articles)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		if err := h.writeXLSX(w, articles); err != nil {
			h.logger.Error().Err(err).Msg("Failed to write XLSX export")
		}
	}

	h.logger.Info().
		Str("format", format).
		Int("articles", len(articles)).
		Msg("Articles exported")
}

var exportColumns = []string{"id", "title", "author", "publish_date", "source_url", "relevance_score", "keywords_matched", "categories", "last_seen"}

func exportRow(article *models.Article) []string {
	categories := make([]string, 0, len(article.Categories))
	for _, link := range article.Categories {
		categories = append(categories, link.CategoryName)
	}
	publishDate := ""
	if !article.PublishDate.IsZero() {
		publishDate = article.PublishDate.UTC().Format(time.RFC3339)
	}
	return []string{
		article.ID,
		article.Title,
		article.Author,
		publishDate,
		article.SourceURL,
		strconv.FormatFloat(article.RelevanceScore, 'f', 1, 64),
		strings.Join(article.KeywordsMatched, ";"),
		strings.Join(categories, ";"),
		article.LastSeen.UTC().Format(time.RFC3339),
	}
}

func (h *ArticleHandler) writeCSV(w http.ResponseWriter, articles []*models.Article) {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write(exportColumns)
	for _, article := range articles {
		writer.Write(exportRow(article))
	}
}

func (h *ArticleHandler) writeXLSX(w http.ResponseWriter, articles []*models.Article) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Articles"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for rowIdx, article := range articles {
		for col, value := range exportRow(article) {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	return f.Write(w)
}

// parseArticleFilters reads list filters from query parameters
func parseArticleFilters(r *http.Request) (*interfaces.ArticleListOptions, error) {
	opts := &interfaces.ArticleListOptions{
		CategoryID: r.URL.Query().Get("category_id"),
		Search:     r.URL.Query().Get("search"),
		Limit:      50,
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, common.Errorf(common.KindValidation, "invalid limit %q", v)
		}
		opts.Limit = parsed
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, common.Errorf(common.KindValidation, "invalid offset %q", v)
		}
		opts.Offset = parsed
	}
	if v := r.URL.Query().Get("min_relevance"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, common.Errorf(common.KindValidation, "invalid min_relevance %q", v)
		}
		opts.MinRelevance = parsed
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, common.Errorf(common.KindValidation, "invalid since timestamp %q", v)
		}
		opts.Since = t.UTC()
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, common.Errorf(common.KindValidation, "invalid until timestamp %q", v)
		}
		opts.Until = t.UTC()
	}
	return opts, nil
}
