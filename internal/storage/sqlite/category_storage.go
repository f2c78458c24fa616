package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// unixToTime converts Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

// nullableUnix converts a time to sql.NullInt64, zero time maps to NULL
func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Valid: true, Int64: t.Unix()}
}

// nullableString maps empty string to NULL
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{Valid: true, String: s}
}

// marshalStrings serializes a string slice to JSON for storage
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalStrings deserializes a JSON string slice, tolerating NULL
func unmarshalStrings(data sql.NullString) ([]string, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data.String), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// CategoryStorage implements SQLite storage for categories
type CategoryStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewCategoryStorage creates a new category storage instance
func NewCategoryStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CategoryStorage {
	return &CategoryStorage{
		db:     db,
		logger: logger,
	}
}

const categoryColumns = `id, name, keywords, exclude_keywords, language, country, is_active,
	schedule_enabled, schedule_interval_minutes, last_scheduled_run_at, next_scheduled_run_at,
	crawl_period, created_at, updated_at`

// CreateCategory inserts a new category. A duplicate name is reported as a
// duplicate error.
func (s *CategoryStorage) CreateCategory(ctx context.Context, category *models.Category) error {
	keywordsJSON, err := marshalStrings(category.Keywords)
	if err != nil {
		return fmt.Errorf("failed to serialize keywords: %w", err)
	}
	excludeJSON, err := marshalStrings(category.ExcludeKeywords)
	if err != nil {
		return fmt.Errorf("failed to serialize exclude keywords: %w", err)
	}

	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		keywordsJSON,
		excludeJSON,
		nullableString(category.Language),
		nullableString(category.Country),
		boolToInt(category.IsActive),
		boolToInt(category.ScheduleEnabled),
		nullableInt(category.ScheduleIntervalMinutes),
		nullableUnix(category.LastScheduledRunAt),
		nullableUnix(category.NextScheduledRunAt),
		nullableString(category.CrawlPeriod),
		category.CreatedAt.Unix(),
		category.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return common.Errorf(common.KindDuplicate, "category with name %q already exists", category.Name)
		}
		s.logger.Error().Err(err).Str("category_id", category.ID).Msg("Failed to create category")
		return common.WrapError(common.KindDatabase, "failed to create category", err)
	}

	s.logger.Debug().Str("category_id", category.ID).Str("name", category.Name).Msg("Category created")
	return nil
}

// GetCategory retrieves a category by ID
func (s *CategoryStorage) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`
	row := s.db.db.QueryRowContext(ctx, query, id)
	category, err := s.scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, common.Errorf(common.KindNotFound, "category %s not found", id)
	}
	return category, err
}

// GetCategoryByName retrieves a category by its unique name
func (s *CategoryStorage) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = ?`
	row := s.db.db.QueryRowContext(ctx, query, name)
	category, err := s.scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, common.Errorf(common.KindNotFound, "category %q not found", name)
	}
	return category, err
}

// ListCategories lists categories with optional filters
func (s *CategoryStorage) ListCategories(ctx context.Context, opts *interfaces.CategoryListOptions) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE 1=1`
	args := []interface{}{}

	if opts != nil {
		if opts.ActiveOnly {
			query += " AND is_active = 1"
		}
		if opts.ScheduledOnly {
			query += " AND schedule_enabled = 1"
		}
	}
	query += " ORDER BY name ASC"
	if opts != nil && opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to list categories", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := s.scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// UpdateCategory updates all mutable fields of a category
func (s *CategoryStorage) UpdateCategory(ctx context.Context, category *models.Category) error {
	keywordsJSON, err := marshalStrings(category.Keywords)
	if err != nil {
		return fmt.Errorf("failed to serialize keywords: %w", err)
	}
	excludeJSON, err := marshalStrings(category.ExcludeKeywords)
	if err != nil {
		return fmt.Errorf("failed to serialize exclude keywords: %w", err)
	}

	query := `
		UPDATE categories SET
			name = ?, keywords = ?, exclude_keywords = ?, language = ?, country = ?,
			is_active = ?, schedule_enabled = ?, schedule_interval_minutes = ?,
			last_scheduled_run_at = ?, next_scheduled_run_at = ?, crawl_period = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.db.ExecContext(ctx, query,
		category.Name,
		keywordsJSON,
		excludeJSON,
		nullableString(category.Language),
		nullableString(category.Country),
		boolToInt(category.IsActive),
		boolToInt(category.ScheduleEnabled),
		nullableInt(category.ScheduleIntervalMinutes),
		nullableUnix(category.LastScheduledRunAt),
		nullableUnix(category.NextScheduledRunAt),
		nullableString(category.CrawlPeriod),
		category.UpdatedAt.Unix(),
		category.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return common.Errorf(common.KindDuplicate, "category with name %q already exists", category.Name)
		}
		return common.WrapError(common.KindDatabase, "failed to update category", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindNotFound, "category %s not found", category.ID)
	}
	return nil
}

// DeleteCategory removes a category; links and jobs cascade
func (s *CategoryStorage) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.db.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to delete category", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindNotFound, "category %s not found", id)
	}
	s.logger.Info().Str("category_id", id).Msg("Category deleted")
	return nil
}

// CountCategories counts categories, optionally active only
func (s *CategoryStorage) CountCategories(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM categories`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	var count int
	if err := s.db.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, common.WrapError(common.KindDatabase, "failed to count categories", err)
	}
	return count, nil
}

// GetDueCategories returns active, schedule-enabled categories whose next run
// time has passed.
func (s *CategoryStorage) GetDueCategories(ctx context.Context, now time.Time) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_active = 1
		  AND schedule_enabled = 1
		  AND next_scheduled_run_at IS NOT NULL
		  AND next_scheduled_run_at <= ?
		ORDER BY next_scheduled_run_at ASC
	`

	rows, err := s.db.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to query due categories", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := s.scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// UpdateScheduleRun records a scheduled run and the next due time
func (s *CategoryStorage) UpdateScheduleRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	query := `
		UPDATE categories
		SET last_scheduled_run_at = ?, next_scheduled_run_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.db.ExecContext(ctx, query,
		nullableUnix(lastRun), nullableUnix(nextRun), time.Now().Unix(), id)
	if err != nil {
		return common.WrapError(common.KindDatabase, "failed to update schedule run", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return common.Errorf(common.KindNotFound, "category %s not found", id)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *CategoryStorage) scanCategory(row rowScanner) (*models.Category, error) {
	var (
		category                models.Category
		keywords                sql.NullString
		excludeKeywords         sql.NullString
		language, country       sql.NullString
		isActive, schedEnabled  int
		intervalMinutes         sql.NullInt64
		lastRun, nextRun        sql.NullInt64
		crawlPeriod             sql.NullString
		createdAt, updatedAt    int64
	)

	err := row.Scan(
		&category.ID,
		&category.Name,
		&keywords,
		&excludeKeywords,
		&language,
		&country,
		&isActive,
		&schedEnabled,
		&intervalMinutes,
		&lastRun,
		&nextRun,
		&crawlPeriod,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, common.WrapError(common.KindDatabase, "failed to scan category", err)
	}

	if category.Keywords, err = unmarshalStrings(keywords); err != nil {
		return nil, fmt.Errorf("failed to parse keywords: %w", err)
	}
	if category.ExcludeKeywords, err = unmarshalStrings(excludeKeywords); err != nil {
		return nil, fmt.Errorf("failed to parse exclude keywords: %w", err)
	}
	category.Language = language.String
	category.Country = country.String
	category.IsActive = isActive != 0
	category.ScheduleEnabled = schedEnabled != 0
	if intervalMinutes.Valid {
		category.ScheduleIntervalMinutes = int(intervalMinutes.Int64)
	}
	if lastRun.Valid {
		category.LastScheduledRunAt = unixToTime(lastRun.Int64)
	}
	if nextRun.Valid {
		category.NextScheduledRunAt = unixToTime(nextRun.Int64)
	}
	category.CrawlPeriod = crawlPeriod.String
	category.CreatedAt = unixToTime(createdAt)
	category.UpdatedAt = unixToTime(updatedAt)

	return &category, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Valid: true, Int64: int64(n)}
}

func nullableIntPtr(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Valid: true, Int64: int64(*n)}
}
