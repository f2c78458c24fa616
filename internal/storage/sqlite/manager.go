package sqlite

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

// Manager wires the per-entity storages over one SQLite connection
type Manager struct {
	db         *SQLiteDB
	categories interfaces.CategoryStorage
	jobs       interfaces.JobStorage
	articles   interfaces.ArticleStorage
	logger     arbor.ILogger
}

// NewManager opens the database and initializes all storages
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig) (*Manager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:         db,
		categories: NewCategoryStorage(db, logger),
		jobs:       NewJobStorage(db, logger),
		articles:   NewArticleStorage(db, logger),
		logger:     logger,
	}, nil
}

// CategoryStorage returns the category storage
func (m *Manager) CategoryStorage() interfaces.CategoryStorage {
	return m.categories
}

// JobStorage returns the job storage
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

// ArticleStorage returns the article storage
func (m *Manager) ArticleStorage() interfaces.ArticleStorage {
	return m.articles
}

// Ping verifies database connectivity
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.Ping(ctx)
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
