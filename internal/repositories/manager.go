// internal/repositories/manager.go
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Manager bundles all database repositories over one sqlx connection pool.
type Manager struct {
	db *sqlx.DB

	Companies *CompanyRepo
	Topics    *TopicRepo
	Prompts   *PromptRepo
	Providers *ProviderRepo
	Runs      *RunRepo
	Sources   *SourceRepo
}

// NewManager creates a new repository manager with all repositories.
func NewManager(db *sqlx.DB) *Manager {
	return &Manager{
		db:        db,
		Companies: &CompanyRepo{db: db},
		Topics:    &TopicRepo{db: db},
		Prompts:   &PromptRepo{db: db},
		Providers: &ProviderRepo{db: db},
		Runs:      &RunRepo{db: db},
		Sources:   &SourceRepo{db: db},
	}
}

// BeginTx starts a database transaction. One ingestion run's writes
// (prompt run, mentions, sources, mention details) all share one transaction
// so a mid-iteration crash cannot leave a run without its mentions.
func (m *Manager) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}
