// internal/repositories/provider.go
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type ProviderRepo struct {
	db *sqlx.DB
}

// UpsertByName inserts an AI provider the first time its key is used and
// returns the existing row afterwards.
func (r *ProviderRepo) UpsertByName(ctx context.Context, name string) (*models.AIProvider, error) {
	var provider models.AIProvider
	err := r.db.GetContext(ctx, &provider, `
		INSERT INTO ai_providers (ai_provider_id, name, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING ai_provider_id, name, created_at`,
		uuid.New(), name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert provider %q: %w", name, err)
	}
	return &provider, nil
}
