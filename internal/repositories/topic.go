// internal/repositories/topic.go
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type TopicRepo struct {
	db *sqlx.DB
}

// ListByCompany returns the company's topics, oldest first.
func (r *TopicRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Topic, error) {
	var topics []*models.Topic
	err := r.db.SelectContext(ctx, &topics, `
		SELECT topic_id, company_id, name, created_at
		FROM topics
		WHERE company_id = $1
		ORDER BY created_at`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics for company %s: %w", companyID, err)
	}
	return topics, nil
}
