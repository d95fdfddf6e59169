// internal/repositories/prompt.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type PromptRepo struct {
	db *sqlx.DB
}

type promptRow struct {
	PromptID  uuid.UUID      `db:"prompt_id"`
	TopicID   uuid.UUID      `db:"topic_id"`
	CompanyID uuid.UUID      `db:"company_id"`
	Text      string         `db:"text"`
	IsActive  bool           `db:"is_active"`
	Tags      pq.StringArray `db:"tags"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row *promptRow) toModel() *models.Prompt {
	return &models.Prompt{
		PromptID:  row.PromptID,
		TopicID:   row.TopicID,
		CompanyID: row.CompanyID,
		Text:      row.Text,
		IsActive:  row.IsActive,
		Tags:      []string(row.Tags),
		CreatedAt: row.CreatedAt,
	}
}

// ListActiveByTopic returns the topic's active prompts, oldest first.
// Inactive prompts are never processed by the ingestion pipeline.
func (r *PromptRepo) ListActiveByTopic(ctx context.Context, topicID uuid.UUID) ([]*models.Prompt, error) {
	var rows []*promptRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT prompt_id, topic_id, company_id, text, is_active, tags, created_at
		FROM prompts
		WHERE topic_id = $1 AND is_active
		ORDER BY created_at`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active prompts for topic %s: %w", topicID, err)
	}

	prompts := make([]*models.Prompt, 0, len(rows))
	for _, row := range rows {
		prompts = append(prompts, row.toModel())
	}
	return prompts, nil
}
