// internal/repositories/run.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type RunRepo struct {
	db *sqlx.DB
}

// ExistsForDay reports whether a run already exists for the (prompt,
// provider) pair on the given UTC calendar day. Callers use this as the
// duplicate guard before starting an extraction cycle.
func (r *RunRepo) ExistsForDay(ctx context.Context, promptID, providerID uuid.UUID, day time.Time) (bool, error) {
	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM prompt_runs
			WHERE prompt_id = $1 AND ai_provider_id = $2
			  AND run_at >= $3 AND run_at < $4
		)`,
		promptID, providerID, dayStart, dayEnd,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check existing run for prompt %s: %w", promptID, err)
	}
	return exists, nil
}

// CreateTx inserts a prompt run. Runs are append-only and immutable.
func (r *RunRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, run *models.PromptRun) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO prompt_runs (prompt_run_id, prompt_id, ai_provider_id, raw_answer, input_tokens, output_tokens, total_cost, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.PromptRunID, run.PromptID, run.AIProviderID, run.RawAnswer,
		run.InputTokens, run.OutputTokens, run.TotalCost, run.RunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prompt run: %w", err)
	}
	return nil
}

// BulkCreateMentionsTx inserts company mentions for a run. At most one row
// per (run, company) is expected from the extraction dedup pass.
func (r *RunRepo) BulkCreateMentionsTx(ctx context.Context, tx *sqlx.Tx, mentions []*models.CompanyMention) error {
	for _, m := range mentions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO company_mentions (company_mention_id, prompt_run_id, company_id, sentiment, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			m.CompanyMentionID, m.PromptRunID, m.CompanyID, m.Sentiment, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create company mention: %w", err)
		}
	}
	return nil
}

// ListRunsWithMentions returns every run of the owner company's prompts in
// [start, end) joined with its company mentions, one flat row per
// (run, mention) pair. Runs without mentions appear once with nil mention
// columns. This is the only read the analytics aggregator needs.
func (r *RunRepo) ListRunsWithMentions(ctx context.Context, ownerCompanyID uuid.UUID, start, end time.Time) ([]*models.RunMention, error) {
	var rows []*models.RunMention
	err := r.db.SelectContext(ctx, &rows, `
		SELECT pr.prompt_run_id, pr.prompt_id, pr.run_at,
		       cm.company_id, c.name AS company_name, c.domain AS company_domain, cm.sentiment
		FROM prompt_runs pr
		JOIN prompts p ON p.prompt_id = pr.prompt_id
		LEFT JOIN company_mentions cm ON cm.prompt_run_id = pr.prompt_run_id
		LEFT JOIN companies c ON c.company_id = cm.company_id
		WHERE p.company_id = $1 AND pr.run_at >= $2 AND pr.run_at < $3
		ORDER BY pr.run_at, pr.prompt_run_id`,
		ownerCompanyID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs with mentions for company %s: %w", ownerCompanyID, err)
	}
	return rows, nil
}
