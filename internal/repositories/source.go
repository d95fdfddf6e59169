// internal/repositories/source.go
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type SourceRepo struct {
	db *sqlx.DB
}

// UpsertSourceTx inserts a source keyed by canonical domain. A non-nil
// siteName fills in a previously unresolved name but never overwrites one.
func (r *SourceRepo) UpsertSourceTx(ctx context.Context, tx *sqlx.Tx, domain string, siteName *string) (*models.Source, error) {
	canonical := models.CanonicalDomain(domain)
	if canonical == "" {
		return nil, fmt.Errorf("source upsert: empty canonical domain for %q", domain)
	}

	var source models.Source
	err := tx.GetContext(ctx, &source, `
		INSERT INTO sources (source_id, domain, site_name, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (domain) DO UPDATE SET site_name = COALESCE(sources.site_name, EXCLUDED.site_name)
		RETURNING source_id, domain, site_name, created_at`,
		uuid.New(), canonical, siteName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source %q: %w", canonical, err)
	}
	return &source, nil
}

// UpsertSourceURLTx inserts a source URL keyed by the exact URL string.
func (r *SourceRepo) UpsertSourceURLTx(ctx context.Context, tx *sqlx.Tx, sourceID uuid.UUID, url string) (*models.SourceURL, error) {
	var sourceURL models.SourceURL
	err := tx.GetContext(ctx, &sourceURL, `
		INSERT INTO source_urls (source_url_id, source_id, url, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (url) DO UPDATE SET source_id = source_urls.source_id
		RETURNING source_url_id, source_id, url, created_at`,
		uuid.New(), sourceID, url,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source url %q: %w", url, err)
	}
	return &sourceURL, nil
}

// BulkCreateMentionDetailsTx inserts mention details, one row per
// (run, company, url) triple.
func (r *SourceRepo) BulkCreateMentionDetailsTx(ctx context.Context, tx *sqlx.Tx, details []*models.MentionDetail) error {
	for _, d := range details {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mention_details (prompt_run_id, company_id, source_url_id, count)
			VALUES ($1, $2, $3, $4)`,
			d.PromptRunID, d.CompanyID, d.SourceURLID, d.Count,
		)
		if err != nil {
			return fmt.Errorf("failed to create mention detail: %w", err)
		}
	}
	return nil
}
