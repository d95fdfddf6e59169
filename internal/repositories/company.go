// internal/repositories/company.go
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type CompanyRepo struct {
	db *sqlx.DB
}

// UpsertByDomain inserts a company keyed by its canonical domain, or touches
// the existing row. The stored name of an existing company is kept.
func (r *CompanyRepo) UpsertByDomain(ctx context.Context, name, domain string) (*models.Company, error) {
	return upsertCompany(ctx, r.db, name, domain)
}

// UpsertByDomainTx is UpsertByDomain inside an existing transaction.
func (r *CompanyRepo) UpsertByDomainTx(ctx context.Context, tx *sqlx.Tx, name, domain string) (*models.Company, error) {
	return upsertCompany(ctx, tx, name, domain)
}

func upsertCompany(ctx context.Context, q sqlx.ExtContext, name, domain string) (*models.Company, error) {
	canonical := models.CanonicalDomain(domain)
	if canonical == "" {
		return nil, fmt.Errorf("company upsert: empty canonical domain for %q", domain)
	}

	var company models.Company
	err := sqlx.GetContext(ctx, q, &company, `
		INSERT INTO companies (company_id, name, domain, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (domain) DO UPDATE SET updated_at = now()
		RETURNING company_id, name, domain, created_at, updated_at`,
		uuid.New(), name, canonical,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert company %q: %w", canonical, err)
	}
	return &company, nil
}

// GetByID fetches a company or returns nil when it does not exist.
func (r *CompanyRepo) GetByID(ctx context.Context, companyID uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.db.GetContext(ctx, &company, `
		SELECT company_id, name, domain, created_at, updated_at
		FROM companies
		WHERE company_id = $1`,
		companyID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company %s: %w", companyID, err)
	}
	return &company, nil
}

// ListWithActivePrompts returns companies owning at least one active prompt,
// oldest first. limit <= 0 means no limit.
func (r *CompanyRepo) ListWithActivePrompts(ctx context.Context, limit int) ([]*models.Company, error) {
	query := `
		SELECT DISTINCT c.company_id, c.name, c.domain, c.created_at, c.updated_at
		FROM companies c
		JOIN prompts p ON p.company_id = c.company_id AND p.is_active
		ORDER BY c.created_at`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var companies []*models.Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list companies with active prompts: %w", err)
	}
	return companies, nil
}
