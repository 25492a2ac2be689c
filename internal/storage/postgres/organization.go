package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"volume/internal/domain"
)

const organizationColumns = `id, slug, name, bio, category_slug, website_url, profile_image_url`

type OrganizationStore struct {
	db *sqlx.DB
}

func NewOrganizationStore(db *sqlx.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &org,
		`SELECT `+organizationColumns+` FROM organizations WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Upsert refreshes an organization from configuration and sets org.ID to
// the id of the stored row.
func (s *OrganizationStore) Upsert(ctx context.Context, org *domain.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}

	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES (:id, :slug, :name, :bio, :category_slug, :website_url, :profile_image_url)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			category_slug = EXCLUDED.category_slug,
			website_url = EXCLUDED.website_url,
			profile_image_url = EXCLUDED.profile_image_url
		RETURNING id`

	return upsertReturningID(ctx, GetExecutor(ctx, s.db), query, org, &org.ID)
}

// upsertReturningID runs a named upsert ending in RETURNING id and scans the
// surviving row's id into id.
func upsertReturningID(ctx context.Context, e sqlx.ExtContext, query string, arg any, id *string) error {
	rows, err := sqlx.NamedQueryContext(ctx, e, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(id); err != nil {
		return err
	}
	return rows.Err()
}
