package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"volume/internal/domain"
)

const publicationColumns = `id, slug, name, bio, website_url, profile_image_url, rss_url, rss_name, shoutouts`

type PublicationStore struct {
	db *sqlx.DB
}

func NewPublicationStore(db *sqlx.DB) *PublicationStore {
	return &PublicationStore{db: db}
}

func (s *PublicationStore) GetBySlug(ctx context.Context, slug string) (*domain.Publication, error) {
	var pub domain.Publication
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &pub,
		`SELECT `+publicationColumns+` FROM publications WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// Stats sums article aggregates at read time.
func (s *PublicationStore) Stats(ctx context.Context, slug string) (*domain.PublicationStats, error) {
	var stats domain.PublicationStats
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &stats, `
		SELECT COUNT(*) AS num_articles, COALESCE(SUM(shoutouts), 0) AS article_shoutouts
		FROM articles
		WHERE publication_slug = $1`, slug)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Upsert refreshes a publication's descriptive fields from configuration.
// The shoutouts counter is never overwritten. pub.ID is set to the id of the
// stored row.
func (s *PublicationStore) Upsert(ctx context.Context, pub *domain.Publication) error {
	if pub.ID == "" {
		pub.ID = uuid.NewString()
	}

	query := `
		INSERT INTO publications (` + publicationColumns + `)
		VALUES (:id, :slug, :name, :bio, :website_url, :profile_image_url, :rss_url, :rss_name, :shoutouts)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			website_url = EXCLUDED.website_url,
			profile_image_url = EXCLUDED.profile_image_url,
			rss_url = EXCLUDED.rss_url,
			rss_name = EXCLUDED.rss_name
		RETURNING id`

	return upsertReturningID(ctx, GetExecutor(ctx, s.db), query, pub, &pub.ID)
}

func (s *PublicationStore) SetShoutouts(ctx context.Context, slug string, shoutouts int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE publications SET shoutouts = $2 WHERE slug = $1`, slug, shoutouts)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PublicationStore) IncrementShoutouts(ctx context.Context, slug string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE publications SET shoutouts = shoutouts + 1 WHERE slug = $1`, slug)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
