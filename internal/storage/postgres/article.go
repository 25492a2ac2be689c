package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"volume/internal/domain"
)

const articleColumns = `id, title, article_url, image_url, publication_slug, date, shoutouts, nsfw, created_at`

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

func (s *ArticleStore) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	var article domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// InsertMany inserts every article independently. Rows rejected by an
// integrity constraint (a duplicate article_url, typically) are reported in a
// *domain.BulkInsertError while the rest are kept; any other failure aborts.
func (s *ArticleStore) InsertMany(ctx context.Context, articles []domain.Article) ([]domain.Article, error) {
	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	exec := GetExecutor(ctx, s.db)
	now := time.Now().UTC()

	inserted := make([]domain.Article, 0, len(articles))
	var failures []domain.ItemFailure

	for i, a := range articles {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}

		_, err := exec.ExecContext(ctx, query,
			a.ID,
			a.Title,
			a.ArticleURL,
			a.ImageURL,
			a.PublicationSlug,
			a.Date,
			a.Shoutouts,
			a.NSFW,
			a.CreatedAt,
		)
		if isIntegrityViolation(err) {
			failures = append(failures, domain.ItemFailure{Index: i, Err: err})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert article %d: %w", i, err)
		}
		inserted = append(inserted, a)
	}

	if len(failures) > 0 {
		return nil, &domain.BulkInsertError{Inserted: inserted, Failures: failures}
	}
	return inserted, nil
}

func (s *ArticleStore) ListSince(ctx context.Context, since time.Time) ([]domain.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE date >= $1 ORDER BY date DESC`

	articles := []domain.Article{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &articles, query, since)
	return articles, err
}

// ListByPublications pages through the visible articles of the given
// publications, newest first. Filtered rows never take up page slots.
func (s *ArticleStore) ListByPublications(ctx context.Context, slugs []string, offset, limit int) ([]domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE publication_slug = ANY($1) AND NOT nsfw
		ORDER BY date DESC, id
		OFFSET $2 LIMIT $3`

	articles := []domain.Article{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &articles, query, pq.Array(slugs), offset, limit)
	return articles, err
}

func (s *ArticleStore) SetShoutouts(ctx context.Context, id string, shoutouts int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE articles SET shoutouts = $2 WHERE id = $1`, id, shoutouts)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// IncrementShoutouts adds one shoutout in a single statement, so
// concurrent increments never overwrite each other.
func (s *ArticleStore) IncrementShoutouts(ctx context.Context, id string) (*domain.Article, error) {
	query := `
		UPDATE articles SET shoutouts = shoutouts + 1
		WHERE id = $1
		RETURNING ` + articleColumns

	var article domain.Article
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// isIntegrityViolation reports SQLSTATE class 23 errors: unique, foreign
// key, not-null and check violations.
func isIntegrityViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "23"
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
