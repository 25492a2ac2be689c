package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"volume/internal/domain"
)

const magazineColumns = `id, title, publication_slug, pdf_url, semester, date, shoutouts, nsfw, is_featured, created_at`

type MagazineStore struct {
	db *sqlx.DB
}

func NewMagazineStore(db *sqlx.DB) *MagazineStore {
	return &MagazineStore{db: db}
}

func (s *MagazineStore) Insert(ctx context.Context, m *domain.Magazine) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO magazines (` + magazineColumns + `)
		VALUES (:id, :title, :publication_slug, :pdf_url, :semester, :date, :shoutouts, :nsfw, :is_featured, :created_at)`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, m)
	return err
}

func (s *MagazineStore) GetByID(ctx context.Context, id string) (*domain.Magazine, error) {
	var m domain.Magazine
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &m,
		`SELECT `+magazineColumns+` FROM magazines WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MagazineStore) ListSince(ctx context.Context, since time.Time) ([]domain.Magazine, error) {
	mags := []domain.Magazine{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &mags,
		`SELECT `+magazineColumns+` FROM magazines WHERE date >= $1 ORDER BY date DESC`, since)
	return mags, err
}

// ListFeatured returns featured magazines, newest first. A limit of 0 or
// less returns all of them.
func (s *MagazineStore) ListFeatured(ctx context.Context, limit int) ([]domain.Magazine, error) {
	var max sql.NullInt64
	if limit > 0 {
		max = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	mags := []domain.Magazine{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &mags,
		`SELECT `+magazineColumns+` FROM magazines WHERE is_featured ORDER BY date DESC LIMIT $1`, max)
	return mags, err
}

func (s *MagazineStore) SetFeatured(ctx context.Context, id string, featured bool) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE magazines SET is_featured = $2 WHERE id = $1`, id, featured)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *MagazineStore) SetShoutouts(ctx context.Context, id string, shoutouts int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE magazines SET shoutouts = $2 WHERE id = $1`, id, shoutouts)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *MagazineStore) IncrementShoutouts(ctx context.Context, id string) (*domain.Magazine, error) {
	var m domain.Magazine
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &m,
		`UPDATE magazines SET shoutouts = shoutouts + 1 WHERE id = $1 RETURNING `+magazineColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
