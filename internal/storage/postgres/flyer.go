package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"volume/internal/domain"
)

const flyerColumns = `id, title, organization_slug, category_slug, location, flyer_url, image_url,
	start_date, end_date, times_clicked, trendiness, nsfw, created_at`

type FlyerStore struct {
	db *sqlx.DB
}

func NewFlyerStore(db *sqlx.DB) *FlyerStore {
	return &FlyerStore{db: db}
}

func (s *FlyerStore) GetByID(ctx context.Context, id string) (*domain.Flyer, error) {
	return s.getOne(ctx, `SELECT `+flyerColumns+` FROM flyers WHERE id = $1`, id)
}

func (s *FlyerStore) Insert(ctx context.Context, f *domain.Flyer) error {
	query := `
		INSERT INTO flyers (` + flyerColumns + `)
		VALUES (:id, :title, :organization_slug, :category_slug, :location, :flyer_url, :image_url,
			:start_date, :end_date, :times_clicked, :trendiness, :nsfw, :created_at)`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, f)
	return err
}

// Delete removes the flyer and returns the deleted row.
func (s *FlyerStore) Delete(ctx context.Context, id string) (*domain.Flyer, error) {
	return s.getOne(ctx, `DELETE FROM flyers WHERE id = $1 RETURNING `+flyerColumns, id)
}

// ListUpcoming returns flyers whose event has not ended at now.
func (s *FlyerStore) ListUpcoming(ctx context.Context, now time.Time) ([]domain.Flyer, error) {
	flyers := []domain.Flyer{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &flyers,
		`SELECT `+flyerColumns+` FROM flyers WHERE end_date >= $1 ORDER BY start_date`, now)
	return flyers, err
}

func (s *FlyerStore) ListByOrganization(ctx context.Context, slug string) ([]domain.Flyer, error) {
	flyers := []domain.Flyer{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &flyers,
		`SELECT `+flyerColumns+` FROM flyers WHERE organization_slug = $1 ORDER BY start_date DESC`, slug)
	return flyers, err
}

func (s *FlyerStore) OrganizationStats(ctx context.Context, slug string) (*domain.OrganizationStats, error) {
	var stats domain.OrganizationStats
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &stats, `
		SELECT COUNT(*) AS num_flyers, COALESCE(SUM(times_clicked), 0) AS total_clicks
		FROM flyers
		WHERE organization_slug = $1`, slug)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *FlyerStore) SetClicks(ctx context.Context, id string, clicks int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE flyers SET times_clicked = $2 WHERE id = $1`, id, clicks)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *FlyerStore) IncrementClicks(ctx context.Context, id string) (*domain.Flyer, error) {
	return s.getOne(ctx,
		`UPDATE flyers SET times_clicked = times_clicked + 1 WHERE id = $1 RETURNING `+flyerColumns, id)
}

func (s *FlyerStore) SetTrendiness(ctx context.Context, id string, trendiness float64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE flyers SET trendiness = $2 WHERE id = $1`, id, trendiness)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *FlyerStore) getOne(ctx context.Context, query string, args ...any) (*domain.Flyer, error) {
	var f domain.Flyer
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &f, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
