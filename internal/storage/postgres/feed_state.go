package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"volume/internal/domain"
)

type FeedStateStore struct {
	db *sqlx.DB
}

func NewFeedStateStore(db *sqlx.DB) *FeedStateStore {
	return &FeedStateStore{db: db}
}

func (s *FeedStateStore) Get(ctx context.Context, sourceURL string) (*domain.FeedState, error) {
	var state domain.FeedState
	query := `
		SELECT id, source_url, last_refreshed_at, last_error, total_inserted
		FROM feed_state
		WHERE source_url = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, sourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.FeedState{SourceURL: sourceURL}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *FeedStateStore) Update(ctx context.Context, state *domain.FeedState) error {
	query := `
		INSERT INTO feed_state (source_url, last_refreshed_at, last_error, total_inserted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_url) DO UPDATE SET
			last_refreshed_at = EXCLUDED.last_refreshed_at,
			last_error = EXCLUDED.last_error,
			total_inserted = EXCLUDED.total_inserted`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.SourceURL,
		state.LastRefreshedAt,
		state.LastError,
		state.TotalInserted,
	)
	return err
}
