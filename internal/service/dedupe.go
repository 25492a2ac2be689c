package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"volume/internal/domain"
	"volume/internal/metrics"
)

// Deduplicator hands a batch to the store's unordered insert and turns a
// partial failure into a result. Uniqueness itself is enforced by the
// store (articles.article_url).
type Deduplicator struct {
	articles ArticleStore
	logger   *slog.Logger
}

func NewDeduplicator(articles ArticleStore, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		articles: articles,
		logger:   logger.With("component", "deduplicator"),
	}
}

func (d *Deduplicator) ResolveBatchInsert(ctx context.Context, batch []domain.Article) (domain.BatchResult, error) {
	if len(batch) == 0 {
		return domain.BatchResult{}, nil
	}

	inserted, err := d.articles.InsertMany(ctx, batch)
	if err == nil {
		metrics.RecordBatchInsert(len(inserted), 0)
		return domain.BatchResult{Inserted: inserted}, nil
	}

	var bulkErr *domain.BulkInsertError
	if !errors.As(err, &bulkErr) {
		return domain.BatchResult{}, fmt.Errorf("insert batch: %w", err)
	}

	if len(bulkErr.Failures) == 0 {
		metrics.RecordBatchInsert(len(bulkErr.Inserted), 0)
		return domain.BatchResult{Inserted: bulkErr.Inserted}, nil
	}

	failed := bulkErr.FailedIndexes()
	skipped := make([]domain.Article, 0, len(failed))
	for i := range batch {
		if _, ok := failed[i]; ok {
			skipped = append(skipped, batch[i])
		}
	}

	d.logger.Debug("batch partially inserted",
		"inserted", len(bulkErr.Inserted),
		"skipped", len(skipped),
		"first_error", bulkErr.Failures[0].Err,
	)
	metrics.RecordBatchInsert(len(bulkErr.Inserted), len(skipped))

	return domain.BatchResult{Inserted: bulkErr.Inserted, Skipped: skipped}, nil
}
