package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type TagStore struct {
	db *sqlx.DB
}

func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db}
}

// UpsertLabels makes sure every label has a row and returns label -> id.
func (s *TagStore) UpsertLabels(ctx context.Context, labels []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(labels))
	if len(labels) == 0 {
		return ids, nil
	}

	query := `
		INSERT INTO tags (label)
		SELECT DISTINCT unnest($1::text[])
		ON CONFLICT (label) DO UPDATE SET label = EXCLUDED.label
		RETURNING id, label`

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, query, pq.Array(labels))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		ids[label] = id
	}
	return ids, rows.Err()
}

// LinkToArticle replaces the article's tag links with tagIDs.
func (s *TagStore) LinkToArticle(ctx context.Context, articleID string, tagIDs []int64) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx, "DELETE FROM article_tags WHERE article_id = $1", articleID)
	if err != nil {
		return err
	}

	if len(tagIDs) == 0 {
		return nil
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO article_tags (article_id, tag_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`,
		articleID, pq.Array(tagIDs),
	)
	return err
}

func (s *TagStore) GetByArticleID(ctx context.Context, articleID string) ([]string, error) {
	query := `
		SELECT t.label
		FROM tags t
		INNER JOIN article_tags at ON at.tag_id = t.id
		WHERE at.article_id = $1
		ORDER BY t.label`

	labels := []string{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &labels, query, articleID)
	return labels, err
}
