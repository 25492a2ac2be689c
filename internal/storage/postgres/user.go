package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"volume/internal/domain"
)

const userColumns = `uuid, device_token, device_type, followed_publications, followed_organizations,
	read_articles, bookmarked_articles, created_at`

type userRow struct {
	UUID                  string         `db:"uuid"`
	DeviceToken           string         `db:"device_token"`
	DeviceType            string         `db:"device_type"`
	FollowedPublications  pq.StringArray `db:"followed_publications"`
	FollowedOrganizations pq.StringArray `db:"followed_organizations"`
	ReadArticles          pq.StringArray `db:"read_articles"`
	BookmarkedArticles    pq.StringArray `db:"bookmarked_articles"`
	CreatedAt             time.Time      `db:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		UUID:                  r.UUID,
		DeviceToken:           r.DeviceToken,
		DeviceType:            r.DeviceType,
		FollowedPublications:  r.FollowedPublications,
		FollowedOrganizations: r.FollowedOrganizations,
		ReadArticles:          r.ReadArticles,
		BookmarkedArticles:    r.BookmarkedArticles,
		CreatedAt:             r.CreatedAt,
	}
}

// orEmpty keeps NOT NULL array columns from receiving NULL for nil slices.
func orEmpty(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		u.UUID,
		u.DeviceToken,
		u.DeviceType,
		orEmpty(u.FollowedPublications),
		orEmpty(u.FollowedOrganizations),
		orEmpty(u.ReadArticles),
		orEmpty(u.BookmarkedArticles),
		u.CreatedAt,
	)
	return err
}

func (s *UserStore) GetByUUID(ctx context.Context, uuid string) (*domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row,
		`SELECT `+userColumns+` FROM users WHERE uuid = $1`, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user := row.toDomain()
	return &user, nil
}

// Save overwrites the user's device and list fields.
func (s *UserStore) Save(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users SET
			device_token = $2,
			device_type = $3,
			followed_publications = $4,
			followed_organizations = $5,
			read_articles = $6,
			bookmarked_articles = $7
		WHERE uuid = $1`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		u.UUID,
		u.DeviceToken,
		u.DeviceType,
		orEmpty(u.FollowedPublications),
		orEmpty(u.FollowedOrganizations),
		orEmpty(u.ReadArticles),
		orEmpty(u.BookmarkedArticles),
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *UserStore) ListFollowers(ctx context.Context, publicationSlug string) ([]domain.User, error) {
	var rows []userRow
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows,
		`SELECT `+userColumns+` FROM users WHERE $1 = ANY(followed_publications)`, publicationSlug)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, len(rows))
	for i, r := range rows {
		users[i] = r.toDomain()
	}
	return users, nil
}
