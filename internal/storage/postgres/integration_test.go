//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"volume/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	for _, table := range []string{"article_tags", "tags", "articles", "magazines", "flyers", "organizations", "users", "publications", "feed_state"} {
		_, _ = s.db.ExecContext(s.ctx, "DELETE FROM "+table)
	}
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func articleBatch(urls ...string) []domain.Article {
	now := time.Now().UTC().Truncate(time.Microsecond)
	out := make([]domain.Article, len(urls))
	for i, u := range urls {
		out[i] = domain.Article{
			Title:           "Article " + u,
			ArticleURL:      "https://cornellsun.com/" + u,
			PublicationSlug: "sun",
			Date:            now.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func (s *PostgresIntegrationSuite) TestArticleStore_InsertMany_PartialDuplicates() {
	store := NewArticleStore(s.db)

	_, err := store.InsertMany(s.ctx, articleBatch("b", "d"))
	s.Require().NoError(err)

	inserted, err := store.InsertMany(s.ctx, articleBatch("a", "b", "c", "d", "e"))

	var bulkErr *domain.BulkInsertError
	s.Require().True(errors.As(err, &bulkErr))
	s.Nil(inserted)
	s.Len(bulkErr.Inserted, 3)
	s.Equal(map[int]struct{}{1: {}, 3: {}}, bulkErr.FailedIndexes())

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles"))
	s.Equal(5, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_InsertMany_SecondPassInsertsNothing() {
	store := NewArticleStore(s.db)
	batch := articleBatch("x", "y")

	first, err := store.InsertMany(s.ctx, batch)
	s.Require().NoError(err)
	s.Len(first, 2)
	s.NotEmpty(first[0].ID)

	_, err = store.InsertMany(s.ctx, batch)
	var bulkErr *domain.BulkInsertError
	s.Require().True(errors.As(err, &bulkErr))
	s.Empty(bulkErr.Inserted)
	s.Len(bulkErr.Failures, 2)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ConcurrentIncrements() {
	store := NewArticleStore(s.db)
	inserted, err := store.InsertMany(s.ctx, articleBatch("popular"))
	s.Require().NoError(err)
	id := inserted[0].ID

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementShoutouts(s.ctx, id)
			s.NoError(err)
		}()
	}
	wg.Wait()

	article, err := store.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(int64(20), article.Shoutouts)

	_, err = store.IncrementShoutouts(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListQueries() {
	store := NewArticleStore(s.db)
	batch := articleBatch("new", "old")
	batch[1].Date = time.Now().AddDate(0, 0, -60)
	batch = append(batch, domain.Article{
		Title: "Review", ArticleURL: "https://review.example.com/1", PublicationSlug: "review", Date: time.Now(),
	})
	_, err := store.InsertMany(s.ctx, batch)
	s.Require().NoError(err)

	recent, err := store.ListSince(s.ctx, time.Now().AddDate(0, 0, -30))
	s.Require().NoError(err)
	s.Len(recent, 2)

	sun, err := store.ListByPublications(s.ctx, []string{"sun"}, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(sun, 2)
	s.Equal("https://cornellsun.com/new", sun[0].ArticleURL)

	page, err := store.ListByPublications(s.ctx, []string{"sun", "review"}, 1, 1)
	s.Require().NoError(err)
	s.Len(page, 1)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListByPublications_FullPagesWithoutFiltered() {
	store := NewArticleStore(s.db)
	batch := articleBatch("a", "b", "c", "d", "e")
	batch[0].NSFW = true
	batch[2].NSFW = true
	_, err := store.InsertMany(s.ctx, batch)
	s.Require().NoError(err)

	first, err := store.ListByPublications(s.ctx, []string{"sun"}, 0, 2)
	s.Require().NoError(err)
	s.Require().Len(first, 2)
	s.Equal("https://cornellsun.com/b", first[0].ArticleURL)
	s.Equal("https://cornellsun.com/d", first[1].ArticleURL)

	second, err := store.ListByPublications(s.ctx, []string{"sun"}, 2, 2)
	s.Require().NoError(err)
	s.Require().Len(second, 1)
	s.Equal("https://cornellsun.com/e", second[0].ArticleURL)
	for _, a := range append(first, second...) {
		s.False(a.NSFW)
	}
}

func (s *PostgresIntegrationSuite) TestPublicationStore_UpsertKeepsShoutouts() {
	store := NewPublicationStore(s.db)
	pub := &domain.Publication{Slug: "sun", Name: "The Sun", RSSName: "The Cornell Daily Sun"}
	s.Require().NoError(store.Upsert(s.ctx, pub))

	s.Require().NoError(store.IncrementShoutouts(s.ctx, "sun"))
	s.Require().NoError(store.IncrementShoutouts(s.ctx, "sun"))

	again := &domain.Publication{Slug: "sun", Name: "The Cornell Daily Sun"}
	s.Require().NoError(store.Upsert(s.ctx, again))

	got, err := store.GetBySlug(s.ctx, "sun")
	s.Require().NoError(err)
	s.Equal("The Cornell Daily Sun", got.Name)
	s.Equal(int64(2), got.Shoutouts)
	s.Equal(pub.ID, got.ID)
	s.Equal(pub.ID, again.ID)

	s.ErrorIs(store.IncrementShoutouts(s.ctx, "gone"), domain.ErrNotFound)
	_, err = store.GetBySlug(s.ctx, "gone")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestPublicationStore_Stats() {
	articles := NewArticleStore(s.db)
	inserted, err := articles.InsertMany(s.ctx, articleBatch("one", "two"))
	s.Require().NoError(err)
	s.Require().NoError(articles.SetShoutouts(s.ctx, inserted[0].ID, 5))

	stats, err := NewPublicationStore(s.db).Stats(s.ctx, "sun")
	s.Require().NoError(err)
	s.Equal(int64(2), stats.NumArticles)
	s.Equal(int64(5), stats.ArticleShoutouts)
}

func (s *PostgresIntegrationSuite) TestMagazineStore_Featured() {
	store := NewMagazineStore(s.db)
	for i := range 3 {
		m := &domain.Magazine{
			Title:           fmt.Sprintf("Issue %d", i),
			PublicationSlug: "review",
			Date:            time.Now().Add(-time.Duration(i) * time.Hour),
		}
		s.Require().NoError(store.Insert(s.ctx, m))
		s.Require().NoError(store.SetFeatured(s.ctx, m.ID, true))
	}

	all, err := store.ListFeatured(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 3)

	two, err := store.ListFeatured(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(two, 2)
	s.Equal("Issue 0", two[0].Title)

	s.ErrorIs(store.SetFeatured(s.ctx, "missing", true), domain.ErrNotFound)

	m, err := store.IncrementShoutouts(s.ctx, all[0].ID)
	s.Require().NoError(err)
	s.Equal(int64(1), m.Shoutouts)
}

func (s *PostgresIntegrationSuite) TestFlyerStore_Lifecycle() {
	store := NewFlyerStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	upcoming := &domain.Flyer{
		ID: "f1", Title: "Concert", OrganizationSlug: "acsu",
		ImageURL:  "https://cdn.example.com/f1.png",
		StartDate: now.Add(time.Hour), EndDate: now.Add(3 * time.Hour), CreatedAt: now,
	}
	past := &domain.Flyer{
		ID: "f2", Title: "Old", OrganizationSlug: "acsu",
		StartDate: now.Add(-3 * time.Hour), EndDate: now.Add(-time.Hour), CreatedAt: now,
	}
	s.Require().NoError(store.Insert(s.ctx, upcoming))
	s.Require().NoError(store.Insert(s.ctx, past))

	list, err := store.ListUpcoming(s.ctx, now)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("f1", list[0].ID)

	f, err := store.IncrementClicks(s.ctx, "f1")
	s.Require().NoError(err)
	s.Equal(int64(1), f.TimesClicked)
	s.Require().NoError(store.SetTrendiness(s.ctx, "f1", 42.5))

	stats, err := store.OrganizationStats(s.ctx, "acsu")
	s.Require().NoError(err)
	s.Equal(int64(2), stats.NumFlyers)
	s.Equal(int64(1), stats.TotalClicks)

	deleted, err := store.Delete(s.ctx, "f1")
	s.Require().NoError(err)
	s.Equal("https://cdn.example.com/f1.png", deleted.ImageURL)
	s.Equal(42.5, deleted.Trendiness)

	_, err = store.Delete(s.ctx, "f1")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestOrganizationStore_Upsert() {
	store := NewOrganizationStore(s.db)
	org := &domain.Organization{Slug: "acsu", Name: "ACSU"}
	s.Require().NoError(store.Upsert(s.ctx, org))
	again := &domain.Organization{Slug: "acsu", Name: "Association of Computer Science Undergraduates"}
	s.Require().NoError(store.Upsert(s.ctx, again))

	got, err := store.GetBySlug(s.ctx, "acsu")
	s.Require().NoError(err)
	s.Equal(org.ID, got.ID)
	s.Equal(org.ID, again.ID)
	s.Equal("Association of Computer Science Undergraduates", got.Name)

	_, err = store.GetBySlug(s.ctx, "gone")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestUserStore_RoundTrip() {
	store := NewUserStore(s.db)
	user := &domain.User{
		UUID:       "u1",
		DeviceType: domain.DeviceIOS,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(store.Create(s.ctx, user))

	user.FollowPublication("sun")
	user.Bookmark("a1")
	s.Require().NoError(store.Save(s.ctx, user))

	got, err := store.GetByUUID(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal([]string{"sun"}, []string(got.FollowedPublications))
	s.Equal([]string{"a1"}, []string(got.BookmarkedArticles))
	s.Empty(got.ReadArticles)

	followers, err := store.ListFollowers(s.ctx, "sun")
	s.Require().NoError(err)
	s.Len(followers, 1)

	_, err = store.GetByUUID(s.ctx, "ghost")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestTagStore_LinkReplacesOld() {
	articles := NewArticleStore(s.db)
	tags := NewTagStore(s.db)
	inserted, err := articles.InsertMany(s.ctx, articleBatch("tagged"))
	s.Require().NoError(err)
	id := inserted[0].ID

	ids, err := tags.UpsertLabels(s.ctx, []string{"News", "Sports", "News"})
	s.Require().NoError(err)
	s.Len(ids, 2)

	again, err := tags.UpsertLabels(s.ctx, []string{"News"})
	s.Require().NoError(err)
	s.Equal(ids["News"], again["News"])

	s.Require().NoError(tags.LinkToArticle(s.ctx, id, []int64{ids["News"], ids["Sports"]}))
	s.Require().NoError(tags.LinkToArticle(s.ctx, id, []int64{ids["Sports"]}))

	labels, err := tags.GetByArticleID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Sports"}, labels)
}

func (s *PostgresIntegrationSuite) TestFeedStateStore() {
	store := NewFeedStateStore(s.db)

	state, err := store.Get(s.ctx, "https://cornellsun.com/feed")
	s.Require().NoError(err)
	s.True(state.LastRefreshedAt.IsZero())

	now := time.Now().UTC().Truncate(time.Microsecond)
	state.LastRefreshedAt = now
	state.TotalInserted = 7
	state.LastError = "timeout"
	s.Require().NoError(store.Update(s.ctx, state))

	state.TotalInserted = 9
	state.LastError = ""
	s.Require().NoError(store.Update(s.ctx, state))

	got, err := store.Get(s.ctx, "https://cornellsun.com/feed")
	s.Require().NoError(err)
	s.Equal(int64(9), got.TotalInserted)
	s.Empty(got.LastError)
	s.WithinDuration(now, got.LastRefreshedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	pubs := NewPublicationStore(s.db)
	articles := NewArticleStore(s.db)
	s.Require().NoError(pubs.Upsert(s.ctx, &domain.Publication{Slug: "sun"}))
	inserted, err := articles.InsertMany(s.ctx, articleBatch("tx"))
	s.Require().NoError(err)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := articles.IncrementShoutouts(ctx, inserted[0].ID); err != nil {
			return err
		}
		return pubs.IncrementShoutouts(ctx, "sun")
	})
	s.Require().NoError(err)

	pub, err := pubs.GetBySlug(s.ctx, "sun")
	s.Require().NoError(err)
	s.Equal(int64(1), pub.Shoutouts)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	articles := NewArticleStore(s.db)
	pubs := NewPublicationStore(s.db)
	inserted, err := articles.InsertMany(s.ctx, articleBatch("rollback"))
	s.Require().NoError(err)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := articles.IncrementShoutouts(ctx, inserted[0].ID); err != nil {
			return err
		}
		return pubs.IncrementShoutouts(ctx, "no-such-publication")
	})
	s.ErrorIs(err, domain.ErrNotFound)

	article, err := articles.GetByID(s.ctx, inserted[0].ID)
	s.Require().NoError(err)
	s.Equal(int64(0), article.Shoutouts)
}
