package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"volume/internal/config"
	"volume/internal/domain"
	"volume/internal/service/mocks"
)

type CounterServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	articles     *mocks.MockArticleStore
	magazines    *mocks.MockMagazineStore
	flyers       *mocks.MockFlyerStore
	publications *mocks.MockPublicationStore
	txManager    *mocks.MockTransactionManager
}

func (s *CounterServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.magazines = mocks.NewMockMagazineStore(s.ctrl)
	s.flyers = mocks.NewMockFlyerStore(s.ctrl)
	s.publications = mocks.NewMockPublicationStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
}

func (s *CounterServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCounterServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CounterServiceTestSuite))
}

func (s *CounterServiceTestSuite) newService(cfg config.CountersConfig) *CounterService {
	return NewCounterService(s.articles, s.magazines, s.flyers, s.publications, s.txManager, testLogger(), cfg)
}

func naive() config.CountersConfig {
	atomic := false
	return config.CountersConfig{Atomic: &atomic}
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_Atomic() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{})

	s.articles.EXPECT().IncrementShoutouts(ctx, "a1").Return(&domain.Article{ID: "a1", PublicationSlug: "sun", Shoutouts: 3}, nil)
	s.publications.EXPECT().IncrementShoutouts(ctx, "sun").Return(nil)

	article, err := service.IncrementShoutouts(ctx, "a1")

	s.Require().NoError(err)
	s.Equal(int64(3), article.Shoutouts)
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_MissingArticle() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{})

	s.articles.EXPECT().IncrementShoutouts(ctx, "nope").Return(nil, domain.ErrNotFound)

	article, err := service.IncrementShoutouts(ctx, "nope")

	s.NoError(err)
	s.Nil(article)
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_NaiveMissingArticleWritesNothing() {
	ctx := context.Background()
	service := s.newService(naive())

	s.articles.EXPECT().GetByID(ctx, "nope").Return(nil, domain.ErrNotFound)

	article, err := service.IncrementShoutouts(ctx, "nope")

	s.NoError(err)
	s.Nil(article)
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_NaiveReadModifyWrite() {
	ctx := context.Background()
	service := s.newService(naive())

	s.articles.EXPECT().GetByID(ctx, "a1").Return(&domain.Article{ID: "a1", PublicationSlug: "sun", Shoutouts: 4}, nil)
	s.articles.EXPECT().SetShoutouts(ctx, "a1", int64(5)).Return(nil)
	s.publications.EXPECT().GetBySlug(ctx, "sun").Return(&domain.Publication{Slug: "sun", Shoutouts: 10}, nil)
	s.publications.EXPECT().SetShoutouts(ctx, "sun", int64(11)).Return(nil)

	article, err := service.IncrementShoutouts(ctx, "a1")

	s.Require().NoError(err)
	s.Equal(int64(5), article.Shoutouts)
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_MissingParentStillCounts() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{})

	s.articles.EXPECT().IncrementShoutouts(ctx, "a1").Return(&domain.Article{ID: "a1", PublicationSlug: "gone", Shoutouts: 1}, nil)
	s.publications.EXPECT().IncrementShoutouts(ctx, "gone").Return(domain.ErrNotFound)

	article, err := service.IncrementShoutouts(ctx, "a1")

	s.Require().NoError(err)
	s.Equal(int64(1), article.Shoutouts)
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_ParentFailure() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{})

	s.articles.EXPECT().IncrementShoutouts(ctx, "a1").Return(&domain.Article{ID: "a1", PublicationSlug: "sun"}, nil)
	s.publications.EXPECT().IncrementShoutouts(ctx, "sun").Return(errors.New("timeout"))

	article, err := service.IncrementShoutouts(ctx, "a1")

	s.Error(err)
	s.Nil(article)
	s.Contains(err.Error(), "increment article")
}

func (s *CounterServiceTestSuite) TestIncrementShoutouts_Transactional() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{Transactional: true})

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.articles.EXPECT().IncrementShoutouts(ctx, "a1").Return(&domain.Article{ID: "a1", PublicationSlug: "sun", Shoutouts: 2}, nil)
	s.publications.EXPECT().IncrementShoutouts(ctx, "sun").Return(nil)

	article, err := service.IncrementShoutouts(ctx, "a1")

	s.Require().NoError(err)
	s.Equal(int64(2), article.Shoutouts)
}

func (s *CounterServiceTestSuite) TestIncrementMagazineShoutouts() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{})

	s.magazines.EXPECT().IncrementShoutouts(ctx, "m1").Return(&domain.Magazine{ID: "m1", PublicationSlug: "review", Shoutouts: 8}, nil)
	s.publications.EXPECT().IncrementShoutouts(ctx, "review").Return(nil)

	magazine, err := service.IncrementMagazineShoutouts(ctx, "m1")

	s.Require().NoError(err)
	s.Equal(int64(8), magazine.Shoutouts)
}

func (s *CounterServiceTestSuite) TestIncrementClicks_PersistsTrendiness() {
	ctx := context.Background()
	service := s.newService(config.CountersConfig{})
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	start := now.Add(time.Hour)
	s.flyers.EXPECT().IncrementClicks(ctx, "f1").Return(&domain.Flyer{ID: "f1", TimesClicked: 36, StartDate: start}, nil)
	s.flyers.EXPECT().SetTrendiness(ctx, "f1", gomock.Any()).Return(nil)

	flyer, err := service.IncrementClicks(ctx, "f1")

	s.Require().NoError(err)
	s.Equal(int64(36), flyer.TimesClicked)
	s.InDelta(100.0, flyer.Trendiness, 1e-9)
}

func (s *CounterServiceTestSuite) TestIncrementClicks_MissingFlyer() {
	ctx := context.Background()
	service := s.newService(naive())

	s.flyers.EXPECT().GetByID(ctx, "nope").Return(nil, domain.ErrNotFound)

	flyer, err := service.IncrementClicks(ctx, "nope")

	s.NoError(err)
	s.Nil(flyer)
}

// racyArticles is an in-memory ArticleStore whose reads wait until every
// expected reader has arrived, forcing reads to interleave before writes.
type racyArticles struct {
	ArticleStore

	mu       sync.Mutex
	article  domain.Article
	barrier  sync.WaitGroup
	setCalls int
}

func (r *racyArticles) GetByID(_ context.Context, id string) (*domain.Article, error) {
	r.mu.Lock()
	a := r.article
	r.mu.Unlock()

	r.barrier.Done()
	r.barrier.Wait()
	return &a, nil
}

func (r *racyArticles) SetShoutouts(_ context.Context, _ string, shoutouts int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.article.Shoutouts = shoutouts
	r.setCalls++
	return nil
}

func (r *racyArticles) IncrementShoutouts(_ context.Context, _ string) (*domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.article.Shoutouts++
	a := r.article
	return &a, nil
}

func (s *CounterServiceTestSuite) runConcurrent(service *CounterService, n int) {
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.IncrementShoutouts(context.Background(), "a1")
			s.NoError(err)
		}()
	}
	wg.Wait()
}

func (s *CounterServiceTestSuite) TestConcurrentIncrements_NaiveLosesUpdate() {
	store := &racyArticles{article: domain.Article{ID: "a1", PublicationSlug: "sun"}}
	store.barrier.Add(2)

	s.publications.EXPECT().GetBySlug(gomock.Any(), "sun").Return(&domain.Publication{Slug: "sun"}, nil).Times(2)
	s.publications.EXPECT().SetShoutouts(gomock.Any(), "sun", gomock.Any()).Return(nil).Times(2)

	service := NewCounterService(store, s.magazines, s.flyers, s.publications, nil, testLogger(), naive())
	s.runConcurrent(service, 2)

	s.Equal(2, store.setCalls)
	s.Equal(int64(1), store.article.Shoutouts)
}

func (s *CounterServiceTestSuite) TestConcurrentIncrements_AtomicKeepsBoth() {
	store := &racyArticles{article: domain.Article{ID: "a1", PublicationSlug: "sun"}}

	s.publications.EXPECT().IncrementShoutouts(gomock.Any(), "sun").Return(nil).Times(2)

	service := NewCounterService(store, s.magazines, s.flyers, s.publications, nil, testLogger(), config.CountersConfig{})
	s.runConcurrent(service, 2)

	s.Equal(int64(2), store.article.Shoutouts)
}
