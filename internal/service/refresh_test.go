package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"volume/internal/domain"
	"volume/internal/service/mocks"
)

const (
	sunFeed   = "https://cornellsun.com/feed"
	reviewURL = "https://review.example.com/rss"
)

type RefreshServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockFeedSource
	articles  *mocks.MockArticleStore
	tags      *mocks.MockTagStore
	feedState *mocks.MockFeedStateStore
	users     *mocks.MockUserStore
	notifier  *mocks.MockPushNotifier
	events    *mocks.MockEventPublisher
	filter    *mocks.MockContentFilter

	service *RefreshService
	now     time.Time
}

func (s *RefreshServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockFeedSource(s.ctrl)
	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.tags = mocks.NewMockTagStore(s.ctrl)
	s.feedState = mocks.NewMockFeedStateStore(s.ctrl)
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.notifier = mocks.NewMockPushNotifier(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.filter = mocks.NewMockContentFilter(s.ctrl)

	directory := domain.NewPublicationDirectory([]domain.Publication{
		{Slug: "cornell-daily-sun", RSSName: "The Cornell Daily Sun", RSSURL: sunFeed},
	})

	logger := testLogger()
	s.service = NewRefreshService(
		s.source,
		NewDeduplicator(s.articles, logger),
		s.tags,
		s.feedState,
		s.users,
		s.notifier,
		s.events,
		s.filter,
		directory,
		[]string{sunFeed, reviewURL},
		logger,
	)
	s.now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.service.now = func() time.Time { return s.now }

	s.filter.EXPECT().IsProfane(gomock.Any()).DoAndReturn(func(text string) bool {
		return text == "Bad words"
	}).AnyTimes()
}

func (s *RefreshServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRefreshServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RefreshServiceTestSuite))
}

func (s *RefreshServiceTestSuite) expectFeedStates() {
	s.feedState.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, url string) (*domain.FeedState, error) {
			return &domain.FeedState{SourceURL: url}, nil
		},
	).Times(2)
}

func (s *RefreshServiceTestSuite) TestRefreshAll_IsolatesFailedFeed() {
	ctx := context.Background()
	published := s.now.Add(-time.Hour)

	s.source.EXPECT().Fetch(ctx, sunFeed).Return(&domain.Feed{
		Title:     "The Cornell Daily Sun",
		SourceURL: sunFeed,
		Items: []domain.FeedItem{
			{
				Title:           "  Slope Day &amp; <b>you</b> ",
				Link:            "https://cornellsun.com/slope-day",
				PublishedParsed: &published,
				Categories:      []string{"News", " News ", ""},
			},
			{Title: "", Link: "https://cornellsun.com/untitled", PublishedParsed: &published},
		},
	}, nil)
	s.source.EXPECT().Fetch(ctx, reviewURL).Return(nil, errors.New("connection reset"))

	s.articles.EXPECT().InsertMany(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, batch []domain.Article) ([]domain.Article, error) {
			s.Require().Len(batch, 1)
			s.Equal("Slope Day & you", batch[0].Title)
			s.Equal("cornell-daily-sun", batch[0].PublicationSlug)
			s.Equal([]string{"News"}, batch[0].Tags)
			batch[0].ID = "a1"
			return batch, nil
		},
	)
	s.tags.EXPECT().UpsertLabels(ctx, []string{"News"}).Return(map[string]int64{"News": 7}, nil)
	s.tags.EXPECT().LinkToArticle(ctx, "a1", []int64{7}).Return(nil)

	var states []*domain.FeedState
	s.expectFeedStates()
	s.feedState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, st *domain.FeedState) error {
			states = append(states, st)
			return nil
		},
	).Times(2)

	s.users.EXPECT().ListFollowers(ctx, "cornell-daily-sun").Return([]domain.User{
		{UUID: "u1", DeviceToken: "tok-1", DeviceType: domain.DeviceIOS},
		{UUID: "u2"},
	}, nil)
	s.notifier.EXPECT().Send(ctx, domain.Notification{
		DeviceToken: "tok-1",
		DeviceType:  domain.DeviceIOS,
		Title:       "The Cornell Daily Sun",
		Body:        "Slope Day & you",
		ArticleID:   "a1",
	}).Return(nil)
	s.events.EXPECT().PublishArticle(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.RefreshAll(ctx)

	s.Require().NoError(err)
	s.Equal(2, stats.Sources)
	s.Equal(1, stats.FailedSources)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Inserted)
	s.Equal(0, stats.Skipped)
	s.Equal(1, stats.Notified)

	s.Require().Len(states, 2)
	s.Equal(sunFeed, states[0].SourceURL)
	s.Equal(int64(1), states[0].TotalInserted)
	s.Empty(states[0].LastError)
	s.Equal(reviewURL, states[1].SourceURL)
	s.Equal("connection reset", states[1].LastError)
}

func (s *RefreshServiceTestSuite) TestRefresh_SecondPassInsertsNothing() {
	ctx := context.Background()
	published := s.now.Add(-time.Hour)
	feed := &domain.Feed{
		Title:     "The Cornell Daily Sun",
		SourceURL: sunFeed,
		Items: []domain.FeedItem{
			{Title: "One", Link: "https://cornellsun.com/1", PublishedParsed: &published},
		},
	}

	s.source.EXPECT().Fetch(ctx, sunFeed).Return(feed, nil)
	s.articles.EXPECT().InsertMany(ctx, gomock.Any()).Return(nil, &domain.BulkInsertError{
		Failures: []domain.ItemFailure{{Index: 0, Err: errors.New("duplicate")}},
	})
	s.feedState.EXPECT().Get(ctx, sunFeed).Return(&domain.FeedState{SourceURL: sunFeed, TotalInserted: 4}, nil)
	s.feedState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, st *domain.FeedState) error {
			s.Equal(int64(4), st.TotalInserted)
			return nil
		},
	)

	inserted, err := s.service.Refresh(ctx, []string{sunFeed})

	s.Require().NoError(err)
	s.Empty(inserted)
}

func (s *RefreshServiceTestSuite) TestRefresh_UnknownFeedAndFilteredItems() {
	ctx := context.Background()
	published := s.now.Add(-time.Hour)

	s.source.EXPECT().Fetch(ctx, reviewURL).Return(&domain.Feed{
		Title: "Some Review",
		Items: []domain.FeedItem{
			{Title: "Bad words", Link: "https://review.example.com/1", PublishedParsed: &published},
			{Title: "Fine", Link: "https://review.example.com/2", Published: "Sat, 09 Mar 2024 10:00:00 +0000"},
			{Title: "Undated", Link: "https://review.example.com/3", Published: "sometime"},
		},
	}, nil)

	s.articles.EXPECT().InsertMany(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, batch []domain.Article) ([]domain.Article, error) {
			s.Require().Len(batch, 2)
			s.True(batch[0].NSFW)
			s.False(batch[1].NSFW)
			s.Equal(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), batch[1].Date)
			for i := range batch {
				s.Equal(domain.UnknownPublicationSlug, batch[i].PublicationSlug)
				batch[i].ID = batch[i].ArticleURL
			}
			return batch, nil
		},
	)
	s.feedState.EXPECT().Get(ctx, reviewURL).Return(&domain.FeedState{}, nil)
	s.feedState.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	s.events.EXPECT().PublishArticle(ctx, gomock.Any()).Return(nil).Times(2)

	inserted, err := s.service.Refresh(ctx, []string{reviewURL})

	s.Require().NoError(err)
	s.Len(inserted, 2)
}

func (s *RefreshServiceTestSuite) TestRefresh_StoreFailureAborts() {
	ctx := context.Background()
	published := s.now.Add(-time.Hour)

	s.source.EXPECT().Fetch(ctx, sunFeed).Return(&domain.Feed{
		Title: "The Cornell Daily Sun",
		Items: []domain.FeedItem{
			{Title: "One", Link: "https://cornellsun.com/1", PublishedParsed: &published},
		},
	}, nil)
	s.articles.EXPECT().InsertMany(ctx, gomock.Any()).Return(nil, errors.New("connection refused"))

	inserted, err := s.service.Refresh(ctx, []string{sunFeed})

	s.Error(err)
	s.Nil(inserted)
	s.Contains(err.Error(), "resolve batch")
}

func (s *RefreshServiceTestSuite) TestRefresh_WithoutNotifierOrEvents() {
	ctx := context.Background()
	published := s.now.Add(-time.Hour)
	logger := testLogger()

	service := NewRefreshService(
		s.source,
		NewDeduplicator(s.articles, logger),
		s.tags,
		s.feedState,
		s.users,
		nil,
		nil,
		s.filter,
		domain.NewPublicationDirectory(nil),
		nil,
		logger,
	)

	s.source.EXPECT().Fetch(ctx, sunFeed).Return(&domain.Feed{
		Items: []domain.FeedItem{
			{Title: "One", Link: "https://cornellsun.com/1", PublishedParsed: &published},
		},
	}, nil)
	s.articles.EXPECT().InsertMany(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, batch []domain.Article) ([]domain.Article, error) {
			return batch, nil
		},
	)
	s.feedState.EXPECT().Get(ctx, sunFeed).Return(&domain.FeedState{}, nil)
	s.feedState.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	inserted, err := service.Refresh(ctx, []string{sunFeed})

	s.Require().NoError(err)
	s.Len(inserted, 1)
}
