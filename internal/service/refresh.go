package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"volume/internal/domain"
	"volume/internal/metrics"
)

// RefreshService polls publication feeds and stores the articles it has
// not seen before.
type RefreshService struct {
	source    FeedSource
	dedupe    *Deduplicator
	tags      TagStore
	feedState FeedStateStore
	users     UserStore
	notifier  PushNotifier
	events    EventPublisher
	filter    ContentFilter
	directory *domain.PublicationDirectory
	sources   []string
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
	now       func() time.Time
}

func NewRefreshService(
	source FeedSource,
	dedupe *Deduplicator,
	tags TagStore,
	feedState FeedStateStore,
	users UserStore,
	notifier PushNotifier,
	events EventPublisher,
	filter ContentFilter,
	directory *domain.PublicationDirectory,
	sources []string,
	logger *slog.Logger,
) *RefreshService {
	return &RefreshService{
		source:    source,
		dedupe:    dedupe,
		tags:      tags,
		feedState: feedState,
		users:     users,
		notifier:  notifier,
		events:    events,
		filter:    filter,
		directory: directory,
		sources:   sources,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With("component", "refresh"),
		now:       time.Now,
	}
}

// candidate is a normalized article plus where it came from.
type candidate struct {
	article   domain.Article
	sourceURL string
	feedTitle string
}

// RefreshAll refreshes every configured publication feed.
func (s *RefreshService) RefreshAll(ctx context.Context) (*domain.RefreshStats, error) {
	stats, _, err := s.refresh(ctx, s.sources)
	return stats, err
}

// Refresh fetches the given feeds and returns the articles that were newly
// stored. Unreachable or malformed feeds are skipped.
func (s *RefreshService) Refresh(ctx context.Context, sources []string) ([]domain.Article, error) {
	_, inserted, err := s.refresh(ctx, sources)
	return inserted, err
}

func (s *RefreshService) refresh(ctx context.Context, sources []string) (*domain.RefreshStats, []domain.Article, error) {
	startTime := s.now()
	s.logger.Info("starting refresh", "sources", len(sources))

	feeds, fetchErrs := s.fetchAll(ctx, sources)

	stats := &domain.RefreshStats{
		Sources:       len(sources),
		FailedSources: len(fetchErrs),
	}

	var batch []candidate
	for _, feed := range feeds {
		if feed == nil {
			continue
		}
		batch = append(batch, s.normalize(feed)...)
	}
	stats.Fetched = len(batch)

	articles := make([]domain.Article, len(batch))
	for i, c := range batch {
		articles[i] = c.article
	}

	result, err := s.dedupe.ResolveBatchInsert(ctx, articles)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve batch: %w", err)
	}
	stats.Inserted = len(result.Inserted)
	stats.Skipped = len(result.Skipped)

	s.linkTags(ctx, result.Inserted)
	s.updateFeedStates(ctx, sources, batch, result.Inserted, fetchErrs)
	stats.Notified = s.notifyFollowers(ctx, batch, result.Inserted)
	s.publishEvents(ctx, result.Inserted)

	stats.Duration = s.now().Sub(startTime)

	s.logger.Info("refresh completed",
		"fetched", stats.Fetched,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
		"failed_sources", stats.FailedSources,
		"notified", stats.Notified,
		"duration", stats.Duration,
	)

	return stats, result.Inserted, nil
}

// fetchAll fetches every source concurrently. A failed source never cancels
// its siblings; its error is returned keyed by URL.
func (s *RefreshService) fetchAll(ctx context.Context, sources []string) ([]*domain.Feed, map[string]error) {
	feeds := make([]*domain.Feed, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	for i, url := range sources {
		g.Go(func() error {
			started := time.Now()
			feed, err := s.source.Fetch(ctx, url)
			if err != nil {
				metrics.RecordFeedFetch("error", time.Since(started).Seconds())
				s.logger.Warn("feed fetch failed", "url", url, "error", err)
				errs[i] = err
				return nil
			}
			metrics.RecordFeedFetch("ok", time.Since(started).Seconds())
			if feed.SourceURL == "" {
				feed.SourceURL = url
			}
			feeds[i] = feed
			return nil
		})
	}
	_ = g.Wait()

	failed := make(map[string]error)
	for i, err := range errs {
		if err != nil {
			failed[sources[i]] = err
		}
	}
	return feeds, failed
}

func (s *RefreshService) normalize(feed *domain.Feed) []candidate {
	slug := s.directory.Resolve(feed.Title, feed.SourceURL)
	if slug == domain.UnknownPublicationSlug {
		s.logger.Warn("feed matches no publication", "url", feed.SourceURL, "title", feed.Title)
	}

	out := make([]candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := s.cleanText(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			s.logger.Warn("skipping item without title or link", "url", feed.SourceURL, "link", link)
			continue
		}

		published, err := publishedAt(item)
		if err != nil {
			s.logger.Warn("failed to parse date",
				"link", link,
				"date", item.Published,
			)
			continue
		}

		out = append(out, candidate{
			article: domain.Article{
				Title:           title,
				ArticleURL:      link,
				ImageURL:        strings.TrimSpace(item.ImageURL),
				PublicationSlug: slug,
				Date:            published.UTC(),
				NSFW:            s.filter.IsProfane(title),
				Tags:            cleanTags(item.Categories),
			},
			sourceURL: feed.SourceURL,
			feedTitle: s.cleanText(feed.Title),
		})
	}
	return out
}

func (s *RefreshService) cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
}

func publishedAt(item domain.FeedItem) (time.Time, error) {
	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return *item.PublishedParsed, nil
	}
	if strings.TrimSpace(item.Published) == "" {
		return time.Time{}, errors.New("missing publish date")
	}
	return dateparse.ParseAny(item.Published)
}

func cleanTags(categories []string) []string {
	var tags []string
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(tags, c) {
			continue
		}
		tags = append(tags, c)
	}
	return tags
}

func (s *RefreshService) linkTags(ctx context.Context, inserted []domain.Article) {
	var labels []string
	for _, a := range inserted {
		for _, t := range a.Tags {
			if !slices.Contains(labels, t) {
				labels = append(labels, t)
			}
		}
	}
	if len(labels) == 0 {
		return
	}

	ids, err := s.tags.UpsertLabels(ctx, labels)
	if err != nil {
		s.logger.Warn("failed to upsert tags", "error", err)
		return
	}

	for _, a := range inserted {
		if len(a.Tags) == 0 {
			continue
		}
		tagIDs := make([]int64, 0, len(a.Tags))
		for _, t := range a.Tags {
			if id, ok := ids[t]; ok {
				tagIDs = append(tagIDs, id)
			}
		}
		if err := s.tags.LinkToArticle(ctx, a.ID, tagIDs); err != nil {
			s.logger.Warn("failed to link tags", "article_id", a.ID, "error", err)
		}
	}
}

func (s *RefreshService) updateFeedStates(ctx context.Context, sources []string, batch []candidate, inserted []domain.Article, fetchErrs map[string]error) {
	origin := make(map[string]string, len(batch))
	for _, c := range batch {
		origin[c.article.ArticleURL] = c.sourceURL
	}
	counts := make(map[string]int64, len(sources))
	for _, a := range inserted {
		counts[origin[a.ArticleURL]]++
	}

	for _, url := range sources {
		state, err := s.feedState.Get(ctx, url)
		if err != nil {
			s.logger.Warn("failed to load feed state", "url", url, "error", err)
			continue
		}
		state.SourceURL = url
		state.LastRefreshedAt = s.now()
		state.LastError = ""
		if fetchErr, ok := fetchErrs[url]; ok {
			state.LastError = fetchErr.Error()
		}
		state.TotalInserted += counts[url]

		if err := s.feedState.Update(ctx, state); err != nil {
			s.logger.Warn("failed to update feed state", "url", url, "error", err)
		}
	}
}

// notifyFollowers pushes one notification per new article to every user
// following its publication. Delivery failures are logged only.
func (s *RefreshService) notifyFollowers(ctx context.Context, batch []candidate, inserted []domain.Article) int {
	if s.notifier == nil || len(inserted) == 0 {
		return 0
	}

	feedTitles := make(map[string]string)
	for _, c := range batch {
		feedTitles[c.article.PublicationSlug] = c.feedTitle
	}

	bySlug := make(map[string][]domain.Article)
	var slugs []string
	for _, a := range inserted {
		if a.PublicationSlug == domain.UnknownPublicationSlug || a.NSFW {
			continue
		}
		if _, ok := bySlug[a.PublicationSlug]; !ok {
			slugs = append(slugs, a.PublicationSlug)
		}
		bySlug[a.PublicationSlug] = append(bySlug[a.PublicationSlug], a)
	}

	sent := 0
	for _, slug := range slugs {
		followers, err := s.users.ListFollowers(ctx, slug)
		if err != nil {
			s.logger.Warn("failed to list followers", "publication", slug, "error", err)
			continue
		}
		for _, u := range followers {
			if u.DeviceToken == "" {
				continue
			}
			for _, a := range bySlug[slug] {
				err := s.notifier.Send(ctx, domain.Notification{
					DeviceToken: u.DeviceToken,
					DeviceType:  u.DeviceType,
					Title:       feedTitles[slug],
					Body:        a.Title,
					ArticleID:   a.ID,
				})
				if err != nil {
					metrics.RecordExternalFailure("push")
					s.logger.Warn("push notification failed", "user", u.UUID, "error", err)
					continue
				}
				sent++
			}
		}
	}
	return sent
}

func (s *RefreshService) publishEvents(ctx context.Context, inserted []domain.Article) {
	if s.events == nil {
		return
	}
	for i := range inserted {
		if err := s.events.PublishArticle(ctx, &inserted[i]); err != nil {
			metrics.RecordExternalFailure("events")
			s.logger.Warn("failed to publish article event", "article_id", inserted[i].ID, "error", err)
		}
	}
}
