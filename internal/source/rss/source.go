// Package rss fetches publication feeds over HTTP and parses them with
// gofeed. RSS, Atom and JSON feeds are all accepted.
package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"volume/internal/domain"
)

// Config holds feed source configuration.
type Config struct {
	Timeout        time.Duration
	HostInterval   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
}

// errPermanent marks responses that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

type Source struct {
	httpClient     *http.Client
	parser         *gofeed.Parser
	limiter        *hostLimiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		parser:         gofeed.NewParser(),
		limiter:        newHostLimiter(cfg.HostInterval),
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		logger:         logger.With("component", "rss"),
	}
}

// Fetch downloads and parses one feed. Transport errors and 5xx responses
// are retried with exponential backoff; 4xx and parse errors are not.
func (s *Source) Fetch(ctx context.Context, url string) (*domain.Feed, error) {
	var feed *gofeed.Feed
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err = s.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("wait for host: %w", err)
		}

		feed, err = s.doRequest(ctx, url)
		if err == nil {
			return s.transform(url, feed), nil
		}
		if errors.Is(err, errPermanent) || attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("feed request failed, retrying",
			"url", url,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("fetch %s: %w", url, err)
}

func (s *Source) doRequest(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w: %w", errPermanent, err)
	}

	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, errPermanent)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w: %w", errPermanent, err)
	}
	return feed, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.maxBackoff > 0 && backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(url string, feed *gofeed.Feed) *domain.Feed {
	out := &domain.Feed{
		Title:     feed.Title,
		SourceURL: url,
		Items:     make([]domain.FeedItem, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		fi := domain.FeedItem{
			Title:           item.Title,
			Link:            item.Link,
			Published:       item.Published,
			PublishedParsed: item.PublishedParsed,
			ImageURL:        imageURL(item),
			Categories:      item.Categories,
		}
		if fi.PublishedParsed == nil && fi.Published == "" {
			fi.Published = item.Updated
			fi.PublishedParsed = item.UpdatedParsed
		}
		out.Items = append(out.Items, fi)
	}

	s.logger.Debug("feed parsed", "url", url, "title", feed.Title, "items", len(out.Items))
	return out
}

// imageURL picks the item's image from, in order, the item image, an image
// enclosure, and the media RSS extension.
func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, name := range []string{"content", "thumbnail"} {
		for _, ext := range media[name] {
			if u := ext.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	return ""
}
