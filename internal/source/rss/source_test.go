package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>The Cornell Daily Sun</title>
  <link>https://cornellsun.com</link>
  <item>
    <title>Slope Day lineup announced</title>
    <link>https://cornellsun.com/slope-day</link>
    <pubDate>Sat, 09 Mar 2024 10:00:00 +0000</pubDate>
    <category>Arts</category>
    <enclosure url="https://cornellsun.com/img/slope.jpg" type="image/jpeg" length="1"/>
  </item>
  <item>
    <title>Undated</title>
    <link>https://cornellsun.com/undated</link>
  </item>
</channel>
</rss>`

func testSource(maxAttempts int) *Source {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		Timeout:        2 * time.Second,
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		UserAgent:      "Volume/test",
	}, logger)
}

func TestFetch_ParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Volume/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	feed, err := testSource(1).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "The Cornell Daily Sun", feed.Title)
	assert.Equal(t, srv.URL, feed.SourceURL)
	require.Len(t, feed.Items, 2)

	first := feed.Items[0]
	assert.Equal(t, "Slope Day lineup announced", first.Title)
	assert.Equal(t, "https://cornellsun.com/slope-day", first.Link)
	assert.Equal(t, "https://cornellsun.com/img/slope.jpg", first.ImageURL)
	assert.Equal(t, []string{"Arts"}, first.Categories)
	require.NotNil(t, first.PublishedParsed)
	assert.True(t, first.PublishedParsed.Equal(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)))

	assert.Nil(t, feed.Items[1].PublishedParsed)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	feed, err := testSource(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, feed.Items, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testSource(3).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer srv.Close()

	_, err := testSource(3).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feed")
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testSource(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCalculateBackoff(t *testing.T) {
	s := testSource(5)
	assert.Equal(t, time.Millisecond, s.calculateBackoff(1))
	assert.Equal(t, 2*time.Millisecond, s.calculateBackoff(2))
	assert.Equal(t, 4*time.Millisecond, s.calculateBackoff(3))
	assert.Equal(t, 5*time.Millisecond, s.calculateBackoff(4))
}

func TestHostLimiter_SpacesSameHost(t *testing.T) {
	l := newHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example.com/feed"))
	require.NoError(t, l.Wait(ctx, "https://b.example.com/feed"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	require.NoError(t, l.Wait(ctx, "https://a.example.com/other"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	assert.Error(t, l.Wait(ctx, "/relative"))
}
