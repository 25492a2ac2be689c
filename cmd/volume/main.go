package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"volume/internal/api"
	"volume/internal/config"
	"volume/internal/domain"
	"volume/internal/filter"
	"volume/internal/publisher"
	"volume/internal/scheduler"
	"volume/internal/service"
	"volume/internal/source/rss"
	"volume/internal/storage/postgres"
	redisstore "volume/internal/storage/redis"
	s3store "volume/internal/storage/s3"
)

func main() {
	configPath := flag.String("config", envOr("VOLUME_CONFIG", "config.yaml"), "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Initialize stores
	articleStore := postgres.NewArticleStore(db)
	magazineStore := postgres.NewMagazineStore(db)
	flyerStore := postgres.NewFlyerStore(db)
	publicationStore := postgres.NewPublicationStore(db)
	organizationStore := postgres.NewOrganizationStore(db)
	userStore := postgres.NewUserStore(db)
	tagStore := postgres.NewTagStore(db)
	feedStateStore := postgres.NewFeedStateStore(db)
	txManager := postgres.NewTransactionManager(db)

	publications, err := seedDirectory(ctx, cfg, publicationStore, organizationStore)
	if err != nil {
		logger.Error("failed to seed directory", "error", err)
		os.Exit(1)
	}

	var sources []string
	for _, p := range publications {
		if p.RSSURL != "" {
			sources = append(sources, p.RSSURL)
		}
	}
	directory := domain.NewPublicationDirectory(publications)

	// Redis and RabbitMQ are optional; without them listings are not cached
	// and no events or pushes go out.
	var cache *redisstore.Cache
	var trendingCache service.TrendingCache
	redisClient, err := redisstore.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, trending cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		cache = redisstore.NewCache(redisClient)
		trendingCache = cache
	}

	var notifier service.PushNotifier
	var events service.EventPublisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:               cfg.RabbitMQ.URL,
		Exchange:          cfg.RabbitMQ.Exchange,
		ArticleKey:        cfg.RabbitMQ.ArticleKey,
		ArticleQueue:      cfg.RabbitMQ.ArticleQueue,
		NotificationKey:   cfg.RabbitMQ.NotificationKey,
		NotificationQueue: cfg.RabbitMQ.NotifyQueue,
	}, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, events and pushes disabled", "error", err)
	} else {
		defer rabbitMQ.Close()
		notifier = rabbitMQ
		events = rabbitMQ
	}

	var images service.ImageStore
	if cfg.S3.Bucket != "" {
		imageStore, err := s3store.NewImageStore(cfg.S3)
		if err != nil {
			logger.Error("failed to create image store", "error", err)
			os.Exit(1)
		}
		images = imageStore
	} else {
		logger.Warn("s3 bucket not configured, flyer images disabled")
	}

	words, err := filter.Load(cfg.Filter.Words, cfg.Filter.WordsFile)
	if err != nil {
		logger.Error("failed to load word filter", "error", err)
		os.Exit(1)
	}

	feedSource := rss.New(rss.Config{
		Timeout:        cfg.Feeds.Timeout,
		HostInterval:   cfg.Feeds.HostInterval,
		MaxAttempts:    cfg.Feeds.Retry.MaxAttempts,
		InitialBackoff: cfg.Feeds.Retry.InitialBackoff,
		MaxBackoff:     cfg.Feeds.Retry.MaxBackoff,
		UserAgent:      cfg.Feeds.UserAgent,
	}, logger)

	// Initialize services
	refreshService := service.NewRefreshService(
		feedSource,
		service.NewDeduplicator(articleStore, logger),
		tagStore,
		feedStateStore,
		userStore,
		notifier,
		events,
		words,
		directory,
		sources,
		logger,
	)
	trendingService := service.NewTrendingService(articleStore, magazineStore, flyerStore, trendingCache, logger, cfg.Trending)
	featuredService := service.NewFeaturedService(magazineStore, logger, cfg.Featured)
	counterService := service.NewCounterService(articleStore, magazineStore, flyerStore, publicationStore, txManager, logger, cfg.Counters)
	userService := service.NewUserService(userStore, articleStore, directory, logger)
	flyerService := service.NewFlyerService(flyerStore, images, words, logger)
	magazineService := service.NewMagazineService(magazineStore, words, directory, logger)

	sched := scheduler.NewScheduler(logger,
		scheduler.Job{
			Name:     "refresh",
			Interval: cfg.Feeds.Interval,
			Run: func(ctx context.Context) error {
				stats, err := refreshService.RefreshAll(ctx)
				if err != nil {
					return err
				}
				if cache != nil && stats.Inserted > 0 {
					if err := cache.Invalidate(ctx, "trending:articles:"); err != nil {
						logger.Warn("failed to invalidate trending cache", "error", err)
					}
				}
				return nil
			},
		},
		scheduler.Job{
			Name:     "featured-rotation",
			Interval: cfg.Featured.Interval,
			Run: func(ctx context.Context) error {
				_, err := featuredService.Rotate(ctx)
				return err
			},
		},
	)

	handler := api.NewHandler(api.Deps{
		Trending:      trendingService,
		Featured:      featuredService,
		Counters:      counterService,
		Users:         userService,
		Flyers:        flyerService,
		Magazines:     magazineService,
		Refresher:     refreshService,
		Articles:      articleStore,
		Tags:          tagStore,
		Publications:  publicationStore,
		FlyerListings: flyerStore,
		Organizations: organizationStore,
	}, logger)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewRouter(handler, cfg.HTTP.AdminToken, logger),
	}

	logger.Info("starting volume",
		"addr", cfg.HTTP.Addr,
		"feeds", len(sources),
		"refresh_interval", cfg.Feeds.Interval,
		"featured_interval", cfg.Featured.Interval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// seedDirectory upserts the configured publications and organizations and
// returns the publications for feed resolution.
func seedDirectory(ctx context.Context, cfg *config.Config, pubs *postgres.PublicationStore, orgs *postgres.OrganizationStore) ([]domain.Publication, error) {
	out := make([]domain.Publication, 0, len(cfg.Publications))
	for _, p := range cfg.Publications {
		pub := domain.Publication{
			Slug:            p.Slug,
			Name:            p.Name,
			Bio:             p.Bio,
			WebsiteURL:      p.WebsiteURL,
			ProfileImageURL: p.ProfileImageURL,
			RSSURL:          p.RSSURL,
			RSSName:         p.RSSName,
		}
		if err := pubs.Upsert(ctx, &pub); err != nil {
			return nil, err
		}
		out = append(out, pub)
	}

	for _, o := range cfg.Organizations {
		org := domain.Organization{
			Slug:            o.Slug,
			Name:            o.Name,
			Bio:             o.Bio,
			CategorySlug:    o.CategorySlug,
			WebsiteURL:      o.WebsiteURL,
			ProfileImageURL: o.ProfileImageURL,
		}
		if err := orgs.Upsert(ctx, &org); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
