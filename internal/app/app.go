// Package app initializes and holds long-lived application services,
// acting as the dependency injection container for the service.
package app

import (
	"context"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	pubsubclient "cloud.google.com/go/pubsub"

	"github.com/pagemill/pagemill/internal/api"
	"github.com/pagemill/pagemill/internal/archive"
	archivegcs "github.com/pagemill/pagemill/internal/archive/gcs"
	archivelocal "github.com/pagemill/pagemill/internal/archive/local"
	archivemem "github.com/pagemill/pagemill/internal/archive/memory"
	"github.com/pagemill/pagemill/internal/clock/system"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/hash/sha256"
	"github.com/pagemill/pagemill/internal/id/uuid"
	"github.com/pagemill/pagemill/internal/metrics"
	"github.com/pagemill/pagemill/internal/publisher"
	pubmem "github.com/pagemill/pagemill/internal/publisher/memory"
	pubgcp "github.com/pagemill/pagemill/internal/publisher/pubsub"
	queuemem "github.com/pagemill/pagemill/internal/queue/memory"
	"github.com/pagemill/pagemill/internal/scraper"
	storemem "github.com/pagemill/pagemill/internal/store/memory"
	storepg "github.com/pagemill/pagemill/internal/store/postgres"
	"github.com/pagemill/pagemill/internal/worker"
)

// App holds the shared, long-lived services: the job store, archive,
// publisher, queue, worker pool and HTTP server. It is initialized once at
// startup and fails fast if any provider cannot be built.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     scraper.JobStore
	Archive   scraper.Archive
	Publisher scraper.Publisher
	Queue     *queuemem.Queue
	Pool      *worker.Pool
	Server    *api.Server

	closers []func()
}

// New builds the service graph from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	if err := a.initStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initArchive(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx, cfg); err != nil {
		return nil, err
	}

	a.Queue = queuemem.New(cfg.Scraper.QueueDepth)

	clk := system.New()
	crawlerCfg := cfg.Scraper.CrawlerConfig()
	newRunner := func(sink scraper.PageSink) worker.Runner {
		return scraper.New(crawlerCfg, clk, sink, logger)
	}
	a.Pool = worker.New(
		a.Queue,
		a.Store,
		a.Archive,
		a.Publisher,
		sha256.New(),
		clk,
		newRunner,
		worker.Config{
			Workers:       cfg.Scraper.Workers,
			ContentType:   cfg.Archive.ContentType,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger,
	)

	crawl := func(ctx context.Context, req scraper.CrawlRequest) (scraper.CrawlResult, error) {
		return scraper.New(crawlerCfg, clk, nil, logger).Crawl(ctx, req)
	}
	a.Server = api.NewServer(a.Store, a.Queue, a.Pool, crawl, uuid.New(), clk, cfg, logger)

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.String("engine", cfg.Scraper.Engine),
		zap.Int("workers", cfg.Scraper.Workers),
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context, cfg config.Config) error {
	switch cfg.Store.Provider {
	case "memory":
		a.Store = storemem.New()
	case "postgres":
		pg, err := storepg.New(ctx, storepg.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.Store = pg
		a.closers = append(a.closers, pg.Close)
	default:
		return fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
	return nil
}

func (a *App) initArchive(ctx context.Context, cfg config.Config) error {
	switch cfg.Archive.Provider {
	case "noop":
		a.Archive = archive.Noop{}
	case "memory":
		a.Archive = archivemem.New()
	case "local":
		fs, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.Archive = fs
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		bucket, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.Bucket})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.Archive = bucket
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("gcs client close failed", zap.Error(err))
			}
		})
	default:
		return fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context, cfg config.Config) error {
	switch cfg.Publisher.Provider {
	case "noop":
		a.Publisher = publisher.Noop{}
	case "memory":
		a.Publisher = pubmem.New()
	case "pubsub":
		client, err := pubsubclient.NewClient(ctx, cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubgcp.New(client.Topic(cfg.Publisher.Topic))
		a.Publisher = pub
		a.closers = append(a.closers, func() {
			pub.Stop()
			if err := client.Close(); err != nil {
				a.Logger.Warn("pubsub client close failed", zap.Error(err))
			}
		})
	default:
		return fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}
	return nil
}

// Close shuts down all services in reverse initialization order.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	a.Queue.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.Logger.Sync() // best-effort flush
}
