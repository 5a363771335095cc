// Package app initializes and holds the long-lived services a pipeline
// run needs: logging, artifact storage, checkpoint store, fetcher,
// retry policies and the event publisher.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/checkpoint"
	"github.com/chronicleworks/wikichron/internal/config"
	"github.com/chronicleworks/wikichron/internal/logging"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/publisher"
	pubsubpublisher "github.com/chronicleworks/wikichron/internal/publisher/pubsub"
	"github.com/chronicleworks/wikichron/internal/storage"
	"github.com/chronicleworks/wikichron/internal/storage/gcs"
	"github.com/chronicleworks/wikichron/internal/storage/local"
	"github.com/chronicleworks/wikichron/internal/wiki"
)

// App is the dependency container shared by every command.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Site        wiki.Site
	Fetcher     wiki.Fetcher
	Blobs       storage.BlobStore
	Checkpoints checkpoint.Store
	Publisher   publisher.Publisher
	HTTPRetry   *pipeline.RetryPolicy
	AIRetry     *pipeline.RetryPolicy

	closeLog     func()
	gcsClient    *gstorage.Client
	pubsubClient *pubsub.Client
	pubsubPub    *pubsubpublisher.Publisher
	pgStore      *checkpoint.PostgresStore
}

// New builds the container, failing fast if any service cannot start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, closeLog: closeLog}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	site, err := wiki.NewSite(cfg.Wiki.BaseURL)
	if err != nil {
		return fmt.Errorf("parse wiki.base_url: %w", err)
	}
	a.Site = site

	a.Fetcher = wiki.NewCollyFetcher(wiki.FetcherConfig{
		UserAgent: cfg.Wiki.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, a.Logger)

	if err := a.buildStorage(ctx); err != nil {
		return err
	}
	if err := a.buildCheckpoints(ctx); err != nil {
		return err
	}
	if err := a.buildPublisher(ctx); err != nil {
		return err
	}

	a.HTTPRetry = pipeline.NewRetryPolicy(
		cfg.HTTP.MaxRetries,
		cfg.BackoffBase(),
		pipeline.RetryableHTTP,
		a.Logger,
	)
	a.AIRetry = pipeline.NewRetryPolicy(
		cfg.AI.MaxRetries,
		cfg.AIBackoffBase(),
		pipeline.RetryableService,
		a.Logger,
	)

	a.Logger.Info("application services ready",
		zap.String("wiki", cfg.Wiki.BaseURL),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("db_checkpoints", cfg.DB.Enabled),
		zap.Bool("pubsub", cfg.PubSub.Enabled),
	)
	return nil
}

func (a *App) buildStorage(ctx context.Context) error {
	switch a.Config.Storage.Backend {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.Config.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs storage: %w", err)
		}
		a.Blobs = blobs
	default:
		blobs, err := local.New(local.Config{BaseDir: a.Config.Storage.BaseDir})
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.Blobs = blobs
	}
	return nil
}

func (a *App) buildCheckpoints(ctx context.Context) error {
	if a.Config.DB.Enabled {
		store, err := checkpoint.NewPostgresStore(ctx, a.Config.DB.DSN, a.Logger)
		if err != nil {
			return fmt.Errorf("init postgres checkpoints: %w", err)
		}
		a.pgStore = store
		a.Checkpoints = store
		return nil
	}
	if a.Config.Storage.Backend == "local" {
		store, err := checkpoint.NewFileStore(filepath.Join(a.Config.Storage.BaseDir, "checkpoints"), a.Logger)
		if err != nil {
			return fmt.Errorf("init file checkpoints: %w", err)
		}
		a.Checkpoints = store
		return nil
	}
	// Remote blob backends keep checkpoints next to the artifacts.
	a.Checkpoints = prefixedStore{
		inner:  checkpoint.NewBlobStore(a.Blobs, a.Logger),
		prefix: "checkpoints/",
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	if !a.Config.PubSub.Enabled {
		a.Publisher = publisher.NopPublisher{}
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.Config.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPub = pubsubpublisher.New(client)
	a.Publisher = a.pubsubPub
	return nil
}

// Close releases every service the container owns.
func (a *App) Close() {
	if a.pubsubPub != nil {
		a.pubsubPub.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

// prefixedStore namespaces checkpoint keys inside the artifact store.
type prefixedStore struct {
	inner  checkpoint.Store
	prefix string
}

func (s prefixedStore) Load(ctx context.Context, key string, v any) (bool, error) {
	return s.inner.Load(ctx, s.prefix+key+".json", v)
}

func (s prefixedStore) Save(ctx context.Context, key string, v any) error {
	return s.inner.Save(ctx, s.prefix+key+".json", v)
}
