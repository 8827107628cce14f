package cmd

import (
	"context"
	"fmt"

	"SampleDeck/cache"
	"SampleDeck/config"
	"SampleDeck/core/audio"
	"SampleDeck/core/search"
	"SampleDeck/core/splice"
	"SampleDeck/core/tabs"
	"SampleDeck/db"
	"SampleDeck/logger"
	"SampleDeck/model"
	"SampleDeck/repository"
	"SampleDeck/storage"
)

// app holds the services shared by the commands.
type app struct {
	cfg        *config.Config
	client     *splice.Client
	pipeline   *audio.Pipeline
	prefetcher *audio.Prefetcher
	output     *audio.SpeakerOutput
	engine     *audio.Engine
	store      *search.Store
	samples    repository.SampleRepository

	closers []func() error
}

// newApp connects the configured backends and builds the engine and store.
// ctx bounds background downloads.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var tiers []audio.RawStore
	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache.CloseRedis)
		tiers = append(tiers, cache.NewSampleCache(cache.RedisClient, cfg.RedisTTL))
		logger.Info("Redis sample tier enabled", logger.Duration("ttl", cfg.RedisTTL))
	}
	if cfg.MinioEnabled() {
		if err := storage.InitMinio(cfg); err != nil {
			a.Close()
			return nil, err
		}
		tiers = append(tiers, storage.NewArchive(storage.GetMinioClient(), cfg.MinioBucket))
		logger.Info("MinIO sample archive enabled", logger.String("bucket", cfg.MinioBucket))
	}
	if cfg.DBEnabled() {
		if err := db.ConnectGormDB(cfg); err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.CloseGormDB)
		if err := db.AutoMigrateModels(&model.SampleRecord{}); err != nil {
			a.Close()
			return nil, err
		}
		a.samples = repository.NewGormSampleRepository(db.GormDB)
	}

	bufferCache, err := audio.NewBufferCache(cfg.CacheCapacity)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create buffer cache: %w", err)
	}

	a.client = splice.NewClient(cfg.GraphQLURL, cfg.SpliceTimeout, cfg.SpliceRateLimit)
	a.pipeline = audio.NewPipeline(
		bufferCache,
		audio.NewHTTPFetcher(cfg.DownloadTimeout),
		audio.Passthrough,
		audio.NewBeepDecoder(cfg.SampleRate),
		audio.WithRawStores(tiers...),
		audio.WithBaseContext(ctx),
	)
	a.prefetcher = audio.NewPrefetcher(a.pipeline, cfg.PrefetchConcurrency)
	a.output = audio.NewSpeakerOutput(cfg.SampleRate, cfg.SpeakerBuffer, cfg.Volume)
	a.engine = audio.NewEngine(a.output, a.pipeline, cfg.Volume, cfg.RepeatAudio)

	opts := []search.Option{
		search.WithPerPage(cfg.PerPage),
		search.WithHooks(search.Hooks{
			BeforeDataUpdate: func(tabID string) {
				logger.Debug("New result set requested", logger.String("tab", tabID))
			},
		}),
	}
	if a.samples != nil {
		opts = append(opts, search.WithCatalog(a.samples))
	}
	a.store = search.NewStore(tabs.NewManager(), a.client, opts...)

	return a, nil
}

// watchSettings applies live changes of the settings file to the engine.
func (a *app) watchSettings(ctx context.Context) {
	if a.cfg.SettingsFile == "" {
		return
	}
	go func() {
		err := config.WatchSettings(ctx, a.cfg.SettingsFile, a.cfg.Settings(), func(s config.Settings) {
			a.engine.SetRepeat(s.RepeatAudio)
			a.engine.SetVolume(s.Volume)
		})
		if err != nil {
			logger.Warn("Settings watcher stopped", logger.ErrorField(err))
		}
	}()
}

// lookup finds a sample by uuid in the open tabs or the catalog.
func (a *app) lookup(ctx context.Context, uuid string) (*model.SampleAsset, error) {
	if asset := a.store.Tabs().FindAsset(uuid); asset != nil {
		return asset, nil
	}
	if a.samples == nil {
		return nil, fmt.Errorf("sample %s not found (catalog database not configured)", uuid)
	}
	asset, err := a.samples.FindByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("sample %s not found", uuid)
	}
	return asset, nil
}

// Close releases the backends in reverse order of opening.
func (a *app) Close() {
	if a.output != nil {
		if err := a.output.Suspend(); err != nil {
			logger.Debug("Suspend output", logger.ErrorField(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close backend", logger.ErrorField(err))
		}
	}
	a.closers = nil
}
