package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/viper"
	"github.com/vscltools/faceitfinder/internal/config"
	"github.com/vscltools/faceitfinder/internal/utils"
	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/hostsite"
	"github.com/vscltools/faceitfinder/pkg/metrics"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/platforms/faceit"
	"github.com/vscltools/faceitfinder/pkg/platforms/opendota"
	"github.com/vscltools/faceitfinder/pkg/resolver"
	"github.com/vscltools/faceitfinder/pkg/storage"
	"github.com/vscltools/faceitfinder/pkg/whttp"
)

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	kv       storage.KV
	db       *storage.DB // nil unless the sqlite backend is used
	cache    *cache.Cache
	http     *retryablehttp.Client
	host     *hostsite.Fetcher
	clients  []platforms.RatingClient
	metrics  *metrics.Metrics
	resolver *resolver.Resolver
}

func newApp(ctx context.Context, observer resolver.Observer) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	a.http, err = whttp.NewClient(whttp.Options{
		Policy:  cfg.RetryPolicy(),
		Timeout: cfg.HTTPTimeout,
		Proxy:   cfg.Proxy,
		Logger:  whttp.NewLogrusAdapter(utils.Log),
	})
	if err != nil {
		return nil, err
	}
	dotaHTTP, err := whttp.NewClient(whttp.Options{
		Policy:  opendota.RetryPolicy(cfg.RetryPolicy()),
		Timeout: cfg.HTTPTimeout,
		Proxy:   cfg.Proxy,
		Logger:  whttp.NewLogrusAdapter(utils.Log),
	})
	if err != nil {
		return nil, err
	}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	a.cache = cache.New(a.kv, cache.WithTTL(cfg.CacheTTL))
	if err := a.cache.Load(ctx); err != nil {
		// The in-memory cache still works; lookups just start cold.
		utils.Log.Warnf("Could not load cache: %v", err)
	}

	a.host = hostsite.NewFetcher(a.http, cfg.AccountLabels)
	a.clients = []platforms.RatingClient{
		faceit.NewClient(faceit.Options{
			BaseURL:     cfg.FaceitBaseURL,
			TargetGame:  cfg.FaceitGame,
			SearchLimit: cfg.FaceitSearchLimit,
			HTTPClient:  a.http,
		}),
		opendota.NewClient(opendota.Options{
			BaseURL:    cfg.OpenDotaBaseURL,
			HTTPClient: dotaHTTP,
		}),
	}
	a.metrics = metrics.New(a.cache.Len)

	a.resolver = resolver.New(resolver.Config{
		Cache:     a.cache,
		Host:      a.host,
		Clients:   a.clients,
		StepDelay: cfg.StepDelay,
		Log:       utils.Log,
		Observer:  observer,
		Metrics:   a.metrics,
	})
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	switch a.cfg.CacheBackend {
	case config.BackendMemory:
		a.kv = storage.NewMemory()
	case config.BackendRedis:
		r, err := storage.OpenRedis(ctx, storage.RedisOptions{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
			Prefix:   a.cfg.RedisPrefix,
		})
		if err != nil {
			return fmt.Errorf("could not connect to redis at %s: %w", a.cfg.RedisAddr, err)
		}
		a.kv = r
	default:
		path, err := utils.GetAbsDBPath(a.cfg.CacheDBPath)
		if err != nil {
			return err
		}
		lock, err := utils.NewCacheLock(path)
		if err != nil {
			return err
		}
		db, err := storage.Open(path, storage.DefaultDBTimeout)
		if err != nil {
			return fmt.Errorf("could not open cache database %s: %w", path, err)
		}
		a.db = db
		a.kv = &lockedKV{KV: db, lock: lock}
	}
	return nil
}

func (a *app) Close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			utils.Log.Warnf("Could not close cache storage: %v", err)
		}
	}
}

// lockedKV holds the cross-process file lock around writes.
type lockedKV struct {
	storage.KV
	lock *utils.CacheLock
}

func (l *lockedKV) Set(ctx context.Context, key, value string) error {
	return l.lock.Do(ctx, func() error { return l.KV.Set(ctx, key, value) })
}

func (l *lockedKV) Remove(ctx context.Context, key string) error {
	return l.lock.Do(ctx, func() error { return l.KV.Remove(ctx, key) })
}
