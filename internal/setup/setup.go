package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/filevault/filevault/internal/apiclient"
	"github.com/filevault/filevault/internal/cache"
	"github.com/filevault/filevault/internal/config"
	"github.com/filevault/filevault/internal/handler"
	"github.com/filevault/filevault/internal/logger"
	"github.com/filevault/filevault/internal/preview"
	"github.com/filevault/filevault/internal/progress"
	"github.com/filevault/filevault/internal/ratelimiter"
	"github.com/filevault/filevault/internal/web"
)

const (
	memoryCacheEntries  = 4096
	uploadProgressGrace = time.Minute
)

type Dependencies struct {
	Config        *config.Config
	Handler       *handler.Handler
	Cache         cache.Cache
	Previews      *preview.Store
	Uploads       *progress.Tracker
	UploadLimiter *ratelimiter.Limiter
	DeleteLimiter *ratelimiter.Limiter
}

// SetupDependencies builds everything the router needs. A configured Redis
// must be reachable; without one the cache lives in process memory.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	var c cache.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		logger.Log.Info("using Redis cache", "addr", cfg.Redis.Addr)
		c = rc
	} else {
		logger.Log.Info("using in-memory cache")
		c = cache.NewMemory(memoryCacheEntries)
	}

	apiClient := apiclient.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	previews := preview.NewStore(apiClient, preview.StoreConfig{
		MaxBytes:     cfg.Preview.MaxBytes,
		TextMaxBytes: cfg.Preview.MaxTextBytes,
		BudgetBytes:  cfg.Preview.BudgetBytes,
		TTL:          cfg.Preview.TTL,
	})
	uploads := progress.NewTracker(uploadProgressGrace)

	h := handler.New(
		web.MustTemplates(handler.FuncMap()),
		apiClient,
		previews,
		preview.NewTextRenderer(cfg.Preview.MaxTextBytes),
		c,
		uploads,
		handler.Options{
			UploadMaxBytes:  cfg.Upload.MaxBytes,
			PreviewMaxBytes: cfg.Preview.MaxBytes,
			ThumbnailSide:   cfg.Preview.ThumbnailSide,
			ListTTL:         cfg.Cache.ListTTL,
			ThumbnailTTL:    cfg.Cache.ThumbnailTTL,
			SecureCookies:   cfg.Server.SecureCookies,
		},
	)

	return &Dependencies{
		Config:        cfg,
		Handler:       h,
		Cache:         c,
		Previews:      previews,
		Uploads:       uploads,
		UploadLimiter: newLimiter(cfg.Server.RateLimits.Upload, cfg.Server.RateLimits.Idle),
		DeleteLimiter: newLimiter(cfg.Server.RateLimits.Delete, cfg.Server.RateLimits.Idle),
	}, nil
}

func newLimiter(b config.Bucket, idle time.Duration) *ratelimiter.Limiter {
	return ratelimiter.New(ratelimiter.Config{PerSecond: b.PerSecond, Burst: b.Burst, Idle: idle})
}

// StartBackground runs the preview and upload sweepers until ctx is done.
func (d *Dependencies) StartBackground(ctx context.Context) {
	go d.Previews.Run(ctx)
	go d.Uploads.Run(ctx)
}

func (d *Dependencies) Close() {
	d.UploadLimiter.Stop()
	d.DeleteLimiter.Stop()
	if err := d.Cache.Close(); err != nil {
		logger.Log.Error("failed to close cache", "error", err)
	}
}
