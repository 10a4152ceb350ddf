// Package server wires configuration, storage, the engines and the HTTP API
// together and runs them until the process is signaled to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/httpapi"
	"github.com/dmitrijs2005/gophsocial/internal/server/media"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	metrics *metrics.Metrics
	svc     httpapi.Services
}

// newRepositoryManager is a seam for tests.
var newRepositoryManager = repomanager.New

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(logging.ParseLevel(c.LogLevel))

	rm, err := newRepositoryManager(c.StorageBackend, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	m := metrics.New()
	policy := services.RetryPolicy{Retries: c.FollowRetryAttempts, BaseDelay: c.FollowRetryBaseDelay}

	var images services.ImageStore
	if c.S3Bucket != "" {
		images = media.NewPresigner(media.Options{
			Region:       c.S3Region,
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	}

	svc := httpapi.Services{
		Users:         services.NewUserService(rm.Users(), services.NewLogNotifier(logger), c, logger),
		Posts:         services.NewPostService(rm.Users(), rm.Posts(), images, logger),
		Relationships: services.NewRelationshipService(rm.Users(), policy, logger, m),
		Engagement:    services.NewEngagementService(rm.Posts(), logger, m),
		Cascade:       services.NewCascadeService(rm.Users(), rm.Posts(), c.CascadeSweepWorkers, logger, m),
	}

	return &App{config: c, logger: logger, repos: rm, metrics: m, svc: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.HTTPAddr, app.logger, app.svc, app.metrics, app.config.AccessTokenValidityDuration)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is canceled or a termination signal arrives, then
// closes storage.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "storage close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
