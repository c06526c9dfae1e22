// Package server initializes and runs the main application server.
// It wires the configured storage, detection and metadata backends, handles
// graceful shutdown, and starts the HTTP server for photo ingestion and
// search.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/snapkeeper/snapkeeper/internal/blob"
	"github.com/snapkeeper/snapkeeper/internal/config"
	"github.com/snapkeeper/snapkeeper/internal/detect"
	"github.com/snapkeeper/snapkeeper/internal/logging"
	"github.com/snapkeeper/snapkeeper/internal/metadata"
	"github.com/snapkeeper/snapkeeper/internal/pipeline"
	"github.com/snapkeeper/snapkeeper/internal/search"
	"github.com/snapkeeper/snapkeeper/internal/server/httpapi"
)

const retryBaseDelay = 500 * time.Millisecond

type App struct {
	config  *config.Config
	logger  logging.Logger
	handler *httpapi.Handler

	// closers run in reverse order on shutdown.
	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	app := &App{config: cfg, logger: logger}

	blobs, err := app.initBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	store, err := app.initMetadataStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("metadata store init error: %w", err)
	}

	detector, err := app.initDetector(ctx, blobs)
	if err != nil {
		return nil, fmt.Errorf("detector init error: %w", err)
	}

	p := pipeline.New(blobs, detector, store, logger, pipeline.Options{
		DetectTimeout: cfg.DetectTimeout,
	})

	app.handler = httpapi.NewHandler(p, store, blobs, search.NewIndex(store), logger)

	return app, nil
}

func (app *App) initBlobStore(ctx context.Context) (blob.Store, error) {
	switch app.config.BlobBackend {
	case config.BlobBackendFS:
		return blob.NewFSStore(app.config.BlobDir)
	case config.BlobBackendS3:
		return blob.NewS3Store(ctx, blob.S3Options{
			Bucket:       app.config.S3Bucket,
			Region:       app.config.S3Region,
			BaseEndpoint: app.config.S3BaseEndpoint,
			AccessKey:    app.config.S3RootUser,
			SecretKey:    app.config.S3RootPassword,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", app.config.BlobBackend)
	}
}

func (app *App) initMetadataStore(ctx context.Context) (metadata.Store, error) {
	switch app.config.MetadataBackend {
	case config.MetadataBackendFile:
		return metadata.NewFileStore(app.config.MetadataPath)
	case config.MetadataBackendPostgres:
		store, db, err := metadata.OpenPostgresStore(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", app.config.MetadataBackend)
	}
}

func (app *App) initDetector(ctx context.Context, blobs blob.Store) (detect.Detector, error) {
	var detector detect.Detector

	switch app.config.DetectBackend {
	case config.DetectBackendStatic:
		detector = detect.NewStaticDetector()
	case config.DetectBackendVision:
		vd, err := detect.NewVisionDetector(ctx, detect.LocatorFetcher(blobs.Resolve))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, vd.Close)
		detector = vd
	default:
		return nil, fmt.Errorf("unknown detection backend %q", app.config.DetectBackend)
	}

	if app.config.DetectRetries > 0 {
		detector = detect.NewRetrying(detector, uint64(app.config.DetectRetries), retryBaseDelay, app.logger)
	}

	return detector, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.handler)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(ctx, "close error", "error", err)
		}
	}
}
