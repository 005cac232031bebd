// Package server wires configuration, storage backends and services
// together and runs the HTTP API until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/userportal/internal/cryptox"
	"github.com/dmitrijs2005/userportal/internal/logging"
	"github.com/dmitrijs2005/userportal/internal/netx"
	"github.com/dmitrijs2005/userportal/internal/server/attempts"
	"github.com/dmitrijs2005/userportal/internal/server/auth"
	"github.com/dmitrijs2005/userportal/internal/server/config"
	"github.com/dmitrijs2005/userportal/internal/server/httpserver"
	"github.com/dmitrijs2005/userportal/internal/server/mail"
	"github.com/dmitrijs2005/userportal/internal/server/metrics"
	"github.com/dmitrijs2005/userportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userportal/internal/server/services"
	"github.com/dmitrijs2005/userportal/internal/server/storage"
	"github.com/redis/go-redis/v9"
)

// openDB is a seam for tests.
var openDB = repomanager.Open

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []func() error
	server  *httpserver.Server
}

// NewApp builds every collaborator from c. Resources opened before a
// failure are released.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	app := &App{config: c, logger: newLogger(c)}
	if err := app.init(ctx); err != nil {
		_ = app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c, logger := app.config, app.logger

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	tracker, closeTracker, err := newTracker(ctx, c)
	if err != nil {
		return err
	}
	if closeTracker != nil {
		app.closers = append(app.closers, closeTracker)
	}

	images, err := newImageStore(ctx, c)
	if err != nil {
		return err
	}

	authority, err := auth.NewAuthority([]byte(c.JWTSecret), auth.WithLifetime(c.TokenLifetime))
	if err != nil {
		return err
	}

	m := metrics.New()
	us := services.NewUserService(db, rm, services.Deps{
		Authority:        authority,
		Tracker:          tracker,
		Hasher:           cryptox.NewBcryptHasher(0),
		Mailer:           newMailer(c, logger),
		Images:           images,
		Metrics:          m,
		Logger:           logger,
		BaseURL:          c.BaseURL,
		TempImageBaseURL: c.TempImageBaseURL,
		HTTPClient:       netx.DefaultClient,
	})

	app.server = httpserver.NewServer(c.HTTPAddr, us, m, logger)
	return nil
}

func newLogger(c *config.Config) logging.Logger {
	if c.LogBackend == config.BackendSlog {
		return logging.NewSlogJSONLogger(c.LogLevel)
	}
	return logging.NewZapLogger(c.LogLevel, c.LogFormat)
}

// newTracker returns the attempt tracker and, for redis, a func closing the
// client.
func newTracker(ctx context.Context, c *config.Config) (attempts.Tracker, func() error, error) {
	switch c.AttemptsBackend {
	case config.BackendMemory, "":
		t, err := attempts.NewMemoryTracker(attempts.Capacity)
		return t, nil, err
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return attempts.NewRedisTracker(client, attempts.MaxAttempts, attempts.TTL), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown attempts backend %q", c.AttemptsBackend)
	}
}

func newImageStore(ctx context.Context, c *config.Config) (storage.ImageStore, error) {
	switch c.ImageBackend {
	case config.BackendFS, "":
		return storage.NewFSStore(c.ImageDir)
	case config.BackendS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown image backend %q", c.ImageBackend)
	}
}

// newMailer falls back to a no-op sender when no SMTP host is configured.
func newMailer(c *config.Config, logger logging.Logger) mail.Sender {
	if c.SMTPHost == "" {
		logger.Warn(context.Background(), "SMTP host not configured, password mails are disabled")
		return mail.Nop{}
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
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
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.HTTPAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.close(); err != nil {
		app.logger.Error(ctx, "shutdown", "error", err)
	}
	app.logger.Info(ctx, "app stopped")
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}

// close runs the closers in reverse order of acquisition.
func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
