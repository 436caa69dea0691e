// Package server wires configuration, storage, mail and HTTP transport into a
// runnable application and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/dmitrijs2005/xtouch/internal/server/blobstore"
	"github.com/dmitrijs2005/xtouch/internal/server/config"
	xhttp "github.com/dmitrijs2005/xtouch/internal/server/http"
	"github.com/dmitrijs2005/xtouch/internal/server/mailer"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/xtouch/internal/server/services"
	"github.com/dmitrijs2005/xtouch/internal/server/throttle"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// contactThrottleNamespace prefixes exchange-contact counters in Redis.
const contactThrottleNamespace = "xtouch:contact"

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	redis          *redis.Client
	userService    *services.UserService
	profileService *services.ProfileService
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// NewApp opens every process-wide handle, runs migrations and builds the
// services. Handles opened before a failure are closed.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	ready := false
	defer func() {
		if !ready {
			_ = app.Close()
		}
	}()

	app.db, err = openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	var limiter throttle.Limiter
	app.redis, limiter = newLimiter(c)

	mail := newMailer(c, logger)
	templates := mailer.NewTemplates(c.PublicBaseURL)

	app.userService = services.NewUserService(app.db, rm, mail, templates, logger, c)
	app.profileService = services.NewProfileService(app.db, rm, store, limiter, mail, templates, logger, c)

	ready = true
	return app, nil
}

// newStore picks the blob store driver named by the config.
func newStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	opts := blobstore.Options{
		Endpoint:  c.S3BaseEndpoint,
		Region:    c.S3Region,
		AccessKey: c.S3RootUser,
		SecretKey: c.S3RootPassword,
		Bucket:    c.S3Bucket,
		UseSSL:    c.S3UseSSL,
	}
	switch strings.ToLower(c.StorageDriver) {
	case "", "s3":
		return blobstore.NewS3Store(ctx, opts)
	case "minio":
		return blobstore.NewMinioStore(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}

// newLimiter returns a Redis-backed contact throttle, or a NopLimiter and a
// nil client when Redis is not configured.
func newLimiter(c *config.Config) (*redis.Client, throttle.Limiter) {
	if c.RedisAddr == "" {
		return nil, throttle.NopLimiter{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	return client, throttle.NewRedisLimiter(client, contactThrottleNamespace, c.ContactLimit, c.ContactWindow)
}

// newMailer sends through SMTP when a host is configured and only logs
// messages otherwise.
func newMailer(c *config.Config, logger logging.Logger) mailer.Mailer {
	if c.SMTPHost == "" {
		return mailer.NewLogMailer(logger)
	}
	return mailer.NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.MailFrom)
}

// Handler builds the HTTP handler tree.
func (app *App) Handler() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := xhttp.NewHandler(app.userService, app.profileService, app.logger, app.config.MaxUploadBytes)
	return xhttp.NewRouter(h, app.logger, []byte(app.config.SecretKey), xhttp.NewRateLimiter(app.config.RateLimitRPM))
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run serves HTTP until a termination signal arrives or the server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.initSignalHandler(ctx)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return xhttp.NewServer(app.config.HTTPAddr, app.Handler(), app.logger).Run(ctx)
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases the database and Redis handles and flushes the logger.
func (app *App) Close() error {
	var closers []io.Closer
	if app.redis != nil {
		closers = append(closers, app.redis)
	}
	if app.db != nil {
		closers = append(closers, app.db)
	}

	var firstErr error
	for _, c := range closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if app.logger != nil {
		if err := logging.Sync(app.logger); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
