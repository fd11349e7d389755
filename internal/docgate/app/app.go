package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/blob"
	httpapi "github.com/aussiebroadwan/docgate/internal/docgate/http"
	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	"github.com/aussiebroadwan/docgate/internal/docgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
	"github.com/aussiebroadwan/docgate/pkg/jwtx"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/aussiebroadwan/docgate/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	redisKeyPrefix = "docgate:ratelimit:"
	startupTimeout = 15 * time.Second
)

// Application encapsulates the docgate service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	blobs    blob.Store
	counters ratelimit.Store
	redis    *redis.Client // nil unless the redis rate limit store is used

	cipher *cryptox.DocumentCipher
	codec  *jwtx.Codec
	hasher *cryptox.PasswordHasher

	downloadLimiter *ratelimit.Limiter
	adminGuard      *ratelimit.Limiter

	// Services
	documentService     *service.DocumentService
	deliveryService     *service.DeliveryService
	downloadService     *service.DownloadService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// cfg must have passed Validate.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "docgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := app.initCrypto(); err != nil {
		return nil, err
	}
	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initBlobStore(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initRateLimit(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("docgate starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"blob_driver", app.cfg.Blob.Driver,
		"ratelimit_store", app.cfg.RateLimit.Store,
		"cipher_version", app.cfg.Documents.CipherVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down docgate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("docgate stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initCrypto builds the cipher, token codec and password hasher from the
// configured secrets.
func (app *Application) initCrypto() error {
	masterKey, err := app.cfg.MasterKey()
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	app.cipher, err = cryptox.NewDocumentCipher(masterKey, app.cfg.Documents.CipherVersion)
	if err != nil {
		return fmt.Errorf("failed to initialize document cipher: %w", err)
	}

	secret, err := app.cfg.TokenSecret()
	if err != nil {
		return fmt.Errorf("token secret: %w", err)
	}
	app.codec, err = jwtx.NewCodec(secret, app.cfg.Tokens.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	pepper, err := app.cfg.Pepper()
	if err != nil {
		return fmt.Errorf("password pepper: %w", err)
	}
	app.hasher, err = cryptox.NewPasswordHasher(pepper, cryptox.DefaultPasswordParams)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initBlobStore(ctx context.Context) error {
	switch app.cfg.Blob.Driver {
	case "minio":
		c := app.cfg.Blob.Minio
		st, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UseSSL:          c.UseSSL,
			Bucket:          c.Bucket,
			Region:          c.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize minio blob store: %w", err)
		}
		app.blobs = st
	case "s3":
		c := app.cfg.Blob.S3
		st, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          c.Bucket,
			Region:          c.Region,
			BaseEndpoint:    c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UsePathStyle:    c.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize s3 blob store: %w", err)
		}
		if err := st.Ping(ctx); err != nil {
			return fmt.Errorf("s3 bucket %q not reachable: %w", c.Bucket, err)
		}
		app.blobs = st
	default:
		app.logger.Warn("using in-memory blob store, documents are lost on restart")
		app.blobs = blob.NewMemoryStore()
	}
	return nil
}

func (app *Application) initRateLimit(ctx context.Context) error {
	switch app.cfg.RateLimit.Store {
	case "redis":
		c := app.cfg.RateLimit.Redis
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", c.Addr, err)
		}
		app.counters = ratelimit.NewRedisStore(app.redis, redisKeyPrefix)
	default:
		app.counters = ratelimit.NewMemoryStore()
	}

	policy, err := app.cfg.DownloadPolicy()
	if err != nil {
		return err
	}

	app.downloadLimiter, err = ratelimit.New(ratelimit.Config{
		Store:   app.counters,
		Policy:  policy,
		Timeout: app.cfg.StoreTimeout,
		Logger:  app.logger,
	})
	if err != nil {
		return err
	}

	app.adminGuard, err = ratelimit.New(ratelimit.Config{
		Store:   app.counters,
		Policy:  app.cfg.AdminAuthPolicy(),
		Timeout: app.cfg.StoreTimeout,
		Logger:  app.logger,
	})
	return err
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	gate := &service.PasswordGate{
		Store:   app.db,
		Hasher:  app.hasher,
		Timeout: app.cfg.StoreTimeout,
	}

	app.documentService = &service.DocumentService{
		Store:               app.db,
		Blobs:               app.blobs,
		Cipher:              app.cipher,
		MaxFileSize:         app.cfg.Documents.MaxFileSize,
		AllowedContentTypes: app.cfg.Documents.AllowedContentTypes,
		Timeout:             app.cfg.StoreTimeout,
	}
	app.deliveryService = &service.DeliveryService{
		Store:       app.db,
		Codec:       app.codec,
		Gate:        gate,
		CustomerTTL: app.cfg.Tokens.CustomerTTL,
		AdminTTL:    app.cfg.Tokens.AdminTTL,
		Timeout:     app.cfg.StoreTimeout,
	}
	app.downloadService = &service.DownloadService{
		Store:   app.db,
		Blobs:   app.blobs,
		Cipher:  app.cipher,
		Codec:   app.codec,
		Gate:    gate,
		Limiter: app.downloadLimiter,
		Timeout: app.cfg.StoreTimeout,
	}

	// shared stores expire their own keys
	var sweeper service.CounterSweeper
	if mem, ok := app.counters.(*ratelimit.MemoryStore); ok {
		sweeper = mem
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.blobs,
		sweeper,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Timeout = app.cfg.StoreTimeout
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.blobs, app.counters, app.logger)

	router.TrustProxy = app.cfg.TrustProxyHeaders
	router.PublicBaseURL = app.cfg.PublicBaseURL
	router.MaxFileSize = app.cfg.Documents.MaxFileSize
	router.AdminAuth = httpx.AdminAuthMiddleware(httpx.AdminAuthConfig{
		KeyFingerprints: []string{cryptox.FingerprintToken(app.cfg.Secrets.AdminAPIKey)},
		Guard:           app.adminGuard,
		TrustProxy:      app.cfg.TrustProxyHeaders,
	})

	router.DocumentService = app.documentService
	router.DeliveryService = app.deliveryService
	router.DownloadService = app.downloadService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the configured router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }
