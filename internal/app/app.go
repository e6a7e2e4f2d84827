// Package app wires configuration, logging, the API client, the session store and
// the listing and enquiry components into one handle for a front end.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"land-marketplace/internal/common/config"
	"land-marketplace/internal/common/database"
	apihttp "land-marketplace/internal/common/http"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/common/observability"
	"land-marketplace/internal/enquiry"
	"land-marketplace/internal/listings"
	"land-marketplace/internal/models"
	"land-marketplace/internal/session"
)

// App holds every long-lived component. Close releases them.
type App struct {
	Config        *config.Config
	Logger        logger.Logger
	Observability *observability.Observability
	Redis         *database.RedisClient

	Session   *session.Store
	Listings  *listings.Service
	Browse    *listings.Engine
	Enquiries *enquiry.Service
	Enquiry   *enquiry.Controller

	sessionID string
}

type options struct {
	logger      logger.Logger
	redis       *database.RedisClient
	httpClient  *http.Client
	engineOpts  []listings.Option
	maxRetries  int
	retryDelay  time.Duration
	skipRestore bool
}

type Option func(*options)

// WithLogger replaces the logger built from cfg.Logging.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRedis supplies an already connected client for the redis session backend.
func WithRedis(r *database.RedisClient) Option {
	return func(o *options) { o.redis = r }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEngineOptions passes extra options to the listing query engine.
func WithEngineOptions(opts ...listings.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithRetry sets how often the redis connection is attempted at startup.
func WithRetry(maxRetries int, initialDelay time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.retryDelay = initialDelay
	}
}

// WithoutRestore skips loading a persisted session at startup.
func WithoutRestore() Option {
	return func(o *options) { o.skipRestore = true }
}

// New builds the application from cfg. The persisted session, if any, is restored
// before New returns.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{maxRetries: 5, retryDelay: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	if log == nil {
		log = logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	}

	a := &App{
		Config:        cfg,
		Logger:        log,
		Observability: &observability.Observability{},
	}

	var clientOpts []apihttp.Option
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apihttp.WithHTTPClient(o.httpClient))
	}
	if cfg.Metrics.Enabled {
		obs, err := observability.New(cfg.Metrics.ServiceName)
		if err != nil {
			log.Warn("observability disabled", map[string]interface{}{"error": err.Error()})
		}
		a.Observability = obs
		clientOpts = append(clientOpts, apihttp.WithRecorder(obs))
	}
	api := apihttp.NewClient(cfg.API, log.Named("api"), clientOpts...)

	persistence, err := a.persistence(ctx, o)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Session = session.NewStore(api, persistence, log.Named("session"))
	if !o.skipRestore {
		if err := a.Session.Restore(ctx); err != nil {
			// continue anonymous
			log.Warn("session restore failed", map[string]interface{}{"error": err.Error()})
		}
	}

	a.Listings = listings.NewService(api, log.Named("listings"))
	engineOpts := []listings.Option{
		listings.WithQuietPeriod(config.GetDuration(cfg.Browse.DebounceMS)),
		listings.WithInitialType(models.PropertyType(cfg.Browse.DefaultType)),
	}
	a.Browse = listings.NewEngine(a.Listings, log.Named("browse"), append(engineOpts, o.engineOpts...)...)

	a.Enquiries = enquiry.NewService(a.Session.Client(), cfg.Enquiry.EnquiryType, log.Named("enquiry"))
	a.Enquiry = enquiry.NewController(a.Session, a.Enquiries, log.Named("enquiry"), enquiry.WithEnquiryType(cfg.Enquiry.EnquiryType))

	log.Info("application ready", map[string]interface{}{
		"apiBaseUrl":     cfg.API.BaseURL,
		"sessionBackend": cfg.Session.Backend,
		"authenticated":  a.Session.IsAuthenticated(),
	})
	return a, nil
}

func (a *App) persistence(ctx context.Context, o *options) (session.Persistence, error) {
	cfg := a.Config
	if cfg.Session.Backend != "redis" {
		return session.NewMemoryPersistence(), nil
	}

	a.sessionID = cfg.Session.ID
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}

	if o.redis != nil {
		a.Redis = o.redis
	} else {
		err := retryWithBackoff(ctx, func() error {
			client, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := client.Ping(ctx); err != nil {
				_ = client.Close()
				return err
			}
			a.Redis = client
			return nil
		}, o.maxRetries, o.retryDelay, a.Logger, "Redis connection")
		if err != nil {
			return nil, err
		}
	}

	key := session.Key(cfg.Session.KeyPrefix, a.sessionID)
	a.Logger.Debug("using redis session persistence", map[string]interface{}{"key": key})
	return session.NewRedisPersistence(a.Redis, key, time.Duration(cfg.Session.TTL)*time.Minute), nil
}

// SessionID is the key suffix of the persisted session, empty for memory sessions.
func (a *App) SessionID() string {
	return a.sessionID
}

// MetricsHandler exposes the prometheus registry, including the otel exporter.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Close stops the query engine and releases external connections.
func (a *App) Close() {
	if a.Browse != nil {
		a.Browse.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.Observability != nil {
		a.Observability.Shutdown()
	}
	_ = a.Logger.Sync()
}

// retryWithBackoff attempts operation with exponential backoff. It stops waiting
// as soon as ctx is done.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s aborted after %d attempts: %w", operationName, i+1, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
