// Package bootstrap opens the resources every storefront binary shares:
// configuration, the logger, postgres and (when asked) redis.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// DefaultEnvFile is read by long-running binaries when present.
const DefaultEnvFile = ".env"

var exit = os.Exit

type options struct {
	envFile string
	redis   bool
}

// Option tweaks what Start opens.
type Option func(*options)

// WithEnvFile overrides the dotenv file. An empty path skips dotenv entirely.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithRedis dials redis alongside postgres.
func WithRedis() Option {
	return func(o *options) { o.redis = true }
}

type closer struct {
	name string
	fn   func() error
}

// Process is a started binary. Close releases resources in reverse order.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []closer
}

// LoadConfig reads dotenv and the environment, stamps the service kind and
// returns a logger configured from the result.
func LoadConfig(name, envFile string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: name})
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logg.Debug(context.Background(), "env file not loaded, relying on environment")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = name

	return cfg, logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	}), nil
}

// Start loads configuration and opens the database, applying dev migrations
// when enabled. A failed start closes whatever was already opened.
func Start(ctx context.Context, name string, opts ...Option) (*Process, error) {
	o := options{envFile: DefaultEnvFile}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, logg, err := LoadConfig(name, o.envFile)
	if err != nil {
		return &Process{Name: name, Logger: logg}, err
	}
	p := &Process{Name: name, Config: cfg, Logger: logg}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return p, fmt.Errorf("connect database: %w", err)
	}
	p.DB = dbClient
	p.OnClose("database", dbClient.Close)

	if err := migrate.AutoApply(ctx, cfg, logg, dbClient); err != nil {
		_ = p.Close(ctx)
		return p, fmt.Errorf("dev migrations: %w", err)
	}

	if o.redis {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			_ = p.Close(ctx)
			return p, fmt.Errorf("connect redis: %w", err)
		}
		p.Redis = redisClient
		p.OnClose("redis", redisClient.Close)
	}

	return p, nil
}

// OnClose registers fn to run when the process shuts down.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers newest first and logs what failed.
func (p *Process) Close(ctx context.Context) error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			if p.Logger != nil {
				p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "error closing resource", err)
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Fatal logs err, releases resources and exits non-zero.
func (p *Process) Fatal(ctx context.Context, msg string, err error) {
	if p.Logger != nil {
		p.Logger.Error(ctx, msg, err)
	}
	_ = p.Close(ctx)
	exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
