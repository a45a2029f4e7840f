// Package redis dials the Redis instance that carries logout revocations
// between gateway instances. Redis is optional: a caller that gets an
// error from New keeps running with instance-local logout.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/portico/internal/config"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

// ConnectOptions defines the Redis client and the dial retry policy.
type ConnectOptions struct {
	Addr           string        // Redis address (ex: "localhost:6379")
	User           string        // Optional username
	Password       string        // Optional password
	RedisDB        int           // Redis DB number
	DialTimeout    time.Duration // Redis dial timeout
	ReadTimeout    time.Duration // Redis read timeout
	WriteTimeout   time.Duration // Redis write timeout
	PoolSize       int           // Redis connection pool size
	ConnectTimeout time.Duration // Total time allowed for connection attempts (ex: 30s)
	RetryInterval  time.Duration // First wait between pings, doubled after each failure
	MaxWait        time.Duration // Cap on the wait between pings (ex: 10s)
	PingTimeout    time.Duration // Timeout of a single ping
	WarnThreshold  int           // Attempts logged at warn before escalating to error
}

// OptionsFromConfig maps the PORTICO_REDIS_* settings.
func OptionsFromConfig(cfg *config.Config) ConnectOptions {
	return ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}

// Validate reports every invalid option at once.
func (o ConnectOptions) Validate() error {
	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("Addr must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"ConnectTimeout": o.ConnectTimeout,
		"RetryInterval":  o.RetryInterval,
		"MaxWait":        o.MaxWait,
		"PingTimeout":    o.PingTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, d))
		}
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

// New creates a Redis client and pings it until it answers, ConnectTimeout
// elapses or ctx is done. The client is closed on failure.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	d := &dialer{
		client: client,
		opts:   opts,
		log:    log.Named("redis").With(logger.String("addr", opts.Addr)),
	}
	if err := d.dial(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

type dialer struct {
	client *redis.Client
	opts   ConnectOptions
	log    logger.Logger
}

func (d *dialer) dial(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, d.opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	d.log.Info("connecting to revocation bus backend", logger.Duration("timeout", d.opts.ConnectTimeout))

	wait := d.opts.RetryInterval
	for attempt := 1; ; attempt++ {
		err := d.ping(ctx)
		if err == nil {
			d.connected(attempt, time.Since(start))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.log.Error("redis unreachable, logout stays local to this instance",
				logger.Int("attempts", attempt),
				logger.Duration("elapsed", time.Since(start)),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", d.opts.Addr, attempt, err)
		case <-timer.C:
			d.retrying(attempt, wait, timeLeft(ctx), err)
			wait = nextBackoff(wait, d.opts.MaxWait)
		}
	}
}

func (d *dialer) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.PingTimeout)
	defer cancel()
	return d.client.Ping(ctx).Err()
}

func (d *dialer) connected(attempts int, elapsed time.Duration) {
	if attempts == 1 {
		d.log.Info("revocation bus backend connected")
		return
	}
	d.log.Warn("revocation bus backend connected after retries",
		logger.Int("attempts", attempts),
		logger.Duration("elapsed", elapsed))
}

// retrying logs at warn for the first WarnThreshold attempts, then at error,
// and always at error once the deadline is close.
func (d *dialer) retrying(attempt int, waited, remaining time.Duration, err error) {
	fields := []logger.Field{
		logger.Int("attempt", attempt),
		logger.Duration("waited", waited),
		logger.Duration("remaining", remaining),
		logger.Error(err),
	}
	switch {
	case remaining < 10*time.Second && remaining < d.opts.ConnectTimeout/2:
		d.log.Error("redis still down, giving up soon", fields...)
	case attempt <= d.opts.WarnThreshold:
		d.log.Warn("redis ping failed, retrying", fields...)
	default:
		d.log.Error("redis ping keeps failing", fields...)
	}
}

// nextBackoff doubles wait, capped at ceiling.
func nextBackoff(wait, ceiling time.Duration) time.Duration {
	wait *= 2
	if wait > ceiling {
		return ceiling
	}
	return wait
}

func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
