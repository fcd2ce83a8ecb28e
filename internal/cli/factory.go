// Package cli wires the concierge from configuration for the command-line
// entry points.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/catalog"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/metrics"
	"github.com/aretw0/concierge/internal/presentation/tui"
	"github.com/aretw0/concierge/pkg/adapters/console"
	"github.com/aretw0/concierge/pkg/adapters/file"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/adapters/redis"
	"github.com/aretw0/concierge/pkg/adapters/twilio"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
	"github.com/aretw0/concierge/pkg/ports"
)

// DefaultSessionDir is where the file store keeps sessions when store.path is empty.
const DefaultSessionDir = ".concierge/sessions"

// Options adjusts how Build renders console output.
type Options struct {
	// Console receives replies when the console gateway is selected.
	Console io.Writer
	// Markdown renders console replies through glamour.
	Markdown bool
	// Width is the word wrap of rendered markdown.
	Width int
}

// Runtime is a fully wired concierge plus the resources its owner must release.
type Runtime struct {
	App     *concierge.App
	Gateway ports.MessagingGateway
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close stops the scheduler and releases stores.
func (r *Runtime) Close(ctx context.Context) error {
	errs := []error{r.App.Close(ctx)}
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewLogger builds the application logger from the log section.
func NewLogger(cfg *config.Config, out io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithOptions(logging.Options{Level: level, Format: cfg.Log.Format, Output: out}), nil
}

// Build wires the App described by cfg.
func Build(cfg *config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{Logger: logger, Metrics: metrics.New()}

	store, locker, closer, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	gateway, err := NewGateway(cfg, opts)
	if err != nil {
		rt.closeAll()
		return nil, err
	}
	rt.Gateway = gateway

	cat, err := LoadCatalog(cfg)
	if err != nil {
		rt.closeAll()
		return nil, err
	}

	appOpts := []concierge.Option{
		concierge.WithStore(store),
		concierge.WithGateway(gateway),
		concierge.WithFrom(cfg.Channel.From),
		concierge.WithChannelPrefix(cfg.Channel.Prefix),
		concierge.WithTemplates(Templates(cfg)),
		concierge.WithCatalog(cat),
		concierge.WithHooks(rt.Metrics.Hooks().Merge(observability.LogHooks(logger))),
		concierge.WithLogger(logger),
		concierge.WithScheduler(cfg.Scheduler.DispatchTimeout, cfg.Scheduler.Retention),
	}
	if locker != nil {
		appOpts = append(appOpts, concierge.WithLocker(locker, 0))
	}
	if cfg.Scheduler.Backend == config.SchedulerRedis {
		appOpts = append(appOpts, concierge.WithJobQueue(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
	}

	app, err := concierge.New(appOpts...)
	if err != nil {
		rt.closeAll()
		return nil, fmt.Errorf("failed to build concierge: %w", err)
	}
	rt.App = app

	logger.Info("Concierge ready",
		"gateway", cfg.Gateway.Kind,
		"store", cfg.Store.Kind,
		"encrypted", cfg.Store.EncryptionKey != "",
		"distributed_lock", locker != nil,
		"scheduler", cfg.Scheduler.Backend,
	)
	return rt, nil
}

func (r *Runtime) closeAll() {
	for _, c := range r.closers {
		_ = c()
	}
}

// NewStore selects the session store, wrapped with encryption when a key is
// configured. The locker is non-nil only for redis with redis.lock set.
func NewStore(cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
		closer func() error
	)

	switch cfg.Store.Kind {
	case config.StoreMemory, "":
		store = memory.NewStore(memory.WithTTL(cfg.Store.TTL))
	case config.StoreFile:
		dir := cfg.Store.Path
		if dir == "" {
			dir = DefaultSessionDir
		}
		store = file.New(filepath.Clean(dir))
	case config.StoreRedis:
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Store.TTL),
		)
		if cfg.Redis.Lock {
			locker = redis.NewLocker(rs.Client(), rs.Prefix())
		}
		store, closer = rs, rs.Close
	default:
		return nil, nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	if cfg.Store.EncryptionKey != "" {
		enc, err := encryptionConfig(cfg.Store)
		if err != nil {
			if closer != nil {
				_ = closer()
			}
			return nil, nil, nil, err
		}
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(enc))
	}
	return store, locker, closer, nil
}

func encryptionConfig(sc config.StoreConfig) (middleware.EncryptionConfig, error) {
	active, err := middleware.ParseKey(sc.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, fmt.Errorf("invalid encryption key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range sc.PreviousKeys {
		old, err := middleware.ParseKey(k)
		if err != nil {
			return middleware.EncryptionConfig{}, fmt.Errorf("invalid previous encryption key %d: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, old)
	}
	return enc, nil
}

// NewGateway selects the messaging gateway.
func NewGateway(cfg *config.Config, opts Options) (ports.MessagingGateway, error) {
	switch cfg.Gateway.Kind {
	case config.GatewayTwilio:
		return twilio.New(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, twilio.WithTimeout(cfg.Gateway.Timeout)), nil
	case config.GatewayConsole, "":
		out := opts.Console
		if out == nil {
			out = io.Discard
		}
		var consoleOpts []console.Option
		if opts.Markdown {
			consoleOpts = append(consoleOpts, console.WithRenderer(tui.NewRenderer(opts.Width)))
		}
		return console.New(out, consoleOpts...), nil
	default:
		return nil, fmt.Errorf("unknown gateway kind %q", cfg.Gateway.Kind)
	}
}

// LoadCatalog returns the configured catalog, or the embedded default.
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	return catalog.Load(cfg.Catalog.Path)
}

// Templates collects the configured content template ids by reply kind.
func Templates(cfg *config.Config) map[domain.ActionKind]string {
	out := make(map[domain.ActionKind]string)
	for _, kind := range config.TemplateKinds() {
		if id := cfg.TemplateFor(kind); id != "" {
			out[kind] = id
		}
	}
	return out
}
