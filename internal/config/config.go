// Package config loads the concierge configuration from a YAML file,
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables (CONCIERGE_HTTP_PORT, ...).
const EnvPrefix = "CONCIERGE"

const (
	GatewayTwilio  = "twilio"
	GatewayConsole = "console"

	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"

	SchedulerMemory = "memory"
	SchedulerRedis  = "redis"
)

type Config struct {
	HTTP      HTTPConfig        `mapstructure:"http"`
	Log       LogConfig         `mapstructure:"log"`
	Channel   ChannelConfig     `mapstructure:"channel"`
	Gateway   GatewayConfig     `mapstructure:"gateway"`
	Twilio    TwilioConfig      `mapstructure:"twilio"`
	Store     StoreConfig       `mapstructure:"store"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Catalog   CatalogConfig     `mapstructure:"catalog"`
	Templates map[string]string `mapstructure:"templates"`
	Scheduler SchedulerConfig   `mapstructure:"scheduler"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ChannelConfig struct {
	// From is the origin address of every outbound message.
	From   string `mapstructure:"from"`
	Prefix string `mapstructure:"prefix"`
}

type GatewayConfig struct {
	Kind    string        `mapstructure:"kind"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
}

type StoreConfig struct {
	Kind string        `mapstructure:"kind"`
	TTL  time.Duration `mapstructure:"ttl"`
	// Path is the session directory of the file store.
	Path          string `mapstructure:"path"`
	EncryptionKey string `mapstructure:"encryption_key"`
	// PreviousKeys still decrypt sessions sealed before a key rotation.
	PreviousKeys []string `mapstructure:"previous_encryption_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	// Lock enables cross-replica session locking.
	Lock bool `mapstructure:"lock"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type SchedulerConfig struct {
	// Backend is memory or redis. Redis jobs use the redis.* connection.
	Backend         string        `mapstructure:"backend"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	Retention       time.Duration `mapstructure:"retention"`
}

// templateKinds are the actions a content template can be configured for.
var templateKinds = []domain.ActionKind{
	domain.ActionPresentServices,
	domain.ActionPresentSubCategories,
	domain.ActionRequestLocation,
	domain.ActionRepromptLocation,
	domain.ActionPresentProviders,
	domain.ActionRequestDate,
	domain.ActionRepromptDate,
	domain.ActionRequestAddress,
	domain.ActionPresentSlots,
	domain.ActionPresentPayment,
	domain.ActionConfirmBooking,
	domain.ActionDefaultResponse,
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("concierge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.port", 8888)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("channel.from", "")
	v.SetDefault("channel.prefix", domain.DefaultChannelPrefix)
	v.SetDefault("gateway.kind", GatewayConsole)
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("store.kind", StoreMemory)
	v.SetDefault("store.ttl", 24*time.Hour)
	v.SetDefault("store.path", "")
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.previous_encryption_keys", []string{})
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "concierge:session:")
	v.SetDefault("redis.lock", false)
	v.SetDefault("catalog.path", "")
	v.SetDefault("scheduler.backend", SchedulerMemory)
	v.SetDefault("scheduler.dispatch_timeout", 30*time.Second)
	v.SetDefault("scheduler.retention", time.Hour)
	for _, k := range templateKinds {
		v.SetDefault("templates."+string(k), "")
	}

	// Conventional provider variable names are honored too.
	_ = v.BindEnv("twilio.account_sid", EnvPrefix+"_TWILIO_ACCOUNT_SID", "TWILIO_ACCOUNT_SID")
	_ = v.BindEnv("twilio.auth_token", EnvPrefix+"_TWILIO_AUTH_TOKEN", "TWILIO_AUTH_TOKEN")
	_ = v.BindEnv("templates."+string(domain.ActionPresentServices),
		EnvPrefix+"_TEMPLATES_"+strings.ToUpper(string(domain.ActionPresentServices)),
		"TWILIO_SERVICE_TEMPLATE_ID")
	_ = v.BindEnv("http.port", EnvPrefix+"_HTTP_PORT", "PORT")

	return v
}

// Load reads the config file (the given path, or concierge.yaml in the
// search paths), then decodes and validates the result. A missing default
// config file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown kinds and incomplete gateway or store settings.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d is out of range", c.HTTP.Port))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	switch c.Gateway.Kind {
	case GatewayConsole:
	case GatewayTwilio:
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("twilio gateway requires twilio.account_sid and twilio.auth_token"))
		}
		if c.Channel.From == "" {
			errs = append(errs, errors.New("twilio gateway requires channel.from"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown gateway.kind %q", c.Gateway.Kind))
	}

	switch c.Store.Kind {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis store requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q", c.Store.Kind))
	}
	switch c.Scheduler.Backend {
	case SchedulerMemory, "":
	case SchedulerRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis scheduler requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scheduler.backend %q", c.Scheduler.Backend))
	}
	if c.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("store.encryption_key: %w", err))
		}
	}
	for i, k := range c.Store.PreviousKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("store.previous_encryption_keys[%d]: %w", i, err))
		}
	}
	if len(c.Store.PreviousKeys) > 0 && c.Store.EncryptionKey == "" {
		errs = append(errs, errors.New("store.previous_encryption_keys requires store.encryption_key"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// TemplateFor returns the content template configured for an action kind.
func (c *Config) TemplateFor(kind domain.ActionKind) string {
	return c.Templates[string(kind)]
}

// TemplateKinds lists the action kinds a template may be configured for.
func TemplateKinds() []domain.ActionKind {
	return append([]domain.ActionKind(nil), templateKinds...)
}
