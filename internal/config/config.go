// Package config loads runtime configuration from environment variables,
// with an optional local YAML overlay read before the environment is
// applied, mirroring the teacher's env-tagged bootstrap Config.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the runtime needs to boot any of its modes
// (HTTP server, projection worker, migrator).
type Config struct {
	EnvName string `env:"ENV_NAME" envDefault:"development" yaml:"env_name"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":3000" yaml:"server_address"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"" yaml:"database_url"`
	RabbitMQURL string `env:"RABBITMQ_URL" envDefault:"" yaml:"rabbitmq_url"`
	RedisURL    string `env:"REDIS_URL" envDefault:"" yaml:"redis_url"`

	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"embedded" yaml:"migrations_path"`

	AuthCacheTTL  time.Duration `env:"AUTH_CACHE_TTL" envDefault:"720h" yaml:"auth_cache_ttl"`
	QueryCacheTTLList time.Duration `env:"QUERY_CACHE_TTL_LIST" envDefault:"45s" yaml:"query_cache_ttl_list"`
	QueryCacheTTLSelf time.Duration `env:"QUERY_CACHE_TTL_SELF" envDefault:"60s" yaml:"query_cache_ttl_self"`

	EventsExchange  string `env:"EVENTS_EXCHANGE" envDefault:"core.events" yaml:"events_exchange"`
	ProjectionQueue string `env:"PROJECTION_QUEUE" envDefault:"core.projection" yaml:"projection_queue"`

	WSHeartbeatInterval time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"30s" yaml:"ws_heartbeat_interval"`
	WSIdleTimeout       time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"90s" yaml:"ws_idle_timeout"`
	WSRateLimitN        int           `env:"WS_RATE_LIMIT_N" envDefault:"10" yaml:"ws_rate_limit_n"`
	WSRateLimitWindow   time.Duration `env:"WS_RATE_LIMIT_WINDOW" envDefault:"10s" yaml:"ws_rate_limit_window"`
	WSRateLimitStrikes  int           `env:"WS_RATE_LIMIT_STRIKES" envDefault:"3" yaml:"ws_rate_limit_strikes"`

	MetricsAddress string `env:"METRICS_ADDRESS" envDefault:":9090" yaml:"metrics_address"`

	ApiKeyPepper string `env:"API_KEY_PEPPER" envDefault:"" yaml:"api_key_pepper"`
}

// ErrMissingRequired is returned by RequireCore when a mode that talks to
// the store/bus/cache is started without the corresponding URL set.
type ErrMissingRequired struct{ Field string }

func (e *ErrMissingRequired) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// Load reads defaults, an optional YAML overlay at path (if it exists),
// then environment variables, in that ascending order of precedence —
// matching the teacher's SetConfigFromEnvVars behavior of env always
// winning.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireCore fails fast (exit code 1 at the caller) when any of the
// three backing services the core always needs is unset.
func (c *Config) RequireCore() error {
	if c.DatabaseURL == "" {
		return &ErrMissingRequired{Field: "DATABASE_URL"}
	}

	if c.RabbitMQURL == "" {
		return &ErrMissingRequired{Field: "RABBITMQ_URL"}
	}

	if c.RedisURL == "" {
		return &ErrMissingRequired{Field: "REDIS_URL"}
	}

	return nil
}

func setDefaults(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		def, ok := field.Tag.Lookup("envDefault")
		if !ok {
			continue
		}

		setField(v.Field(i), def)
	}
}

func applyEnv(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		envKey, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}

		val, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		if err := setFieldErr(v.Field(i), val); err != nil {
			return fmt.Errorf("config: parsing env %s: %w", envKey, err)
		}
	}

	return nil
}

func setField(f reflect.Value, raw string) {
	_ = setFieldErr(f, raw)
}

func setFieldErr(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}

			f.SetInt(int64(d))

			return nil
		}

		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}

		f.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}

	return nil
}
