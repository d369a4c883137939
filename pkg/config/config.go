package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "WHEELDEAL_DB_DSN"
	EnvDBHost = "WHEELDEAL_DB_HOST"
	EnvDBUser = "WHEELDEAL_DB_USER"
	EnvDBName = "WHEELDEAL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Payments     PaymentsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WHEELDEAL_APP_ENV" required:"true"`
	Port         string `envconfig:"WHEELDEAL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WHEELDEAL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WHEELDEAL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WHEELDEAL_DB_DSN"`
	Driver string `envconfig:"WHEELDEAL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WHEELDEAL_DB_HOST"`
	LegacyPort     int    `envconfig:"WHEELDEAL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WHEELDEAL_DB_USER"`
	LegacyPassword string `envconfig:"WHEELDEAL_DB_PASSWORD"`
	LegacyName     string `envconfig:"WHEELDEAL_DB_NAME"`
	LegacySSLMode  string `envconfig:"WHEELDEAL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WHEELDEAL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WHEELDEAL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WHEELDEAL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WHEELDEAL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WHEELDEAL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WHEELDEAL_REDIS_ADDR"`
	Password     string        `envconfig:"WHEELDEAL_REDIS_PASSWORD"`
	DB           int           `envconfig:"WHEELDEAL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WHEELDEAL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WHEELDEAL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WHEELDEAL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WHEELDEAL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WHEELDEAL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WHEELDEAL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WHEELDEAL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WHEELDEAL_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WHEELDEAL_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"WHEELDEAL_STRIPE_API_KEY"`
	Secret         string        `envconfig:"WHEELDEAL_STRIPE_SECRET"`
	Env            string        `envconfig:"WHEELDEAL_STRIPE_ENV" default:"test"`
	SuccessURL     string        `envconfig:"WHEELDEAL_STRIPE_SUCCESS_URL" required:"true"`
	CancelURL      string        `envconfig:"WHEELDEAL_STRIPE_CANCEL_URL" required:"true"`
	Currency       string        `envconfig:"WHEELDEAL_STRIPE_CURRENCY" default:"inr"`
	RequestTimeout time.Duration `envconfig:"WHEELDEAL_STRIPE_REQUEST_TIMEOUT" default:"15s"`
	WebhookTTL     time.Duration `envconfig:"WHEELDEAL_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	BookingPercent int64 `envconfig:"WHEELDEAL_PAYMENTS_BOOKING_PERCENT" default:"5"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
