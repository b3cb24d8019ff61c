package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "NAMNAM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "NAMNAM_DB_DSN"
	EnvDBHost = "NAMNAM_DB_HOST"
	EnvDBUser = "NAMNAM_DB_USER"
	EnvDBName = "NAMNAM_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	MercadoPago  MercadoPagoConfig
	SMTP         SMTPConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"NAMNAM_APP_ENV" required:"true"`
	Port         string `envconfig:"NAMNAM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NAMNAM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NAMNAM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NAMNAM_DB_DSN"`
	Driver string `envconfig:"NAMNAM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NAMNAM_DB_HOST"`
	LegacyPort     int    `envconfig:"NAMNAM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NAMNAM_DB_USER"`
	LegacyPassword string `envconfig:"NAMNAM_DB_PASSWORD"`
	LegacyName     string `envconfig:"NAMNAM_DB_NAME"`
	LegacySSLMode  string `envconfig:"NAMNAM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NAMNAM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NAMNAM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NAMNAM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NAMNAM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NAMNAM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NAMNAM_REDIS_ADDR"`
	Password     string        `envconfig:"NAMNAM_REDIS_PASSWORD"`
	DB           int           `envconfig:"NAMNAM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NAMNAM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NAMNAM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NAMNAM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NAMNAM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NAMNAM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CartConfig struct {
	SessionTTL time.Duration `envconfig:"NAMNAM_CART_SESSION_TTL" default:"336h"`
}

type MercadoPagoConfig struct {
	AccessToken string        `envconfig:"NAMNAM_MP_ACCESS_TOKEN"`
	BaseURL     string        `envconfig:"NAMNAM_MP_BASE_URL" default:"https://api.mercadopago.com"`
	PublicURL   string        `envconfig:"NAMNAM_PUBLIC_URL"`
	Timeout     time.Duration `envconfig:"NAMNAM_MP_TIMEOUT" default:"10s"`
}

// Enabled reports whether a real gateway is configured; without a token the
// checkout falls back to the synchronous dev payment path.
func (m MercadoPagoConfig) Enabled() bool {
	return strings.TrimSpace(m.AccessToken) != ""
}

type SMTPConfig struct {
	Host        string `envconfig:"NAMNAM_SMTP_HOST"`
	Port        int    `envconfig:"NAMNAM_SMTP_PORT" default:"587"`
	Username    string `envconfig:"NAMNAM_SMTP_USERNAME"`
	Password    string `envconfig:"NAMNAM_SMTP_PASSWORD"`
	DefaultFrom string `envconfig:"NAMNAM_SMTP_FROM_EMAIL" default:"pedidos@namnamchicken.com"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"NAMNAM_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NAMNAM_AUTO_MIGRATE" default:"false"`
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
