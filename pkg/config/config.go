package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every MesaFast environment variable.
	EnvPrefix = "MESAFAST"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "MESAFAST_APP_ENV"
	EnvPort   = "MESAFAST_APP_PORT"
	EnvDBDSN  = "MESAFAST_DB_DSN"
	EnvDBHost = "MESAFAST_DB_HOST"
	EnvDBUser = "MESAFAST_DB_USER"
	EnvDBName = "MESAFAST_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Orders  OrdersConfig
	Outbox  OutboxConfig
	Kafka   KafkaConfig
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
	Env          string `envconfig:"MESAFAST_APP_ENV" required:"true"`
	Port         string `envconfig:"MESAFAST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MESAFAST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MESAFAST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MESAFAST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MESAFAST_DB_DSN"`
	Driver string `envconfig:"MESAFAST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MESAFAST_DB_HOST"`
	LegacyPort     int    `envconfig:"MESAFAST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MESAFAST_DB_USER"`
	LegacyPassword string `envconfig:"MESAFAST_DB_PASSWORD"`
	LegacyName     string `envconfig:"MESAFAST_DB_NAME"`
	LegacySSLMode  string `envconfig:"MESAFAST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MESAFAST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MESAFAST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MESAFAST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MESAFAST_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"MESAFAST_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MESAFAST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MESAFAST_REDIS_ADDR"`
	Password     string        `envconfig:"MESAFAST_REDIS_PASSWORD"`
	DB           int           `envconfig:"MESAFAST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MESAFAST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MESAFAST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MESAFAST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MESAFAST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MESAFAST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MESAFAST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MESAFAST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MESAFAST_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type OrdersConfig struct {
	// DefaultDeliveryFeeCents applies when the merchant has no fee override.
	DefaultDeliveryFeeCents int           `envconfig:"MESAFAST_ORDERS_DEFAULT_DELIVERY_FEE_CENTS" default:"3000"`
	PendingTTL              time.Duration `envconfig:"MESAFAST_ORDERS_PENDING_TTL" default:"45m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MESAFAST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MESAFAST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MESAFAST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"MESAFAST_KAFKA_BROKERS" default:"localhost:9092"`
	OrdersTopic string   `envconfig:"MESAFAST_KAFKA_ORDERS_TOPIC" default:"mesafast.order-events"`
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
