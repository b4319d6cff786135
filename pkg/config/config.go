package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RESTAURAI"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "RESTAURAI_APP_ENV"
	EnvDBDSN    = "RESTAURAI_DB_DSN"
	EnvDBHost   = "RESTAURAI_DB_HOST"
	EnvDBUser   = "RESTAURAI_DB_USER"
	EnvDBName   = "RESTAURAI_DB_NAME"
	EnvRedisURL = "RESTAURAI_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Locks        LocksConfig
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
	Env          string `envconfig:"RESTAURAI_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"RESTAURAI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESTAURAI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RESTAURAI_DB_DSN"`
	Driver string `envconfig:"RESTAURAI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RESTAURAI_DB_HOST"`
	LegacyPort     int    `envconfig:"RESTAURAI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESTAURAI_DB_USER"`
	LegacyPassword string `envconfig:"RESTAURAI_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESTAURAI_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESTAURAI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RESTAURAI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESTAURAI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESTAURAI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESTAURAI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"RESTAURAI_REDIS_URL"`
	Address      string        `envconfig:"RESTAURAI_REDIS_ADDR"`
	Password     string        `envconfig:"RESTAURAI_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESTAURAI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESTAURAI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESTAURAI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESTAURAI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESTAURAI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESTAURAI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LocksConfig selects the per-tenant write lock backend. The in-process
// backend is correct for a single writer process; the redis backend extends
// the same guarantee across processes.
type LocksConfig struct {
	Backend       string        `envconfig:"RESTAURAI_LOCKS_BACKEND" default:"memory"`
	LeaseTTL      time.Duration `envconfig:"RESTAURAI_LOCKS_LEASE_TTL" default:"15s"`
	RetryInterval time.Duration `envconfig:"RESTAURAI_LOCKS_RETRY_INTERVAL" default:"25ms"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RESTAURAI_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsSQLite() {
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
