package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "development"
	AppEnvTest = "test"
	AppEnvProd = "production"

	devJWTSecret = "default_super_secret_key"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	JWT           JWTConfig
	Redis         RedisConfig
	AuthRateLimit AuthRateLimitConfig
	Seed          SeedConfig
}

// Load reads configuration from the process environment. Call godotenv.Load
// beforehand when a .env file should be honoured.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.JWT.ensureSecret(cfg.App); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"APP_ENV" default:"development"`
	Port         string   `envconfig:"PORT" default:"8080"`
	LogLevel     string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`
	SeedOnBoot   bool     `envconfig:"SEED_ON_BOOT" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsTest() bool {
	return strings.EqualFold(a.Env, AppEnvTest)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"postgres"` // postgres or sqlite
	DSN    string `envconfig:"DB_DSN"`

	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"postgres"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Driver == "sqlite" {
		d.DSN = "file:hospital_inventory.db?_foreign_keys=on"
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return errors.New("database config requires DB_DSN or DB_HOST, DB_USER and DB_NAME")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
	Issuer string        `envconfig:"JWT_ISSUER" default:"hospital-inventory"`
}

func (j *JWTConfig) ensureSecret(app AppConfig) error {
	if j.Secret != "" {
		return nil
	}
	if app.IsProd() {
		return errors.New("JWT_SECRET is required in production")
	}
	// development fallback only
	j.Secret = devJWTSecret
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a redis connection should be opened at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type AuthRateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"AUTH_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit   int64         `envconfig:"AUTH_LOGIN_IP_LIMIT" default:"20"`
	LoginUserLimit int64         `envconfig:"AUTH_LOGIN_USER_LIMIT" default:"5"`
}

type SeedConfig struct {
	AdminUsername       string `envconfig:"SEED_ADMIN_USERNAME" default:"admin"`
	AdminPassword       string `envconfig:"SEED_ADMIN_PASSWORD" default:"admin123"`
	SubordinateUsername string `envconfig:"SEED_SUBORDINATE_USERNAME" default:"subordinate"`
	SubordinatePassword string `envconfig:"SEED_SUBORDINATE_PASSWORD" default:"subordinate123"`
}
