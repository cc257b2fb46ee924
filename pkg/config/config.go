package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Session      SessionConfig
	TourAPI      TourAPIConfig
	Storefront   StorefrontConfig
	SessionLimit SessionRateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Storefront.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TOURBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"TOURBOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOURBOOK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TOURBOOK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TOURBOOK_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string      `envconfig:"TOURBOOK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout    time.Duration `envconfig:"TOURBOOK_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TOURBOOK_DB_DSN"`
	Driver string `envconfig:"TOURBOOK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOURBOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"TOURBOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOURBOOK_DB_USER"`
	LegacyPassword string `envconfig:"TOURBOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOURBOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOURBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOURBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOURBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOURBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOURBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"TOURBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOURBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOURBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOURBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOURBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SessionConfig signs the storefront session tokens.
type SessionConfig struct {
	Secret     string `envconfig:"TOURBOOK_SESSION_SECRET" required:"true"`
	Issuer     string `envconfig:"TOURBOOK_SESSION_ISSUER" default:"tourbook"`
	TTLMinutes int    `envconfig:"TOURBOOK_SESSION_TTL_MINUTES" default:"1440"`
}

// TTL returns the session token lifetime.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

type TourAPIConfig struct {
	BaseURL string        `envconfig:"TOURBOOK_TOUR_API_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"TOURBOOK_TOUR_API_KEY"`
	Timeout time.Duration `envconfig:"TOURBOOK_TOUR_API_TIMEOUT" default:"10s"`
}

type StorefrontConfig struct {
	Timezone         string        `envconfig:"TOURBOOK_STOREFRONT_TIMEZONE" default:"UTC"`
	WorkspaceIdleTTL time.Duration `envconfig:"TOURBOOK_WORKSPACE_IDLE_TTL" default:"2h"`
	CartSnapshotTTL  time.Duration `envconfig:"TOURBOOK_CART_SNAPSHOT_TTL" default:"168h"`
	EvictionInterval time.Duration `envconfig:"TOURBOOK_EVICTION_INTERVAL" default:"10m"`
	ReceiptRetention int           `envconfig:"TOURBOOK_RECEIPT_RETENTION_DAYS" default:"365"`
	RetentionEvery   time.Duration `envconfig:"TOURBOOK_RECEIPT_RETENTION_INTERVAL" default:"24h"`
}

// Location resolves the timezone used to decide which calendar day is "today".
func (s StorefrontConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s %q: %w", EnvStorefrontTimezone, name, err)
	}
	return loc, nil
}

type SessionRateLimitConfig struct {
	Window  time.Duration `envconfig:"TOURBOOK_SESSION_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"TOURBOOK_SESSION_RATE_LIMIT_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TOURBOOK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TOURBOOK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite || strings.EqualFold(db.Driver, "sqlite") {
		db.Driver = "sqlite"
		db.DSN = "file:tourbook.db?cache=shared"
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
