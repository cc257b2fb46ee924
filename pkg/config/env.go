package config

// EnvPrefix is handed to envconfig; every tag below carries the full variable name.
const EnvPrefix = "TOURBOOK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "TOURBOOK_APP_ENV"
	EnvPort         = "TOURBOOK_APP_PORT"
	EnvLogLevel     = "TOURBOOK_LOG_LEVEL"
	EnvLogFormat    = "TOURBOOK_LOG_FORMAT"
	EnvLogWarnStack = "TOURBOOK_LOG_WARN_STACK"

	EnvDBDSN      = "TOURBOOK_DB_DSN"
	EnvDBDriver   = "TOURBOOK_DB_DRIVER"
	EnvDBHost     = "TOURBOOK_DB_HOST"
	EnvDBPort     = "TOURBOOK_DB_PORT"
	EnvDBUser     = "TOURBOOK_DB_USER"
	EnvDBPassword = "TOURBOOK_DB_PASSWORD"
	EnvDBName     = "TOURBOOK_DB_NAME"
	EnvDBSSLMode  = "TOURBOOK_DB_SSLMODE"

	EnvRedisURL = "TOURBOOK_REDIS_URL"

	EnvSessionSecret     = "TOURBOOK_SESSION_SECRET"
	EnvSessionIssuer     = "TOURBOOK_SESSION_ISSUER"
	EnvSessionTTLMinutes = "TOURBOOK_SESSION_TTL_MINUTES"

	EnvTourAPIBaseURL = "TOURBOOK_TOUR_API_BASE_URL"
	EnvTourAPIKey     = "TOURBOOK_TOUR_API_KEY"
	EnvTourAPITimeout = "TOURBOOK_TOUR_API_TIMEOUT"

	EnvStorefrontTimezone = "TOURBOOK_STOREFRONT_TIMEZONE"
	EnvWorkspaceIdleTTL   = "TOURBOOK_WORKSPACE_IDLE_TTL"
	EnvCartSnapshotTTL    = "TOURBOOK_CART_SNAPSHOT_TTL"
	EnvEvictionInterval   = "TOURBOOK_EVICTION_INTERVAL"
	EnvReceiptRetention   = "TOURBOOK_RECEIPT_RETENTION_DAYS"
	EnvRetentionInterval  = "TOURBOOK_RECEIPT_RETENTION_INTERVAL"

	EnvCORSAllowedOrigins = "TOURBOOK_CORS_ALLOWED_ORIGINS"

	EnvUseSQLite   = "TOURBOOK_USE_SQLITE"
	EnvAutoMigrate = "TOURBOOK_AUTO_MIGRATE"
)

// legacyDBEnvVars must all be present when no DSN is configured.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
