package config

// EnvPrefix is the envconfig prefix applied when processing the Config struct.
const EnvPrefix = "TRACKLINE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "TRACKLINE_APP_ENV"
	EnvPort       = "TRACKLINE_APP_PORT"
	EnvDBDSN      = "TRACKLINE_DB_DSN"
	EnvDBHost     = "TRACKLINE_DB_HOST"
	EnvDBUser     = "TRACKLINE_DB_USER"
	EnvDBName     = "TRACKLINE_DB_NAME"
	EnvRedisURL   = "TRACKLINE_REDIS_URL"
	EnvJWTSecret  = "TRACKLINE_JWT_SECRET"
	EnvJWTIssuer  = "TRACKLINE_JWT_ISSUER"
	EnvJWTExpMins = "TRACKLINE_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
