package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	WS            WSConfig
	Tracking      TrackingConfig
	ConnRateLimit ConnRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
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
	Env          string `envconfig:"TRACKLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"TRACKLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRACKLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRACKLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TRACKLINE_DB_DSN"`
	Driver string `envconfig:"TRACKLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRACKLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"TRACKLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRACKLINE_DB_USER"`
	LegacyPassword string `envconfig:"TRACKLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRACKLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRACKLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRACKLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRACKLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRACKLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRACKLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRACKLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRACKLINE_REDIS_ADDR"`
	Password     string        `envconfig:"TRACKLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRACKLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRACKLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRACKLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRACKLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRACKLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRACKLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRACKLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRACKLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRACKLINE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TRACKLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TRACKLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TRACKLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TRACKLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TRACKLINE_ARGON_KEY_LEN" default:"32"`
}

// WSConfig tunes the websocket transport.
type WSConfig struct {
	AllowedOrigins []string      `envconfig:"TRACKLINE_WS_ALLOWED_ORIGINS"`
	WriteTimeout   time.Duration `envconfig:"TRACKLINE_WS_WRITE_TIMEOUT" default:"5s"`
	SendBuffer     int           `envconfig:"TRACKLINE_WS_SEND_BUFFER" default:"32"`
}

// TrackingConfig tunes the location distribution core.
type TrackingConfig struct {
	HistoryPageSize  int           `envconfig:"TRACKLINE_TRACKING_HISTORY_PAGE_SIZE" default:"50"`
	PresenceTTL      time.Duration `envconfig:"TRACKLINE_TRACKING_PRESENCE_TTL" default:"90s"`
	EnforceOwnership bool          `envconfig:"TRACKLINE_TRACKING_ENFORCE_OWNERSHIP" default:"true"`
}

type ConnRateLimitConfig struct {
	Window     time.Duration `envconfig:"TRACKLINE_CONN_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"TRACKLINE_CONN_RATE_LIMIT_IP_LIMIT" default:"30"`
	EmailLimit int           `envconfig:"TRACKLINE_CONN_RATE_LIMIT_EMAIL_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRACKLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRACKLINE_AUTO_MIGRATE" default:"false"`
	SeedDemo    bool `envconfig:"TRACKLINE_SEED_DEMO" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRACKLINE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TRACKLINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRACKLINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TelemetryTopic string `envconfig:"TRACKLINE_PUBSUB_TELEMETRY_TOPIC"`
}

// TelemetryEnabled reports whether position telemetry export is configured.
func (p PubSubConfig) TelemetryEnabled() bool {
	return strings.TrimSpace(p.TelemetryTopic) != ""
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
