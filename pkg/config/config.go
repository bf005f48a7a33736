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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GoogleOAuth   GoogleOAuthConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Mail          MailConfig
	SMS           SMSConfig
	Store         StoreConfig
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
	Env          string `envconfig:"SHOPKIT_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPKIT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPKIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPKIT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPKIT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPKIT_DB_DSN"`
	Driver string `envconfig:"SHOPKIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPKIT_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPKIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPKIT_DB_USER"`
	LegacyPassword string `envconfig:"SHOPKIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPKIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPKIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPKIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPKIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPKIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPKIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPKIT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPKIT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPKIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPKIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPKIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPKIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPKIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPKIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPKIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SHOPKIT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHOPKIT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SHOPKIT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SHOPKIT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPKIT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPKIT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPKIT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPKIT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPKIT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHOPKIT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHOPKIT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHOPKIT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHOPKIT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHOPKIT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHOPKIT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPKIT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPKIT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SHOPKIT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GoogleOAuthConfig struct {
	ClientID     string `envconfig:"SHOPKIT_GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string `envconfig:"SHOPKIT_GOOGLE_OAUTH_CLIENT_SECRET"`
	RedirectURL  string `envconfig:"SHOPKIT_GOOGLE_OAUTH_REDIRECT_URL"`
}

// Enabled reports whether Google sign-in is configured for this deployment.
func (g GoogleOAuthConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHOPKIT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SHOPKIT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHOPKIT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"SHOPKIT_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"SHOPKIT_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"SHOPKIT_PUBSUB_NOTIFICATION_TOPIC" default:"shopkit-notification-events"`
	NotificationSubscription string `envconfig:"SHOPKIT_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPKIT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPKIT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPKIT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MailConfig struct {
	APIKey      string `envconfig:"SHOPKIT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"SHOPKIT_SENDGRID_FROM_EMAIL"`
	AdminEmail  string `envconfig:"SHOPKIT_ADMIN_EMAIL"`
}

type SMSConfig struct {
	BaseURL    string `envconfig:"SHOPKIT_SMS_BASE_URL" default:"https://api.africastalking.com"`
	Username   string `envconfig:"SHOPKIT_SMS_USERNAME"`
	APIKey     string `envconfig:"SHOPKIT_SMS_API_KEY"`
	SenderID   string `envconfig:"SHOPKIT_SMS_SENDER_ID"`
	AdminPhone string `envconfig:"SHOPKIT_ADMIN_PHONE"`
}

// StoreConfig carries the storefront identity used in notification copy.
type StoreConfig struct {
	Name       string `envconfig:"SHOPKIT_STORE_NAME" default:"Shopkit"`
	SupportURL string `envconfig:"SHOPKIT_STORE_SUPPORT_URL"`
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
