package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv                 = "SHOPKIT_APP_ENV"
	EnvPort                   = "SHOPKIT_APP_PORT"
	EnvDBDSN                  = "SHOPKIT_DB_DSN"
	EnvDBHost                 = "SHOPKIT_DB_HOST"
	EnvDBUser                 = "SHOPKIT_DB_USER"
	EnvDBName                 = "SHOPKIT_DB_NAME"
	EnvRedisURL               = "SHOPKIT_REDIS_URL"
	EnvJWTSecret              = "SHOPKIT_JWT_SECRET"
	EnvJWTIssuer              = "SHOPKIT_JWT_ISSUER"
	EnvJWTExpMins             = "SHOPKIT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SHOPKIT_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "SHOPKIT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "SHOPKIT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "SHOPKIT_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubNotificationSub  = "SHOPKIT_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

// legacyDBEnvVars are the discrete connection vars accepted when no DSN
// is set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
