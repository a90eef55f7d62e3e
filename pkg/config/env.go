package config

const EnvPrefix = "GLOWHAUS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	PaymentsProviderSimulated = "simulated"
	PaymentsProviderSquare    = "square"

	CartBackendRedis = "redis"
	CartBackendDB    = "db"
)

const (
	EnvAppEnv                 = "GLOWHAUS_APP_ENV"
	EnvPort                   = "GLOWHAUS_APP_PORT"
	EnvLogLevel               = "GLOWHAUS_LOG_LEVEL"
	EnvDBDSN                  = "GLOWHAUS_DB_DSN"
	EnvDBDriver               = "GLOWHAUS_DB_DRIVER"
	EnvDBHost                 = "GLOWHAUS_DB_HOST"
	EnvDBPort                 = "GLOWHAUS_DB_PORT"
	EnvDBUser                 = "GLOWHAUS_DB_USER"
	EnvDBPassword             = "GLOWHAUS_DB_PASSWORD"
	EnvDBName                 = "GLOWHAUS_DB_NAME"
	EnvRedisURL               = "GLOWHAUS_REDIS_URL"
	EnvJWTSecret              = "GLOWHAUS_JWT_SECRET"
	EnvJWTIssuer              = "GLOWHAUS_JWT_ISSUER"
	EnvJWTExpMins             = "GLOWHAUS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "GLOWHAUS_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "GLOWHAUS_GCP_PROJECT_ID"
	EnvCartBackend            = "GLOWHAUS_CART_BACKEND"
	EnvCatalogXMLURL          = "GLOWHAUS_CATALOG_XML_URL"
	EnvPaymentsProvider       = "GLOWHAUS_PAYMENTS_PROVIDER"
	EnvPubSubOrdersTopic      = "GLOWHAUS_PUBSUB_ORDERS_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
