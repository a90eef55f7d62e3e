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
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Session       SessionConfig
	Checkout      CheckoutConfig
	Catalog       CatalogConfig
	Payments      PaymentsConfig
	Square        SquareConfig
	Admin         AdminConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Eventing      EventingConfig
	Outbox        OutboxConfig
	Telemetry     TelemetryConfig
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
	Env          string `envconfig:"GLOWHAUS_APP_ENV" required:"true"`
	Port         string `envconfig:"GLOWHAUS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GLOWHAUS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GLOWHAUS_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"GLOWHAUS_CORS_ORIGINS" default:"http://localhost:3000,https://glowhaus.ph,https://www.glowhaus.ph"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GLOWHAUS_DB_DSN"`
	Driver string `envconfig:"GLOWHAUS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GLOWHAUS_DB_HOST"`
	Port     int    `envconfig:"GLOWHAUS_DB_PORT" default:"5432"`
	User     string `envconfig:"GLOWHAUS_DB_USER"`
	Password string `envconfig:"GLOWHAUS_DB_PASSWORD"`
	Name     string `envconfig:"GLOWHAUS_DB_NAME"`
	SSLMode  string `envconfig:"GLOWHAUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GLOWHAUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GLOWHAUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GLOWHAUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GLOWHAUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GLOWHAUS_DB_SLOW_QUERY" default:"250ms"`
	ConnectTimeout  time.Duration `envconfig:"GLOWHAUS_DB_CONNECT_TIMEOUT" default:"5s"`
}

// IsSQLite reports whether the sqlite driver was selected (local development only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"GLOWHAUS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GLOWHAUS_REDIS_ADDR"`
	Password     string        `envconfig:"GLOWHAUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"GLOWHAUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GLOWHAUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GLOWHAUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GLOWHAUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GLOWHAUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GLOWHAUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GLOWHAUS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GLOWHAUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"GLOWHAUS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"GLOWHAUS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GLOWHAUS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GLOWHAUS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GLOWHAUS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GLOWHAUS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GLOWHAUS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GLOWHAUS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"GLOWHAUS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"GLOWHAUS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"GLOWHAUS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"GLOWHAUS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"GLOWHAUS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GLOWHAUS_AUTO_MIGRATE" default:"false"`
	// MergeGuestCart folds the session cart into the user's cart on login.
	MergeGuestCart bool `envconfig:"GLOWHAUS_FEATURE_MERGE_GUEST_CART" default:"true"`
}

type SessionConfig struct {
	CookieName   string        `envconfig:"GLOWHAUS_SESSION_COOKIE_NAME" default:"gh_session"`
	CookieSecure bool          `envconfig:"GLOWHAUS_SESSION_COOKIE_SECURE" default:"true"`
	TTL          time.Duration `envconfig:"GLOWHAUS_SESSION_TTL" default:"720h"`
}

type CheckoutConfig struct {
	// CartBackend selects the cart repository: "redis" (session scoped) or "db".
	CartBackend     string        `envconfig:"GLOWHAUS_CART_BACKEND" default:"redis"`
	DraftTTL        time.Duration `envconfig:"GLOWHAUS_CHECKOUT_DRAFT_TTL" default:"720h"`
	ConfirmationTTL time.Duration `envconfig:"GLOWHAUS_CHECKOUT_CONFIRMATION_TTL" default:"24h"`
	IdempotencyTTL  time.Duration `envconfig:"GLOWHAUS_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	Currency        string        `envconfig:"GLOWHAUS_CURRENCY" default:"PHP"`
}

type CatalogConfig struct {
	// XMLURL is the external markup catalog. Empty disables the XML source.
	XMLURL string `envconfig:"GLOWHAUS_CATALOG_XML_URL"`
	// XMLBucket and XMLObject read the document from Cloud Storage instead
	// and take precedence over XMLURL when both are set.
	XMLBucket    string        `envconfig:"GLOWHAUS_CATALOG_XML_BUCKET"`
	XMLObject    string        `envconfig:"GLOWHAUS_CATALOG_XML_OBJECT"`
	FetchTimeout time.Duration `envconfig:"GLOWHAUS_CATALOG_FETCH_TIMEOUT" default:"10s"`
	CacheTTL     time.Duration `envconfig:"GLOWHAUS_CATALOG_CACHE_TTL" default:"15m"`
}

// UsesGCS reports whether the XML document lives in a storage bucket.
func (c CatalogConfig) UsesGCS() bool {
	return strings.TrimSpace(c.XMLBucket) != "" && strings.TrimSpace(c.XMLObject) != ""
}

type PaymentsConfig struct {
	// Provider is "simulated" or "square".
	Provider string `envconfig:"GLOWHAUS_PAYMENTS_PROVIDER" default:"simulated"`
}

// UsesSquare reports whether card and wallet payments go through Square.
func (p PaymentsConfig) UsesSquare() bool {
	return strings.EqualFold(strings.TrimSpace(p.Provider), PaymentsProviderSquare)
}

type SquareConfig struct {
	AccessToken string `envconfig:"GLOWHAUS_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"GLOWHAUS_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"GLOWHAUS_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type AdminConfig struct {
	// APIKey guards the fulfillment status endpoint. Empty disables it.
	APIKey string `envconfig:"GLOWHAUS_ADMIN_API_KEY"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GLOWHAUS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GLOWHAUS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GLOWHAUS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"GLOWHAUS_PUBSUB_ORDERS_TOPIC" default:"gh-order-events"`
	OrdersDLQTopic        string `envconfig:"GLOWHAUS_PUBSUB_ORDERS_DLQ_TOPIC" default:"gh-order-events-dlq"`
	AccountsTopic         string `envconfig:"GLOWHAUS_PUBSUB_ACCOUNTS_TOPIC" default:"gh-account-events"`
	AnalyticsSubscription string `envconfig:"GLOWHAUS_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"gh-order-events-analytics"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"GLOWHAUS_BIGQUERY_DATASET" default:"glowhaus"`
	OrderSalesTable string `envconfig:"GLOWHAUS_BIGQUERY_ORDER_SALES_TABLE" default:"order_sales"`
	Location        string `envconfig:"GLOWHAUS_BIGQUERY_LOCATION" default:"US"`
	// Endpoint points the client at an emulator; auth is skipped when set.
	Endpoint     string `envconfig:"GLOWHAUS_BIGQUERY_ENDPOINT"`
	CreateTables bool   `envconfig:"GLOWHAUS_BIGQUERY_CREATE_TABLES" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"GLOWHAUS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ConsumerLease          time.Duration `envconfig:"GLOWHAUS_EVENTING_CONSUMER_LEASE" default:"5m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GLOWHAUS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GLOWHAUS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GLOWHAUS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// PublishTimeout bounds the wait for Pub/Sub acks on one batch.
	PublishTimeout time.Duration `envconfig:"GLOWHAUS_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type TelemetryConfig struct {
	// OTLPEndpoint enables trace export over gRPC when set.
	OTLPEndpoint string  `envconfig:"GLOWHAUS_OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool    `envconfig:"GLOWHAUS_OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"GLOWHAUS_OTEL_SAMPLE_RATIO" default:"1"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
