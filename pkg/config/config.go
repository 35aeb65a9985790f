package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	VectorStore  VectorStoreConfig
	AI           AIConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Policy       PolicyConfig
	Outbox       OutboxConfig
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
	Env          string   `envconfig:"SHELFLINE_APP_ENV" required:"true"`
	Port         string   `envconfig:"SHELFLINE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SHELFLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SHELFLINE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SHELFLINE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHELFLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHELFLINE_DB_DSN"`
	Driver string `envconfig:"SHELFLINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHELFLINE_DB_HOST"`
	Port     int    `envconfig:"SHELFLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"SHELFLINE_DB_USER"`
	Password string `envconfig:"SHELFLINE_DB_PASSWORD"`
	Name     string `envconfig:"SHELFLINE_DB_NAME"`
	SSLMode  string `envconfig:"SHELFLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHELFLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHELFLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHELFLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHELFLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHELFLINE_REDIS_URL"`
	Address      string        `envconfig:"SHELFLINE_REDIS_ADDR"`
	Password     string        `envconfig:"SHELFLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHELFLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHELFLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHELFLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHELFLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHELFLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHELFLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHELFLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHELFLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHELFLINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// VectorStoreConfig points at the external collection-oriented vector store.
type VectorStoreConfig struct {
	BaseURL        string        `envconfig:"SHELFLINE_VECTORSTORE_URL"`
	APIKey         string        `envconfig:"SHELFLINE_VECTORSTORE_API_KEY"`
	VectorDim      int           `envconfig:"SHELFLINE_VECTORSTORE_VECTOR_DIM" default:"384"`
	Distance       string        `envconfig:"SHELFLINE_VECTORSTORE_DISTANCE" default:"Cosine"`
	RequestTimeout time.Duration `envconfig:"SHELFLINE_VECTORSTORE_TIMEOUT" default:"15s"`
	ScrollPageSize int           `envconfig:"SHELFLINE_VECTORSTORE_SCROLL_PAGE_SIZE" default:"250"`
	MaxScrollTotal int           `envconfig:"SHELFLINE_VECTORSTORE_MAX_SCROLL_TOTAL" default:"100000"`
}

// Configured reports whether a store client can be constructed at all.
// An unconfigured store degrades writes to no-ops and reads to empty results.
func (v VectorStoreConfig) Configured() bool {
	return strings.TrimSpace(v.BaseURL) != ""
}

// AIConfig points at the external embedding/extraction service.
type AIConfig struct {
	BaseURL        string        `envconfig:"SHELFLINE_AI_URL"`
	APIKey         string        `envconfig:"SHELFLINE_AI_API_KEY"`
	RequestTimeout time.Duration `envconfig:"SHELFLINE_AI_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SHELFLINE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SHELFLINE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	FeedTopic                string `envconfig:"SHELFLINE_PUBSUB_FEED_TOPIC" default:"shelfline-dan-feed"`
	FeedSubscription         string `envconfig:"SHELFLINE_PUBSUB_FEED_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"SHELFLINE_PUBSUB_NOTIFICATION_TOPIC" default:"shelfline-notifications"`
	NotificationSubscription string `envconfig:"SHELFLINE_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type PolicyConfig struct {
	RunLogCap         int           `envconfig:"SHELFLINE_POLICY_RUN_LOG_CAP" default:"50"`
	LowStockThreshold int           `envconfig:"SHELFLINE_POLICY_LOW_STOCK_THRESHOLD" default:"10"`
	WebhookTimeout    time.Duration `envconfig:"SHELFLINE_POLICY_WEBHOOK_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHELFLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHELFLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHELFLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"SHELFLINE_AUTO_MIGRATE" default:"false"`
	SharingEnabled bool `envconfig:"SHELFLINE_FEATURE_SHARING" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
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
