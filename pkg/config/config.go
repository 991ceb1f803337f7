package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "ACTIONCORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ACTIONCORE_DB_DSN"
	EnvDBHost = "ACTIONCORE_DB_HOST"
	EnvDBUser = "ACTIONCORE_DB_USER"
	EnvDBName = "ACTIONCORE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Solana       SolanaConfig
	Payments     PaymentsConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"ACTIONCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"ACTIONCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ACTIONCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ACTIONCORE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ACTIONCORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ACTIONCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ACTIONCORE_DB_DSN"`
	Driver string `envconfig:"ACTIONCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ACTIONCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"ACTIONCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ACTIONCORE_DB_USER"`
	LegacyPassword string `envconfig:"ACTIONCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ACTIONCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ACTIONCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ACTIONCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACTIONCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ACTIONCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ACTIONCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ACTIONCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ACTIONCORE_REDIS_ADDR"`
	Password     string        `envconfig:"ACTIONCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ACTIONCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ACTIONCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ACTIONCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ACTIONCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ACTIONCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ACTIONCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SolanaConfig struct {
	RPCURL         string        `envconfig:"ACTIONCORE_SOLANA_RPC_URL" required:"true"`
	Commitment     string        `envconfig:"ACTIONCORE_SOLANA_COMMITMENT" default:"confirmed"`
	RequestTimeout time.Duration `envconfig:"ACTIONCORE_SOLANA_REQUEST_TIMEOUT" default:"15s"`
	MaxRetries     int           `envconfig:"ACTIONCORE_SOLANA_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"ACTIONCORE_SOLANA_RETRY_BASE_DELAY" default:"250ms"`
}

type PaymentsConfig struct {
	PlatformFeeWallet string `envconfig:"ACTIONCORE_PAYMENTS_PLATFORM_FEE_WALLET" required:"true"`
	FeeRateBPS        int    `envconfig:"ACTIONCORE_PAYMENTS_FEE_RATE_BPS" default:"100"`
	VerifyAmounts     bool   `envconfig:"ACTIONCORE_PAYMENTS_VERIFY_AMOUNTS" default:"true"`

	PendingIndexTTL  time.Duration `envconfig:"ACTIONCORE_PAYMENTS_PENDING_INDEX_TTL" default:"10m"`
	MetadataCacheTTL time.Duration `envconfig:"ACTIONCORE_PAYMENTS_METADATA_CACHE_TTL" default:"5m"`
	OrderExpiryDays  int           `envconfig:"ACTIONCORE_PAYMENTS_ORDER_EXPIRY_DAYS" default:"10"`
}

type RateLimitConfig struct {
	WalletWindow time.Duration `envconfig:"ACTIONCORE_RATE_LIMIT_WALLET_WINDOW" default:"1m"`
	WalletLimit  int           `envconfig:"ACTIONCORE_RATE_LIMIT_WALLET_LIMIT" default:"5"`
	IPLimit      int           `envconfig:"ACTIONCORE_RATE_LIMIT_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ACTIONCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ACTIONCORE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ACTIONCORE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ACTIONCORE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ACTIONCORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"ACTIONCORE_PUBSUB_ORDERS_TOPIC" default:"ac-order-events"`
	OrdersSubscription string `envconfig:"ACTIONCORE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"ACTIONCORE_CRON_INTERVAL" default:"1h"`
	LockKey             string        `envconfig:"ACTIONCORE_CRON_LOCK_KEY" default:"ac:cron:leader"`
	LockTTL             time.Duration `envconfig:"ACTIONCORE_CRON_LOCK_TTL" default:"65m"`
	OutboxRetentionDays int           `envconfig:"ACTIONCORE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ACTIONCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ACTIONCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ACTIONCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// FeeRate returns the platform fee rate as an exact decimal fraction
// (100 bps -> 0.01).
func (p PaymentsConfig) FeeRate() decimal.Decimal {
	return decimal.New(int64(p.FeeRateBPS), -4)
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
