package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "WALLET"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "WALLET_APP_ENV"
	EnvPort     = "WALLET_APP_PORT"
	EnvDBDSN    = "WALLET_DB_DSN"
	EnvDBHost   = "WALLET_DB_HOST"
	EnvDBUser   = "WALLET_DB_USER"
	EnvDBName   = "WALLET_DB_NAME"
	EnvRedisURL = "WALLET_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Locks        LockConfig
	Fees         FeeConfig
	Reconciler   ReconcilerConfig
	FeatureFlags FeatureFlags
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
	Env          string `envconfig:"WALLET_APP_ENV" required:"true"`
	Port         string `envconfig:"WALLET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WALLET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WALLET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WALLET_DB_DSN"`
	Driver string `envconfig:"WALLET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WALLET_DB_HOST"`
	LegacyPort     int    `envconfig:"WALLET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WALLET_DB_USER"`
	LegacyPassword string `envconfig:"WALLET_DB_PASSWORD"`
	LegacyName     string `envconfig:"WALLET_DB_NAME"`
	LegacySSLMode  string `envconfig:"WALLET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WALLET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WALLET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WALLET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WALLET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WALLET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WALLET_REDIS_ADDR"`
	Password     string        `envconfig:"WALLET_REDIS_PASSWORD"`
	DB           int           `envconfig:"WALLET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WALLET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WALLET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WALLET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WALLET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WALLET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LockConfig bounds the two lock tiers: per-wallet named locks and the
// short-lived idempotency-key locks.
type LockConfig struct {
	WalletLockTTL    time.Duration `envconfig:"WALLET_LOCK_TTL" default:"30s"`
	IdempotencyTTL   time.Duration `envconfig:"WALLET_IDEMPOTENCY_LOCK_TTL" default:"100s"`
	MaxRetryAttempts int           `envconfig:"WALLET_LOCK_MAX_RETRY_ATTEMPTS" default:"3"`
	RetryDelay       time.Duration `envconfig:"WALLET_LOCK_RETRY_DELAY" default:"500ms"`
}

// FeeConfig carries the transfer fee policy. Amounts are parsed as decimals
// by the fee calculator; defaults mirror the production fee schedule.
type FeeConfig struct {
	TransferThreshold  string `envconfig:"WALLET_FEE_TRANSFER_THRESHOLD" default:"25.00"`
	TransferBaseFee    string `envconfig:"WALLET_FEE_TRANSFER_BASE" default:"2.50"`
	TransferPercentage string `envconfig:"WALLET_FEE_TRANSFER_PERCENTAGE" default:"0.10"`
}

type FeatureFlags struct {
	AutoMigrate bool `envconfig:"WALLET_FEATURE_AUTO_MIGRATE" default:"false"`
}

type ReconcilerConfig struct {
	Interval            time.Duration `envconfig:"WALLET_RECONCILER_INTERVAL" default:"10m"`
	StuckProcessingAge  time.Duration `envconfig:"WALLET_RECONCILER_STUCK_PROCESSING_AGE" default:"15m"`
	SnapshotBatchSize   int           `envconfig:"WALLET_RECONCILER_SNAPSHOT_BATCH_SIZE" default:"500"`
	VerifyLedgerChains  bool          `envconfig:"WALLET_RECONCILER_VERIFY_CHAINS" default:"true"`
	SweepStuckersOnBoot bool          `envconfig:"WALLET_RECONCILER_SWEEP_ON_BOOT" default:"true"`
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
