package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full runtime configuration, loaded once from the
// environment at startup and passed explicitly to every component.
type Config struct {
	Environment string

	Server        ServerConfig
	Scylla        ScyllaConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
	Logging       LoggingConfig
	JWT           JWTConfig
	Policy        PolicyConfig
	Gateway       GatewayConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type HashingConfig struct {
	Argon2MemoryCost   int
	Argon2TimeCost     int
	Argon2Parallelism  int
	PepperRotationDays int
}

type BucketingConfig struct {
	UserBuckets  int
	EventBuckets int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// PolicyConfig carries the retry/lockout thresholds for login, OTP and
// device binding. Defaults match the product policy; every value can be
// overridden from the environment.
type PolicyConfig struct {
	MaxLoginAttempts         int           // internal/AD logins: lock at this count
	MaxDailyLoginAttempts    int           // consumer app: rolling 24h window
	OTPMaxRetryCount         int           // generation attempts before lockout window
	OTPMaxVerifyCount        int           // verification attempts per OTP
	OTPResendCooldown        time.Duration // minimum gap between generations
	OTPLockoutWindow         time.Duration // counters reset after this much silence
	OTPExpiry                time.Duration
	MPINHistoryDepth         int // reuse checked against this many prior hashes
	DeviceBindLimit          int
	EnforceBindLimitOnVerify bool
}

// GatewayConfig is the explicit replacement for the process-wide mock/env
// switches of the legacy system.
type GatewayConfig struct {
	MockOTP                 bool
	IdcomEnvironment        string // "internal" or "external"
	ADAuthenticationEnabled bool

	CoreBankingURL   string
	IdcomURL         string
	IdcomScope       string
	IdcomRedirectURI string
	OTPGatewayURL    string
	CallTimeout      time.Duration
}

var (
	globalConfig *Config
	loadOnce     sync.Once
)

// LoadConfig reads configuration from the environment (and .env when
// present) exactly once and caches it process-wide.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()

		globalConfig = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
				AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
				Domain:       getEnv("SERVER_DOMAIN", ""),
				CertFile:     getEnv("SERVER_CERT_FILE", ""),
				KeyFile:      getEnv("SERVER_KEY_FILE", ""),
				AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/cache/autocert"),
				Email:        getEnv("SERVER_ACME_EMAIL", ""),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Scylla: ScyllaConfig{
				Nodes:    splitList(getEnv("SCYLLA_NODES", "127.0.0.1:9042")),
				Keyspace: getEnv("SCYLLA_KEYSPACE", "onboarding"),
				Username: getEnv("SCYLLA_USERNAME", ""),
				Password: getEnv("SCYLLA_PASSWORD", ""),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
			},
			Kafka: KafkaConfig{
				Brokers:           splitList(getEnv("KAFKA_BROKERS", "127.0.0.1:9092")),
				NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "notification-events"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", "127.0.0.1:9000"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Database: getEnv("CLICKHOUSE_DATABASE", "onboarding_audit"),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:      getEnv("ELASTICSEARCH_URL", "https://127.0.0.1:9200"),
				Username: getEnv("ELASTICSEARCH_USERNAME", "elastic"),
				Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
			},
			KMS: KMSConfig{
				Enabled: getEnvBool("KMS_ENABLED", false),
				KeyID:   getEnv("KMS_KEY_ID", ""),
				Region:  getEnv("KMS_REGION", "ap-south-1"),
			},
			Hashing: HashingConfig{
				Argon2MemoryCost:   getEnvInt("ARGON2_MEMORY_COST", 65536),
				Argon2TimeCost:     getEnvInt("ARGON2_TIME_COST", 3),
				Argon2Parallelism:  getEnvInt("ARGON2_PARALLELISM", 4),
				PepperRotationDays: getEnvInt("PEPPER_ROTATION_DAYS", 90),
			},
			Bucketing: BucketingConfig{
				UserBuckets:  getEnvInt("USER_BUCKETS", 128),
				EventBuckets: getEnvInt("EVENT_BUCKETS", 64),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
			JWT: JWTConfig{
				Secret:     getEnv("JWT_SECRET", "dev-only-secret"),
				Issuer:     getEnv("JWT_ISSUER", "onboarding-service"),
				AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
				RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 720*time.Hour),
			},
			Policy: PolicyConfig{
				MaxLoginAttempts:         getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
				MaxDailyLoginAttempts:    getEnvInt("MAX_DAILY_LOGIN_ATTEMPTS", 5),
				OTPMaxRetryCount:         getEnvInt("OTP_MAX_RETRY_COUNT", 3),
				OTPMaxVerifyCount:        getEnvInt("OTP_MAX_VERIFY_COUNT", 3),
				OTPResendCooldown:        getEnvDuration("OTP_RESEND_COOLDOWN", time.Minute),
				OTPLockoutWindow:         getEnvDuration("OTP_LOCKOUT_WINDOW", 12*time.Hour),
				OTPExpiry:                getEnvDuration("OTP_EXPIRY", 5*time.Minute),
				MPINHistoryDepth:         getEnvInt("MPIN_HISTORY_DEPTH", 3),
				DeviceBindLimit:          getEnvInt("DEVICE_BIND_LIMIT", 1),
				EnforceBindLimitOnVerify: getEnvBool("ENFORCE_BIND_LIMIT_ON_VERIFY", true),
			},
			Gateway: GatewayConfig{
				MockOTP:                 getEnvBool("MOCK_OTP", false),
				IdcomEnvironment:        getEnv("IDCOM_ENVIRONMENT", "external"),
				ADAuthenticationEnabled: getEnvBool("AD_AUTHENTICATION_ENABLED", false),
				CoreBankingURL:          getEnv("CORE_BANKING_URL", ""),
				IdcomURL:                getEnv("IDCOM_URL", ""),
				IdcomScope:              getEnv("IDCOM_SCOPE", "openid"),
				IdcomRedirectURI:        getEnv("IDCOM_REDIRECT_URI", ""),
				OTPGatewayURL:           getEnv("OTP_GATEWAY_URL", ""),
				CallTimeout:             getEnvDuration("GATEWAY_CALL_TIMEOUT", 30*time.Second),
			},
		}
	})

	return globalConfig
}

// Get returns the cached configuration, loading it on first use.
func Get() *Config {
	if globalConfig == nil {
		return LoadConfig()
	}
	return globalConfig
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
