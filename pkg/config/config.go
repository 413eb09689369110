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
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	OpenAI       OpenAIConfig
	Stripe       StripeConfig
	Media        MediaConfig
	Pricing      PricingConfig
	Analytics    AnalyticsConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"TSCRIBE_APP_ENV" required:"true"`
	Port         string `envconfig:"TSCRIBE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TSCRIBE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TSCRIBE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TSCRIBE_DB_DSN"`
	Driver string `envconfig:"TSCRIBE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TSCRIBE_DB_HOST"`
	LegacyPort     int    `envconfig:"TSCRIBE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TSCRIBE_DB_USER"`
	LegacyPassword string `envconfig:"TSCRIBE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TSCRIBE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TSCRIBE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TSCRIBE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TSCRIBE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TSCRIBE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TSCRIBE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TSCRIBE_REDIS_URL"`
	Address      string        `envconfig:"TSCRIBE_REDIS_ADDR"`
	Password     string        `envconfig:"TSCRIBE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TSCRIBE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TSCRIBE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TSCRIBE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TSCRIBE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TSCRIBE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TSCRIBE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TSCRIBE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TSCRIBE_AUTO_MIGRATE" default:"false"`
}

type OpenAIConfig struct {
	APIKey         string        `envconfig:"TSCRIBE_OPENAI_API_KEY"`
	BaseURL        string        `envconfig:"TSCRIBE_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model          string        `envconfig:"TSCRIBE_OPENAI_MODEL" default:"whisper-1"`
	PreviewTimeout time.Duration `envconfig:"TSCRIBE_OPENAI_PREVIEW_TIMEOUT" default:"5s"`
	FullTimeout    time.Duration `envconfig:"TSCRIBE_OPENAI_FULL_TIMEOUT" default:"5m"`
}

// Configured reports whether an API key is present. Without one the
// transcription service runs in demo mode.
func (o OpenAIConfig) Configured() bool {
	return strings.TrimSpace(o.APIKey) != ""
}

type StripeConfig struct {
	APIKey string `envconfig:"TSCRIBE_STRIPE_API_KEY"`
	Secret string `envconfig:"TSCRIBE_STRIPE_SECRET"`
	Env    string `envconfig:"TSCRIBE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MediaConfig struct {
	MaxUploadBytes      int64         `envconfig:"TSCRIBE_MEDIA_MAX_UPLOAD_BYTES" default:"2147483648"`
	MinUploadBytes      int64         `envconfig:"TSCRIBE_MEDIA_MIN_UPLOAD_BYTES" default:"100"`
	TranscriptionBytes  int64         `envconfig:"TSCRIBE_MEDIA_TRANSCRIPTION_MAX_BYTES" default:"26214400"`
	ProbeTimeout        time.Duration `envconfig:"TSCRIBE_MEDIA_PROBE_TIMEOUT" default:"15s"`
	FastModeBytes       int64         `envconfig:"TSCRIBE_MEDIA_FAST_MODE_BYTES" default:"10485760"`
	ReencodeTimeout     time.Duration `envconfig:"TSCRIBE_MEDIA_REENCODE_TIMEOUT" default:"10s"`
	FastReencodeTimeout time.Duration `envconfig:"TSCRIBE_MEDIA_FAST_REENCODE_TIMEOUT" default:"5s"`
}

type PricingConfig struct {
	RatePerMinuteCents int64 `envconfig:"TSCRIBE_PRICE_PER_MINUTE_CENTS" default:"18"`
	MinimumChargeCents int64 `envconfig:"TSCRIBE_MINIMUM_CHARGE_CENTS" default:"50"`
}

type AnalyticsConfig struct {
	RecentActivityLimit int `envconfig:"TSCRIBE_ANALYTICS_RECENT_LIMIT" default:"50"`
}

type RateLimitConfig struct {
	TranscribeWindow  time.Duration `envconfig:"TSCRIBE_RATE_LIMIT_TRANSCRIBE_WINDOW" default:"1m"`
	TranscribeIPLimit int           `envconfig:"TSCRIBE_RATE_LIMIT_TRANSCRIBE_IP_LIMIT" default:"10"`
	ProcessWindow     time.Duration `envconfig:"TSCRIBE_RATE_LIMIT_PROCESS_WINDOW" default:"1m"`
	ProcessIPLimit    int           `envconfig:"TSCRIBE_RATE_LIMIT_PROCESS_IP_LIMIT" default:"5"`
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
