package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Capture   CaptureConfig
	Session   SessionConfig
	R2        R2Config
	Publish   PublishConfig
	OIDC      OIDCConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SessionsPerHour  int
	PublishesPerHour int
}

// CaptureConfig is the fixed device profile requested on every acquisition.
type CaptureConfig struct {
	Enabled          bool
	Width            int
	Height           int
	FrameRate        int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// SessionConfig governs the recording session state machine.
type SessionConfig struct {
	TickIntervalMs     int
	RetainSourceTracks bool
	RetentionMinutes   int // idle sessions are reaped after this
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type PublishConfig struct {
	ServiceURL string
	APIKey     string
	Timeout    int // seconds
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("PUBLISH_API_KEY")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("capture.enabled", "CAPTURE_ENABLED")
	_ = viper.BindEnv("capture.width", "CAPTURE_WIDTH")
	_ = viper.BindEnv("capture.height", "CAPTURE_HEIGHT")
	_ = viper.BindEnv("capture.frame_rate", "CAPTURE_FRAME_RATE")
	_ = viper.BindEnv("session.tick_interval_ms", "SESSION_TICK_INTERVAL_MS")
	_ = viper.BindEnv("session.retain_source_tracks", "SESSION_RETAIN_SOURCE_TRACKS")
	_ = viper.BindEnv("session.retention_minutes", "SESSION_RETENTION_MINUTES")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("publish.service_url", "PUBLISH_SERVICE_URL")
	_ = viper.BindEnv("publish.api_key", "PUBLISH_API_KEY")
	_ = viper.BindEnv("publish.timeout", "PUBLISH_TIMEOUT")
	_ = viper.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.sessions_per_hour", 60)
	viper.SetDefault("ratelimit.publishes_per_hour", 20)

	// Capture profile defaults: 720p30 with full audio processing
	viper.SetDefault("capture.enabled", true)
	viper.SetDefault("capture.width", 1280)
	viper.SetDefault("capture.height", 720)
	viper.SetDefault("capture.frame_rate", 30)
	viper.SetDefault("capture.echo_cancellation", true)
	viper.SetDefault("capture.noise_suppression", true)
	viper.SetDefault("capture.auto_gain_control", true)

	// Session defaults
	viper.SetDefault("session.tick_interval_ms", 100)
	viper.SetDefault("session.retain_source_tracks", false)
	viper.SetDefault("session.retention_minutes", 30)

	// Publish service defaults
	viper.SetDefault("publish.timeout", 60)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SessionsPerHour:  viper.GetInt("ratelimit.sessions_per_hour"),
			PublishesPerHour: viper.GetInt("ratelimit.publishes_per_hour"),
		},
		Capture: CaptureConfig{
			Enabled:          viper.GetBool("capture.enabled"),
			Width:            viper.GetInt("capture.width"),
			Height:           viper.GetInt("capture.height"),
			FrameRate:        viper.GetInt("capture.frame_rate"),
			EchoCancellation: viper.GetBool("capture.echo_cancellation"),
			NoiseSuppression: viper.GetBool("capture.noise_suppression"),
			AutoGainControl:  viper.GetBool("capture.auto_gain_control"),
		},
		Session: SessionConfig{
			TickIntervalMs:     viper.GetInt("session.tick_interval_ms"),
			RetainSourceTracks: viper.GetBool("session.retain_source_tracks"),
			RetentionMinutes:   viper.GetInt("session.retention_minutes"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Publish: PublishConfig{
			ServiceURL: viper.GetString("publish.service_url"),
			APIKey:     viper.GetString("publish.api_key"),
			Timeout:    viper.GetInt("publish.timeout"),
		},
		OIDC: OIDCConfig{
			Domain:   viper.GetString("oidc.domain"),
			ClientID: viper.GetString("oidc.client_id"),
			Issuer:   viper.GetString("oidc.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
