package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the file read when neither an explicit path nor SENTIMENT_CONFIG is set.
const ConfigPath = "config.yaml"

// MinioConfig locates model artifacts in an object store bucket.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Enabled reports whether artifacts should be read from MinIO.
func (m MinioConfig) Enabled() bool {
	return strings.TrimSpace(m.Bucket) != ""
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	SessionTTL        string `yaml:"sessionTTL"`
	JWTSecret         string `yaml:"jwtSecret"`
	JWTPrivateKeyPath string `yaml:"jwtPrivateKeyPath"`
	JWTPublicKeyPath  string `yaml:"jwtPublicKeyPath"`
	JWTKeyID          string `yaml:"jwtKeyId"`
	JWTIssuer         string `yaml:"jwtIssuer"`
	JWTAudience       string `yaml:"jwtAudience"`
	JWTLeeway         string `yaml:"jwtLeeway"`

	ModelDir      string      `yaml:"modelDir"`
	ModelWatch    bool        `yaml:"modelWatch"`
	ModelDebounce string      `yaml:"modelDebounce"`
	Minio         MinioConfig `yaml:"minio"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	TrustedProxies     []string `yaml:"trustedProxies"`

	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	PredictRateLimitPerMinute  int `yaml:"predictRateLimitPerMinute"`
}

// Load reads and validates the server configuration.
func Load(path string) (FileConfig, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read loads config from path, SENTIMENT_CONFIG, or config.yaml, in that order,
// and applies environment overrides and defaults without validation.
// A missing default file is not an error.
func Read(path string) (FileConfig, error) {
	cfg := FileConfig{}
	explicit := true
	if path == "" {
		path = os.Getenv("SENTIMENT_CONFIG")
	}
	if path == "" {
		path = ConfigPath
		explicit = false
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case !explicit && errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	envString("PORT", &cfg.Port)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("REDIS_ADDR", &cfg.RedisAddr)
	envString("REDIS_PASSWORD", &cfg.RedisPassword)
	envString("SESSION_TTL", &cfg.SessionTTL)
	envString("JWT_SECRET", &cfg.JWTSecret)
	envString("JWT_PRIVATE_KEY_PATH", &cfg.JWTPrivateKeyPath)
	envString("JWT_PUBLIC_KEY_PATH", &cfg.JWTPublicKeyPath)
	envString("JWT_KEY_ID", &cfg.JWTKeyID)
	envString("JWT_ISSUER", &cfg.JWTIssuer)
	envString("JWT_AUDIENCE", &cfg.JWTAudience)
	envString("JWT_LEEWAY", &cfg.JWTLeeway)
	envString("MODEL_DIR", &cfg.ModelDir)
	envBool("MODEL_WATCH", &cfg.ModelWatch)
	envString("MINIO_ENDPOINT", &cfg.Minio.Endpoint)
	envString("MINIO_ACCESS_KEY", &cfg.Minio.AccessKey)
	envString("MINIO_SECRET_KEY", &cfg.Minio.SecretKey)
	envString("MINIO_BUCKET", &cfg.Minio.Bucket)
	envString("MINIO_PREFIX", &cfg.Minio.Prefix)
	envBool("MINIO_USE_SSL", &cfg.Minio.UseSSL)
	envList("CORS_ALLOWED_ORIGINS", &cfg.CORSAllowedOrigins)
	envList("TRUSTED_PROXIES", &cfg.TrustedProxies)
	envInt("SENTIMENT_REGISTER_RATE_LIMIT_PER_MINUTE", &cfg.RegisterRateLimitPerMinute)
	envInt("SENTIMENT_LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute)
	envInt("SENTIMENT_PREDICT_RATE_LIMIT_PER_MINUTE", &cfg.PredictRateLimitPerMinute)
}

func applyDefaults(cfg *FileConfig) {
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "5000"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.ModelDir) == "" {
		cfg.ModelDir = "."
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func validateConfig(cfg FileConfig) error {
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" && strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
		return errors.New("config: jwtSecret or jwtPrivateKeyPath is required (set JWT_SECRET)")
	}
	if cfg.JWTPrivateKeyPath == "" && cfg.JWTPublicKeyPath != "" {
		return errors.New("config: jwtPublicKeyPath requires jwtPrivateKeyPath")
	}
	if cfg.Minio.Enabled() && strings.TrimSpace(cfg.Minio.Endpoint) == "" {
		return errors.New("config: minio.endpoint is required when minio.bucket is set")
	}
	if cfg.Minio.Enabled() && cfg.ModelWatch {
		return errors.New("config: modelWatch only supports a local modelDir")
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.PredictRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	for name, raw := range map[string]string{
		"sessionTTL":    cfg.SessionTTL,
		"jwtLeeway":     cfg.JWTLeeway,
		"modelDebounce": cfg.ModelDebounce,
	} {
		if _, err := ParseDuration(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// ParseDuration parses an optional duration; empty input yields zero.
func ParseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return dur, nil
}
