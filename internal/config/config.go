// Package config loads gateway settings from defaults, an optional YAML file
// and the environment. Environment names match the existing deployment
// (PORT, SPRING_BOOT_API_URL, AWS_*), so a container configured for the
// previous gateway starts unchanged.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arbitros/internal/blob"
	"arbitros/internal/lock"
)

// Config is the resolved gateway configuration.
type Config struct {
	Port             int
	UpstreamURL      string
	UpstreamTimeout  time.Duration
	OperationTimeout time.Duration
	Blob             BlobConfig
	Lock             LockConfig
	Log              LogConfig
	CORSOrigins      []string
}

type BlobConfig struct {
	Driver          blob.Driver
	Region          string
	Bucket          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PublicBaseURL   string
	Timeout         time.Duration
}

type LockConfig struct {
	Driver      lock.Driver
	SQLitePath  string
	PostgresDSN string
	TTL         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// key -> environment variable
var envBindings = map[string]string{
	"port":                   "PORT",
	"upstream.url":           "SPRING_BOOT_API_URL",
	"upstream.timeout":       "UPSTREAM_TIMEOUT",
	"operation_timeout":      "OPERATION_TIMEOUT",
	"blob.driver":            "BLOB_DRIVER",
	"blob.region":            "AWS_REGION",
	"blob.bucket":            "AWS_BUCKET_NAME",
	"blob.endpoint":          "S3_ENDPOINT",
	"blob.path_style":        "S3_PATH_STYLE",
	"blob.access_key_id":     "AWS_ACCESS_KEY_ID",
	"blob.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"blob.session_token":     "AWS_SESSION_TOKEN",
	"blob.public_base_url":   "PUBLIC_BASE_URL",
	"blob.timeout":           "STORE_TIMEOUT",
	"lock.driver":            "LOCK_DRIVER",
	"lock.sqlite_path":       "LOCK_SQLITE_PATH",
	"lock.postgres_dsn":      "LOCK_POSTGRES_DSN",
	"lock.ttl":               "LOCK_TTL",
	"log.level":              "LOG_LEVEL",
	"log.format":             "LOG_FORMAT",
	"cors.origins":           "CORS_ORIGINS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("upstream.url", "http://localhost:8080")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("operation_timeout", "30s")
	v.SetDefault("blob.driver", string(blob.DriverS3))
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.timeout", "10s")
	v.SetDefault("lock.driver", string(lock.DriverMemory))
	v.SetDefault("lock.sqlite_path", "arbitros-locks.db")
	v.SetDefault("lock.ttl", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cors.origins", "*")
}

// Load resolves the configuration. path names an optional YAML file; an empty
// path skips file loading.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:             v.GetInt("port"),
		UpstreamURL:      strings.TrimSpace(v.GetString("upstream.url")),
		UpstreamTimeout:  v.GetDuration("upstream.timeout"),
		OperationTimeout: v.GetDuration("operation_timeout"),
		Blob: BlobConfig{
			Driver:          blob.Driver(strings.ToLower(strings.TrimSpace(v.GetString("blob.driver")))),
			Region:          v.GetString("blob.region"),
			Bucket:          strings.TrimSpace(v.GetString("blob.bucket")),
			Endpoint:        v.GetString("blob.endpoint"),
			PathStyle:       v.GetBool("blob.path_style"),
			AccessKeyID:     v.GetString("blob.access_key_id"),
			SecretAccessKey: v.GetString("blob.secret_access_key"),
			SessionToken:    v.GetString("blob.session_token"),
			PublicBaseURL:   v.GetString("blob.public_base_url"),
			Timeout:         v.GetDuration("blob.timeout"),
		},
		Lock: LockConfig{
			Driver:      lock.Driver(strings.ToLower(strings.TrimSpace(v.GetString("lock.driver")))),
			SQLitePath:  v.GetString("lock.sqlite_path"),
			PostgresDSN: v.GetString("lock.postgres_dsn"),
			TTL:         v.GetDuration("lock.ttl"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		CORSOrigins: splitList(v.GetString("cors.origins")),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.UpstreamURL == "" {
		errs = append(errs, errors.New("SPRING_BOOT_API_URL is empty"))
	}
	switch c.Blob.Driver {
	case blob.DriverS3:
		if c.Blob.Bucket == "" {
			errs = append(errs, errors.New("AWS_BUCKET_NAME is required for the s3 driver"))
		}
	case blob.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_DRIVER %q", c.Blob.Driver))
	}
	if c.Blob.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("STORE_TIMEOUT must be positive, got %v", c.Blob.Timeout))
	}
	switch c.Lock.Driver {
	case lock.DriverMemory, lock.DriverNone:
	case lock.DriverSQLite:
		if c.Lock.SQLitePath == "" {
			errs = append(errs, errors.New("LOCK_SQLITE_PATH is required for the sqlite lock"))
		}
	case lock.DriverPostgres:
		if c.Lock.PostgresDSN == "" {
			errs = append(errs, errors.New("LOCK_POSTGRES_DSN is required for the postgres lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_DRIVER %q", c.Lock.Driver))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for Port.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
