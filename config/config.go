// Package config loads flatsync settings from defaults, an optional YAML
// file, a .env file and FLATSYNC_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sandeepkandula/flatsync/sync"
)

// Backend selects the client library used to reach the bucket.
type Backend string

const (
	BackendAWS   Backend = "aws"
	BackendMinio Backend = "minio"
)

type Config struct {
	Storage StorageConfig
	Sync    SyncConfig
	Log     LogConfig
}

type StorageConfig struct {
	Backend  Backend
	Endpoint string // https://host[:port]
	Bucket   string
	Profile  string // shared credentials profile
	Region   string
}

type SyncConfig struct {
	LocalDir string // local root; months land in LocalDir/<year>/<MM>
	Prefix   string // remote root; months are listed under Prefix/<year>/<MM>/
	Start    sync.Period
	EndYear  int
	DryRun   bool
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", string(BackendAWS))
	v.SetDefault("storage.endpoint", "https://files.polygon.io")
	v.SetDefault("storage.bucket", "flatfiles")
	v.SetDefault("storage.profile", "polygon")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("sync.local_dir", "./polygon_data/minute_aggs")
	v.SetDefault("sync.prefix", "us_stocks_sip/minute_aggs_v1")
	v.SetDefault("sync.start", "2024-04")
	v.SetDefault("sync.end_year", 2024)
	v.SetDefault("sync.dry_run", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. file may be empty, in which case only defaults,
// .env and the environment are consulted. A missing .env is not an error.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	start, err := sync.ParsePeriod(v.GetString("sync.start"))
	if err != nil {
		return nil, fmt.Errorf("sync.start: %w", err)
	}

	return &Config{
		Storage: StorageConfig{
			Backend:  Backend(strings.ToLower(v.GetString("storage.backend"))),
			Endpoint: v.GetString("storage.endpoint"),
			Bucket:   v.GetString("storage.bucket"),
			Profile:  v.GetString("storage.profile"),
			Region:   v.GetString("storage.region"),
		},
		Sync: SyncConfig{
			LocalDir: v.GetString("sync.local_dir"),
			Prefix:   v.GetString("sync.prefix"),
			Start:    start,
			EndYear:  v.GetInt("sync.end_year"),
			DryRun:   v.GetBool("sync.dry_run"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}, nil
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendAWS, BackendMinio:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want %q or %q", c.Storage.Backend, BackendAWS, BackendMinio))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if c.Storage.Endpoint != "" && !strings.Contains(c.Storage.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("storage.endpoint %q: want scheme://host", c.Storage.Endpoint))
	}
	return errors.Join(errs...)
}

// ValidateRange checks the settings used by the range command.
func (c *Config) ValidateRange() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sync.LocalDir == "" {
		errs = append(errs, errors.New("sync.local_dir is required"))
	}
	if c.Sync.Start.Month < 1 || c.Sync.Start.Month > 12 {
		errs = append(errs, fmt.Errorf("sync.start month %d out of range", c.Sync.Start.Month))
	}
	if c.Sync.EndYear < c.Sync.Start.Year {
		errs = append(errs, fmt.Errorf("sync.end_year %d is before start year %d", c.Sync.EndYear, c.Sync.Start.Year))
	}
	return errors.Join(errs...)
}
