package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DefaultCacheDir = "/var/cache/authguard"
	DefaultLogDir   = "/var/log/authguard"

	envPrefix  = "AUTHGUARD"
	configName = "authguard"
)

// SearchPaths are the directories searched for authguard.toml when no file
// is given explicitly, in order.
var SearchPaths = []string{"/etc/authguard", "."}

// Profile holds the connection details for one deployment environment.
type Profile struct {
	Endpoint  string `mapstructure:"aws_iot_endpoint" json:"aws_iot_endpoint"`
	RoleAlias string `mapstructure:"role_alias" json:"role_alias"`
	CertPath  string `mapstructure:"cert_path" json:"cert_path"`
	KeyPath   string `mapstructure:"key_path" json:"key_path"`
	CAPath    string `mapstructure:"ca_path" json:"ca_path"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
}

// EnvironmentConfig selects one of several named profiles.
type EnvironmentConfig struct {
	Current  string
	Profiles map[string]Profile
}

type Config struct {
	CacheDir                string `mapstructure:"cache_dir"`
	LogDir                  string `mapstructure:"log_dir"`
	LogLevel                string `mapstructure:"log_level"`
	Env                     string `mapstructure:"env"`
	CircuitBreakerThreshold int    `mapstructure:"circuit_breaker_threshold"`
	CoolDownSeconds         int    `mapstructure:"cool_down_seconds"`
	CacheThresholdSeconds   int    `mapstructure:"cache_threshold_seconds"`
	MaxAttempts             int    `mapstructure:"max_attempts"`
	InitialBackoff          string `mapstructure:"initial_backoff"`
	RequestTimeout          string `mapstructure:"request_timeout"`
	MetricsFile             string `mapstructure:"metrics_file"`
	MetricsAddress          string `mapstructure:"metrics_address"`

	Environment EnvironmentConfig `mapstructure:"-"`

	v *viper.Viper
}

// Load reads the configuration from path, or from the first authguard.toml
// found in SearchPaths when path is empty. Environment variables prefixed
// with AUTHGUARD_ override file values. A configuration file is required.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, &Error{Kind: KindMissingFile, Path: path, Err: err}
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		for _, dir := range SearchPaths {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, &Error{Kind: KindMissingFile, Path: strings.Join(SearchPaths, ", "), Err: err}
		}
		return nil, &Error{Kind: KindInvalid, Path: path, Err: err}
	}
	slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("env", EnvProd)
	v.SetDefault("circuit_breaker_threshold", 3)
	v.SetDefault("cool_down_seconds", 60)
	v.SetDefault("cache_threshold_seconds", 300)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("initial_backoff", "1s")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("metrics_file", "")
	v.SetDefault("metrics_address", "")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Config{v: v}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Kind: KindInvalid, Path: v.ConfigFileUsed(), Err: err}
	}

	cfg.Environment = EnvironmentConfig{
		Current:  v.GetString("environment.current"),
		Profiles: map[string]Profile{},
	}
	for name := range v.GetStringMap("environment") {
		if name == "current" {
			continue
		}
		var p Profile
		if err := v.UnmarshalKey("environment."+name, &p); err != nil {
			return nil, &Error{Kind: KindInvalid, Field: "environment." + name, Err: err}
		}
		cfg.Environment.Profiles[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// File returns the configuration file in use.
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// ActiveProfile returns the profile named by environment.current.
func (c *Config) ActiveProfile() (Profile, error) {
	if c.Environment.Current == "" {
		return Profile{}, &Error{Kind: KindMissingField, Field: "environment.current"}
	}
	p, ok := c.Environment.Profiles[strings.ToLower(c.Environment.Current)]
	if !ok {
		return Profile{}, &Error{Kind: KindMissingField, Field: "environment." + c.Environment.Current}
	}
	return p, nil
}

// ValidatePaths checks that the active profile's certificate, key and CA
// files exist.
func (c *Config) ValidatePaths() error {
	p, err := c.ActiveProfile()
	if err != nil {
		return err
	}

	files := []struct {
		field string
		path  string
	}{
		{"cert_path", p.CertPath},
		{"key_path", p.KeyPath},
		{"ca_path", p.CAPath},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err != nil {
			return &Error{Kind: KindMissingFile, Field: f.field, Path: f.path, Err: err}
		}
	}
	return nil
}

// WatchChanges calls fn with the reloaded configuration each time the file
// changes. Changes that fail validation are logged and skipped.
func (c *Config) WatchChanges(fn func(*Config)) {
	if c.v == nil {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(c.v)
		if err != nil {
			slog.Warn("ignoring invalid configuration change",
				slog.String("file", e.Name), slog.String("error", err.Error()))
			return
		}
		fn(next)
	})
	c.v.WatchConfig()
}

func (c *Config) CoolDown() time.Duration {
	return time.Duration(c.CoolDownSeconds) * time.Second
}

// RefreshMargin is how long before expiry cached credentials are replaced.
func (c *Config) RefreshMargin() time.Duration {
	return time.Duration(c.CacheThresholdSeconds) * time.Second
}

func (c *Config) InitialBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.InitialBackoff)
	return d
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	return d
}

var _ validation.Validatable = (*Config)(nil)
