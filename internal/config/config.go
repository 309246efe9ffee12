package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/netip"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Env      string `mapstructure:"env" yaml:"env"`
		Timezone string `mapstructure:"timezone" yaml:"timezone"`
	} `mapstructure:"app" yaml:"app"`

	HTTP struct {
		Addr      string `mapstructure:"addr" yaml:"addr"`
		StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`
		// TrustedProxies lists the reverse proxies (IPs or CIDRs) whose
		// X-Forwarded-For and X-Real-IP headers are believed.
		TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`
	} `mapstructure:"http" yaml:"http"`

	Backend struct {
		BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
		Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"backend" yaml:"backend"`

	Session struct {
		Driver     string        `mapstructure:"driver" yaml:"driver"`
		SQLitePath string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
		RedisAddr  string        `mapstructure:"redis_addr" yaml:"redis_addr"`
		TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	} `mapstructure:"session" yaml:"session"`

	Auth struct {
		RFIDMinLength int     `mapstructure:"rfid_min_length" yaml:"rfid_min_length"`
		LoginRate     float64 `mapstructure:"login_rate" yaml:"login_rate"`
		LoginBurst    int     `mapstructure:"login_burst" yaml:"login_burst"`
	} `mapstructure:"auth" yaml:"auth"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	} `mapstructure:"metrics" yaml:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Asia/Bangkok")
	v.SetDefault("http.addr", ":9000")
	v.SetDefault("http.static_dir", "static")
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("session.driver", "sqlite")
	v.SetDefault("session.sqlite_path", "plating-sessions.db")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("auth.rfid_min_length", 10)
	v.SetDefault("auth.login_rate", 1.0)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("metrics.enabled", true)
}

// Load reads the YAML file at path (optional), then PLATING_* environment
// overrides. A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PLATING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return c, fmt.Errorf("read config: %w", err)
			}
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks the settings the console cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("config: backend.base_url is required")
	}
	switch c.Session.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("config: unknown session.driver %q", c.Session.Driver)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("config: app.timezone: %w", err)
	}
	for _, p := range c.HTTP.TrustedProxies {
		p = strings.TrimSpace(p)
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("config: http.trusted_proxies: invalid address %q", p)
		}
	}
	return nil
}

// Location returns the configured business timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Dump writes the effective configuration as YAML.
func (c Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(c)
}
