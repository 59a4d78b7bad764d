package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct, merged from the YAML file and
// NOTICEBOARD_* environment overrides (env wins over file, flags win over
// both).
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		APIKeys struct {
			Frontend []string `yaml:"frontend"`
			Backend  []string `yaml:"backend"`
			Admin    []string `yaml:"admin"`
		} `yaml:"api_keys"`
	} `yaml:"security"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls the conversation expiry sweep.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Period  string `yaml:"period"`
	DryRun  bool   `yaml:"dry_run"`
}

// Addr returns the listen address, defaulting to :8080.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// DBPath returns the store path, defaulting to ./.database.
func (c *Config) DBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return "./.database"
}

// Load reads and parses the YAML config file. A missing file yields an
// empty config and no error; env overrides still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overlays NOTICEBOARD_* environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("NOTICEBOARD_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("NOTICEBOARD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("NOTICEBOARD_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("NOTICEBOARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NOTICEBOARD_RETENTION_PERIOD"); v != "" {
		cfg.Retention.Period = v
	}
	parseList := func(v string) []string {
		var out []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if v := os.Getenv("NOTICEBOARD_FRONTEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("NOTICEBOARD_BACKEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("NOTICEBOARD_ADMIN_KEYS"); v != "" {
		cfg.Security.APIKeys.Admin = parseList(v)
	}
}

// SplitAddr splits a host:port flag value; a bare port like ":9090" keeps
// the host empty. Unparseable input yields the value as host with port 0.
func SplitAddr(addr string) (string, int) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return addr, 0
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return addr, 0
	}
	return addr[:i], port
}

// ParsePeriod parses a retention period. It accepts Go durations ("240h")
// plus a day suffix ("10d"); empty input selects the 10-day default.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 10 * 24 * time.Hour, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid retention period %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid retention period %q: %w", s, err)
	}
	return d, nil
}
