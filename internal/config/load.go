package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"missioncontrol/internal/errors"
)

// EnvPrefix prefixes every environment override (MC_SERVER_ADDR, ...).
const EnvPrefix = "MC"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("secrets.op_binary", "op")
	v.SetDefault("secrets.gog_binary", "gog")
	v.SetDefault("secrets.command_timeout", 15*time.Second)
	v.SetDefault("openclaw.config_paths", DefaultOpenClawPaths())
	v.SetDefault("health.schedule", "")
	v.SetDefault("health.concurrency", 4)
}

// DefaultOpenClawPaths returns the openclaw.json candidates in lookup order.
func DefaultOpenClawPaths() []string {
	paths := []string{}
	if p := strings.TrimSpace(os.Getenv("OPENCLAW_CONFIG")); p != "" {
		paths = append(paths, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".openclaw", "openclaw.json"))
	}
	return append(paths, "/root/.openclaw/openclaw.json", "openclaw.json")
}

// Load reads configuration with this precedence (highest first):
//  1. MC_* environment variables, then DATABASE_URL / PORT
//  2. the file at path, or the first default config file that exists
//  3. built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = firstExisting(defaultConfigFiles())
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	applyLegacyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyLegacyEnv honors the DATABASE_URL and PORT conventions of Cloud Run
// style deployments when no MC_ override was given.
func applyLegacyEnv(cfg *Config) {
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if _, set := os.LookupEnv(EnvPrefix + "_SERVER_ADDR"); !set {
		if p := os.Getenv("PORT"); p != "" {
			cfg.Server.Addr = ":" + p
		}
	}
}

// Validate rejects configurations the service cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.Wrap(errors.ErrConfigInvalid, "config is nil")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "server.addr is empty")
	}
	if cfg.Health.Concurrency < 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "health.concurrency must be >= 1, got %d", cfg.Health.Concurrency)
	}
	if cfg.Secrets.CommandTimeout <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "secrets.command_timeout must be positive")
	}
	if s := strings.TrimSpace(cfg.Health.Schedule); s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "health.schedule %q: %v", s, err)
		}
	}
	return nil
}

// YAML renders cfg the way a config file would hold it.
func YAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func defaultConfigFiles() []string {
	files := []string{"mission-control.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, "mission-control", "config.yaml"))
	}
	return files
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}
