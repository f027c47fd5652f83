// Package config loads Mission Control settings from defaults, an optional
// YAML file and the environment.
package config

import (
	"time"
)

// Config is the effective service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Secrets  SecretsConfig  `mapstructure:"secrets" yaml:"secrets"`
	OpenClaw OpenClawConfig `mapstructure:"openclaw" yaml:"openclaw"`
	Health   HealthConfig   `mapstructure:"health" yaml:"health"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// SecretsConfig names the CLIs consulted by the credential resolver.
type SecretsConfig struct {
	OPBinary       string        `mapstructure:"op_binary" yaml:"op_binary"`
	GogBinary      string        `mapstructure:"gog_binary" yaml:"gog_binary"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// OpenClawConfig lists the openclaw.json files searched, in order.
type OpenClawConfig struct {
	ConfigPaths []string `mapstructure:"config_paths" yaml:"config_paths"`
}

// HealthConfig drives the scheduled integration sweep. An empty schedule
// disables it.
type HealthConfig struct {
	Schedule    string `mapstructure:"schedule" yaml:"schedule"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}
